package config

type OAuthConfig interface {
	GetGoogleClientID() string
	GetMicrosoftClientID() string
	GetMicrosoftTenant() string
	GetOAuthCallbackAddr() string
}

type oauthFile struct {
	GoogleClientID    string `toml:"google_client_id"`
	MicrosoftClientID string `toml:"microsoft_client_id"`
	MicrosoftTenant   string `toml:"microsoft_tenant"`
	CallbackAddr      string `toml:"callback_addr"`
}

// OAuth holds public client identifiers only. Client secrets stay on the backend.
type OAuth struct {
	file oauthFile
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", o.file.GoogleClientID)
}

func (o OAuth) GetMicrosoftClientID() string {
	return GetEnv("MICROSOFT_CLIENT_ID", o.file.MicrosoftClientID)
}

func (o OAuth) GetMicrosoftTenant() string {
	return GetEnv("MICROSOFT_TENANT", orDefault(o.file.MicrosoftTenant, "common"))
}

// GetOAuthCallbackAddr is the loopback address the CLI listens on for the
// provider redirect.
func (o OAuth) GetOAuthCallbackAddr() string {
	return GetEnv("OAUTH_CALLBACK_ADDR", orDefault(o.file.CallbackAddr, "127.0.0.1:8765"))
}
