package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-legid-client/internal/config"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[app]
name = "LegID Desk"
env = "prod"
log_level = "DEBUG"

[api]
base_url = "https://api.legid.test/"
request_timeout = "5s"
retry_attempts = 5
rate_limit = 2.5
rate_burst = 4

[storage]
dir = "/var/lib/legid"
namespace = "desk"
secret = "from-file"

[oauth]
google_client_id = "google-id"
microsoft_client_id = "ms-id"
microsoft_tenant = "contoso"
`

func TestNew_Defaults(t *testing.T) {
	for _, k := range []string{"APP_NAME", "ENV", "LOG_LEVEL", "LEGID_API_URL", "LEGID_REQUEST_TIMEOUT",
		"LEGID_RETRY_ATTEMPTS", "LEGID_RATE_LIMIT", "LEGID_RATE_BURST", "LEGID_SNAPSHOT_NAMESPACE",
		"LEGID_SNAPSHOT_SECRET", "MICROSOFT_TENANT", "OAUTH_CALLBACK_ADDR"} {
		t.Setenv(k, "")
	}

	c := config.New()
	require.Equal(t, "LegID", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "info", c.GetLogLevel())
	require.Equal(t, "http://localhost:8000", c.GetAPIBaseURL())
	require.Equal(t, 15*time.Second, c.GetRequestTimeout())
	require.Equal(t, 3, c.GetRetryAttempts())
	require.Equal(t, 10.0, c.GetRateLimit())
	require.Equal(t, 20, c.GetRateBurst())
	require.Equal(t, "legid", c.GetSnapshotNamespace())
	require.Empty(t, c.GetSnapshotSecret())
	require.Equal(t, "common", c.GetMicrosoftTenant())
	require.Equal(t, "127.0.0.1:8765", c.GetOAuthCallbackAddr())
}

func TestLoad_FileValues(t *testing.T) {
	for _, k := range []string{"APP_NAME", "ENV", "LOG_LEVEL", "LEGID_API_URL", "LEGID_REQUEST_TIMEOUT",
		"LEGID_RETRY_ATTEMPTS", "LEGID_RATE_LIMIT", "LEGID_RATE_BURST", "LEGID_SNAPSHOT_DIR",
		"LEGID_SNAPSHOT_NAMESPACE", "LEGID_SNAPSHOT_SECRET", "GOOGLE_CLIENT_ID", "MICROSOFT_CLIENT_ID",
		"MICROSOFT_TENANT"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "legid.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o600))

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "LegID Desk", c.GetAppName())
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, "debug", c.GetLogLevel())
	require.Equal(t, "https://api.legid.test", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.Equal(t, 5, c.GetRetryAttempts())
	require.Equal(t, 2.5, c.GetRateLimit())
	require.Equal(t, 4, c.GetRateBurst())
	require.Equal(t, "/var/lib/legid", c.GetSnapshotDir())
	require.Equal(t, "desk", c.GetSnapshotNamespace())
	require.Equal(t, "from-file", c.GetSnapshotSecret())
	require.Equal(t, "google-id", c.GetGoogleClientID())
	require.Equal(t, "ms-id", c.GetMicrosoftClientID())
	require.Equal(t, "contoso", c.GetMicrosoftTenant())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legid.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o600))

	t.Setenv("LEGID_API_URL", "http://localhost:8001")
	t.Setenv("LEGID_RETRY_ATTEMPTS", "not-a-number")
	t.Setenv("LEGID_SNAPSHOT_SECRET", "from-env")

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8001", c.GetAPIBaseURL())
	require.Equal(t, 5, c.GetRetryAttempts(), "unparsable env falls back to the file value")
	require.Equal(t, "from-env", c.GetSnapshotSecret())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "[config.Load] read")
	})

	t.Run("bad toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[api\nbase_url ="), 0o600))
		_, err := config.Load(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "[config.Load] parse")
	})

	t.Run("empty path", func(t *testing.T) {
		c, err := config.Load("")
		require.NoError(t, err)
		require.NotNil(t, c)
	})
}
