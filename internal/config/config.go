package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	OAuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	API
	Storage
	OAuth
}

// New returns a Config backed by environment variables and built in defaults.
func New() Config {
	return mainConfig{}
}

// Load reads an optional TOML file. Environment variables still take
// precedence over any value found in the file.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config.Load] read %s: %w", path, err)
	}
	var f fileValues
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("[config.Load] parse %s: %w", path, err)
	}
	return mainConfig{
		EnvVars: EnvVars{file: f.App},
		API:     API{file: f.API},
		Storage: Storage{file: f.Storage},
		OAuth:   OAuth{file: f.OAuth},
	}, nil
}

// fileValues mirrors the TOML layout:
//
//	[app]
//	name = "LegID"
//	env = "PROD"
//	log_level = "info"
//
//	[api]
//	base_url = "https://api.example.com"
//	...
type fileValues struct {
	App     appFile     `toml:"app"`
	API     apiFile     `toml:"api"`
	Storage storageFile `toml:"storage"`
	OAuth   oauthFile   `toml:"oauth"`
}
