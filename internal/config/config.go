package config

import (
	"time"
)

type Config interface {
	EnvConfig
	SSOConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetConfigDir() string
	GetCacheDir() string
	GetCachePassphrase() string
	GetLogLevel() string
	GetLogFile() string
	GetEnv() string
}

type SSOConfig interface {
	GetDefaultRegion() string
	GetDefaultScopes() []string
	GetClientName() string
	GetRefreshLead() time.Duration
	GetFeaturePins() map[string]string
}

type ServerConfig interface {
	GetAddr() string
}

type mainConfig struct {
	EnvVars
	SSO
	Server
}

// New returns a configuration backed purely by environment variables.
func New() Config {
	return mainConfig{}
}

// Load returns a configuration backed by environment variables with the YAML
// file in the config directory as a fallback for SSO defaults.
func Load() (Config, error) {
	env := EnvVars{}
	file, err := ReadFile(ConfigFilePath(env.GetConfigDir()))
	if err != nil {
		return nil, err
	}
	return mainConfig{
		EnvVars: env,
		SSO:     SSO{file: file},
	}, nil
}
