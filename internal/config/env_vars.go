package config

import (
	"os"
	"path/filepath"
)

const (
	appNameVar         = "SSOCONN_APP_NAME"
	configDirVar       = "SSOCONN_CONFIG_DIR"
	cacheDirVar        = "SSOCONN_CACHE_DIR"
	cachePassphraseVar = "SSOCONN_CACHE_PASSPHRASE"
	logLevelVar        = "SSOCONN_LOG_LEVEL"
	logFileVar         = "SSOCONN_LOG_FILE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "SSO Connect")
}

// GetConfigDir returns the directory holding config.yaml, connections.yaml and sessions.yaml.
func (EnvVars) GetConfigDir() string {
	if dir := os.Getenv(configDirVar); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "./.ssoconn"
	}
	return filepath.Join(base, "ssoconn")
}

// GetCacheDir returns the directory where per-connection tokens are cached.
func (e EnvVars) GetCacheDir() string {
	return GetEnv(cacheDirVar, filepath.Join(e.GetConfigDir(), "cache"))
}

// GetCachePassphrase returns the passphrase used to seal cached tokens. An
// empty passphrase stores tokens as plain JSON with owner-only permissions.
func (EnvVars) GetCachePassphrase() string {
	return os.Getenv(cachePassphraseVar)
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetLogFile() string {
	return os.Getenv(logFileVar)
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
