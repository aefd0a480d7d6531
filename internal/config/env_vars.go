package config

import (
	"strings"
	"time"
)

type EnvVars struct {
	AppName  string `yaml:"name"      env:"APP_NAME"  env-default:"Smartop Fleet"`
	Env      string `yaml:"env"       env:"ENV"       env-default:"DEV"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

type API struct {
	BaseURL        string        `yaml:"base_url"        env:"FLEET_API_URL"     env-default:"http://localhost:3000/api/v1"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"FLEET_API_TIMEOUT" env-default:"30s"`
}

var _ APIConfig = API{}

// GetBaseURL returns the versioned API root without a trailing slash
func (a API) GetBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.RequestTimeout
}

type Session struct {
	RegisterDelay time.Duration `yaml:"register_delay" env:"FLEET_REGISTER_DELAY" env-default:"1s"`
	PollInterval  time.Duration `yaml:"poll_interval"  env:"FLEET_POLL_INTERVAL"  env-default:"30s"`
}

var _ SessionConfig = Session{}

// GetRegisterDelay is how long after login the push device registration waits,
// so the freshly written tokens are visible to the registration request.
func (s Session) GetRegisterDelay() time.Duration {
	return s.RegisterDelay
}

func (s Session) GetPollInterval() time.Duration {
	return s.PollInterval
}

type Storage struct {
	Dir    string `yaml:"dir"    env:"FLEET_STORAGE_DIR"    env-default:"./.fleet"`
	Secret string `yaml:"secret" env:"FLEET_STORAGE_SECRET"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDir() string {
	return s.Dir
}

func (s Storage) GetStorageSecret() string {
	return s.Secret
}
