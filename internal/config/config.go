package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// APIConfig is consumed by the HTTP client at construction time.
type APIConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
}

type SessionConfig interface {
	GetRegisterDelay() time.Duration
	GetPollInterval() time.Duration
}

type StorageConfig interface {
	GetStorageDir() string
	GetStorageSecret() string
}

type mainConfig struct {
	EnvVars `yaml:"app"`
	API     `yaml:"api"`
	Session `yaml:"session"`
	Storage `yaml:"storage"`
}

var _ Config = mainConfig{}
