package config

import "time"

type Config interface {
	PlatformConfig
	StorageConfig
}

type PlatformConfig interface {
	GetAppName() string
	GetAPIKey() string
	GetAPIDomain() string
	GetFlowTimeout() time.Duration
	GetEnv() string
}

type StorageConfig interface {
	GetStorageDir() string
	GetDeviceSecret() string
	GetRedisAddr() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
