package config

import (
	"os"
	"time"
)

const (
	apiKeyEnvVar    = "IDENTITY_API_KEY"
	apiDomainEnvVar = "IDENTITY_API_DOMAIN"
	appNameEnvVar   = "APP_NAME"
)

type EnvVars struct{}

var _ PlatformConfig = EnvVars{}
var _ StorageConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameEnvVar, "Identity SDK")
}

func (EnvVars) GetAPIKey() string {
	return GetEnv(apiKeyEnvVar, "")
}

func (EnvVars) GetAPIDomain() string {
	return GetEnv(apiDomainEnvVar, "us1.gigya.com")
}

func (EnvVars) GetFlowTimeout() time.Duration {
	raw := GetEnv("IDENTITY_FLOW_TIMEOUT", "90s")
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

func (EnvVars) GetStorageDir() string {
	return GetEnv("IDENTITY_STORAGE_DIR", "./identity-data")
}

func (EnvVars) GetDeviceSecret() string {
	return GetEnv("IDENTITY_DEVICE_SECRET", "")
}

func (EnvVars) GetRedisAddr() string {
	return GetEnv("IDENTITY_REDIS_ADDR", "")
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
