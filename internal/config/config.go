package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	API         APIConfig
	DevServer   DevServerConfig
	LogLevel    string
}

type APIConfig struct {
	BaseURL string
	// Token is an optional pre-issued bearer token. When empty, the session
	// store supplies the token after login.
	Token          string
	RequestTimeout time.Duration
}

type DevServerConfig struct {
	Port string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("API_REQUEST_TIMEOUT", "10s")
	viper.SetDefault("DEVSERVER_PORT", "3000")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(getEnvOrViper("API_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		API: APIConfig{
			BaseURL:        getEnvOrViper("API_BASE_URL", "http://localhost:3000"),
			Token:          getEnvOrViper("API_TOKEN", ""),
			RequestTimeout: timeout,
		},
		DevServer: DevServerConfig{
			Port: getEnvOrViper("DEVSERVER_PORT", "3000"),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if cfg.API.RequestTimeout <= 0 {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must be positive")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
