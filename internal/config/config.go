package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all server configuration, read from environment variables.
type Config struct {
	Host           string   `envconfig:"HOST" default:"0.0.0.0"`
	Port           int      `envconfig:"PORT" default:"8000"`
	ModelDir       string   `envconfig:"MODEL_DIR" default:"models"`
	OrtLibraryPath string   `envconfig:"ORT_LIBRARY_PATH"`
	MaxImageBytes  int64    `envconfig:"MAX_IMAGE_BYTES" default:"10485760"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.MaxImageBytes <= 0 {
		return Config{}, fmt.Errorf("config: MAX_IMAGE_BYTES must be positive, got %d", cfg.MaxImageBytes)
	}
	return cfg, nil
}

// Addr returns the host:port bind address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
