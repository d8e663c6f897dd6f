package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
}

type AppConfig struct {
	Port        string
	Environment string
	LogFilePath string
	BodyLimitMB int
}

type StorageConfig struct {
	UploadDir        string
	CompressionLevel int
}

// Load reads .env (if any) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "3000"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "spectral.log"),
			BodyLimitMB: getEnvAsInt("BODY_LIMIT_MB", 10),
		},
		Storage: StorageConfig{
			UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
			CompressionLevel: getEnvAsInt("UPLOAD_COMPRESSION_LEVEL", 2),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return fmt.Errorf("app port is required")
	}
	if _, err := strconv.Atoi(c.App.Port); err != nil {
		return fmt.Errorf("app port must be numeric, got %q", c.App.Port)
	}
	if c.App.BodyLimitMB < 1 {
		return fmt.Errorf("body limit must be at least 1 MB")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}
	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
