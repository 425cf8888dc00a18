package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting the engine needs. There is no
// package-level mutable state; components receive a *Config (or the
// individual values they need) at construction.
type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	AttachmentDir       string
	ConnectTimeout      time.Duration
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Timezone            string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("CORVO_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	connectTimeout, err := parseConnectTimeout(getEnvOrDefault("CORVO_CONNECT_TIMEOUT", "5s"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("CORVO_ENCRYPTION_KEY_BASE64"),
		AttachmentDir:       getEnvOrDefault("CORVO_ATTACHMENT_DIR", "data/attachments"),
		ConnectTimeout:      connectTimeout,
		DBHost:              getEnvOrDefault("CORVO_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("CORVO_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("CORVO_DB_USER", "corvo"),
		DBPassword:          os.Getenv("CORVO_DB_PASSWORD"),
		DBName:              getEnvOrDefault("CORVO_DB_NAME", "corvo"),
		DBSSLMode:           getEnvOrDefault("CORVO_DB_SSLMODE", "disable"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("CORVO_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.AttachmentDir == "" {
		return fmt.Errorf("CORVO_ATTACHMENT_DIR must not be empty")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("CORVO_DB_PASSWORD is required")
	}

	if c.DBPort != "" {
		if err := validatePort(c.DBPort); err != nil {
			return fmt.Errorf("CORVO_DB_PORT is not a valid port number: %s", c.DBPort)
		}
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.DBUsername),
		url.QueryEscape(c.DBPassword),
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func parseConnectTimeout(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("CORVO_CONNECT_TIMEOUT is not a valid duration: %s", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("CORVO_CONNECT_TIMEOUT must be positive, got %s", raw)
	}
	return d, nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return err
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port out of range: %d", n)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
