// Package config assembles the host program's configuration from the
// environment. The engine and gateway never read the environment
// themselves — they receive these values at construction.
package config

import (
	"errors"
	"fmt"
	"os"
)

// Config is the fully resolved program configuration.
type Config struct {
	// OrganizationName is the peoply.app organization slug to mirror.
	OrganizationName string
	// DiscordToken is the bot credential.
	DiscordToken string
	// DiscordChannelID is the target text channel.
	DiscordChannelID string
	// HTTPPort is where the diagnostics server listens.
	HTTPPort string
}

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// LoadFromEnv reads and validates the program configuration.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		OrganizationName: os.Getenv("ORGANIZATION_NAME"),
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
		HTTPPort:         getEnvOrDefault("HTTP_PORT", "8080"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required field is present.
func (c *Config) Validate() error {
	if c.OrganizationName == "" {
		return &ValidationError{Field: "ORGANIZATION_NAME", Message: "must not be empty"}
	}
	if c.DiscordToken == "" {
		return &ValidationError{Field: "DISCORD_TOKEN", Message: "must not be empty"}
	}
	if c.DiscordChannelID == "" {
		return &ValidationError{Field: "DISCORD_CHANNEL_ID", Message: "must not be empty"}
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
