package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	EnvListen   = "RADIOBOX_LISTEN"
	EnvProbeURL = "RADIOBOX_PROBE_URL"
	EnvLogLevel = "RADIOBOX_LOG_LEVEL"
)

// LoadEnv reads .env files into the process environment without overriding variables
// that are already set. With no paths, ".env" in the working directory is used.
// A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// ApplyEnv overrides file settings with RADIOBOX_* environment variables.
func (c *Config) ApplyEnv() {
	c.Web.Listen = GetEnv(EnvListen, c.Web.Listen)
	c.Recovery.ProbeURL = GetEnv(EnvProbeURL, c.Recovery.ProbeURL)
	c.LogLevel = GetEnv(EnvLogLevel, c.LogLevel)
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(userCacheDir, AppName), nil
}
