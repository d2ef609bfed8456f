// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the panel configuration loaded from environment variables.
type Config struct {
	APIBaseURL   string
	LoginURL     string
	ListenAddr   string
	DBPath       string
	PollInterval time.Duration
}

// Load reads configuration from INSTOLPANEL_-prefixed environment variables
// and returns a validated Config. All variables are optional:
// INSTOLPANEL_API_BASE_URL (http://localhost:4000),
// INSTOLPANEL_LOGIN_URL (API base URL + /oauth/authorize),
// INSTOLPANEL_LISTEN_ADDR (127.0.0.1:8080),
// INSTOLPANEL_DB_PATH (instol-panel.db),
// INSTOLPANEL_POLL_INTERVAL (30s).
func Load() (*Config, error) {
	apiBaseURL := "http://localhost:4000"
	if v, ok := os.LookupEnv("INSTOLPANEL_API_BASE_URL"); ok && v != "" {
		apiBaseURL = v
	}
	apiBaseURL = strings.TrimRight(apiBaseURL, "/")

	loginURL := apiBaseURL + "/oauth/authorize"
	if v, ok := os.LookupEnv("INSTOLPANEL_LOGIN_URL"); ok && v != "" {
		loginURL = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("INSTOLPANEL_LISTEN_ADDR"); ok && v != "" {
		listenAddr = v
	}

	dbPath := "instol-panel.db"
	if v, ok := os.LookupEnv("INSTOLPANEL_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	pollInterval := 30 * time.Second
	if v, ok := os.LookupEnv("INSTOLPANEL_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("INSTOLPANEL_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("INSTOLPANEL_POLL_INTERVAL must be positive, got %q", v)
		}
		pollInterval = parsed
	}

	return &Config{
		APIBaseURL:   apiBaseURL,
		LoginURL:     loginURL,
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		PollInterval: pollInterval,
	}, nil
}
