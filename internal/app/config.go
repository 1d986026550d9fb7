package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/errfix/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "errfix"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# errfix configuration
# Run: errfix --help

# API key for the analysis endpoint. Prefer ERRFIX_API_KEY or
# "errfix config set api_key <key>" over storing it here.
# api_key: ""

# model: gemini-2.5-flash
# endpoint: https://generativelanguage.googleapis.com/v1beta/models

# Root used to resolve project-relative paths in diagnostics.
# project_root: .

# Optional: override the SQLite database location.
# Can also be set via ERRFIX_DB_PATH or --db-path.
# db_path: ~/.config/errfix/errfix.db

# store_capacity: 100
# cache_capacity: 100
# request_timeout: 30s
# max_retries: 2
# retry_delay: 3s
`
