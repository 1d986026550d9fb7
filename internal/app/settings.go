package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath         string `yaml:"db_path"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	ProjectRoot    string `yaml:"project_root"`
	AutoCapture    *bool  `yaml:"auto_capture"`
	StoreCapacity  int    `yaml:"store_capacity"`
	CacheCapacity  int    `yaml:"cache_capacity"`
	RequestTimeout string `yaml:"request_timeout"`
	MaxRetries     *int   `yaml:"max_retries"`
	RetryDelay     string `yaml:"retry_delay"`
}

// Runtime holds effective values after defaults, config.yaml and environment
// have been applied. Persisted preferences are layered on top by the caller.
type Runtime struct {
	APIKey         string        `json:"-"`
	Model          string        `json:"model"`
	Endpoint       string        `json:"endpoint"`
	ProjectRoot    string        `json:"project_root"`
	AutoCapture    bool          `json:"auto_capture"`
	StoreCapacity  int           `json:"store_capacity"`
	CacheCapacity  int           `json:"cache_capacity"`
	RequestTimeout time.Duration `json:"request_timeout"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay"`
}

// HasAPIKey returns true if a credential is configured.
func (r Runtime) HasAPIKey() bool {
	return r.APIKey != ""
}

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultEndpoint       = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultStoreCapacity  = 100
	DefaultCacheCapacity  = 100
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryDelay     = 3 * time.Second
)

// EffectiveRuntime returns validated runtime settings with defaults.
// Invalid or missing config values fall back to safe defaults.
//
//nolint:gocyclo // one branch per setting
func EffectiveRuntime() Runtime {
	cfg := Runtime{
		Model:          DefaultModel,
		Endpoint:       DefaultEndpoint,
		AutoCapture:    true,
		StoreCapacity:  DefaultStoreCapacity,
		CacheCapacity:  DefaultCacheCapacity,
		RequestTimeout: DefaultRequestTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
	}

	if s, err := LoadSettings(); err == nil {
		if s.APIKey != "" {
			cfg.APIKey = s.APIKey
		}
		if s.Model != "" {
			cfg.Model = s.Model
		}
		if s.Endpoint != "" {
			cfg.Endpoint = s.Endpoint
		}
		if s.ProjectRoot != "" {
			cfg.ProjectRoot = s.ProjectRoot
		}
		if s.AutoCapture != nil {
			cfg.AutoCapture = *s.AutoCapture
		}
		if s.StoreCapacity > 0 {
			cfg.StoreCapacity = s.StoreCapacity
		}
		if s.CacheCapacity > 0 {
			cfg.CacheCapacity = s.CacheCapacity
		}
		if d, err := time.ParseDuration(s.RequestTimeout); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
		if s.MaxRetries != nil && *s.MaxRetries >= 0 {
			cfg.MaxRetries = *s.MaxRetries
		}
		if d, err := time.ParseDuration(s.RetryDelay); err == nil && d > 0 {
			cfg.RetryDelay = d
		}
	}

	if v := os.Getenv("ERRFIX_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("ERRFIX_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ERRFIX_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if override := getProjectRootOverride(); override != "" {
		cfg.ProjectRoot = override
	}

	if cfg.StoreCapacity > 10000 {
		cfg.StoreCapacity = 10000
	}
	if cfg.CacheCapacity > 10000 {
		cfg.CacheCapacity = 10000
	}
	if cfg.MaxRetries > 10 {
		cfg.MaxRetries = 10
	}
	return cfg
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
// The override mutex guards process-wide CLI overrides (--db-path, --project).
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	overrideMu          sync.RWMutex
	dbPathOverride      string
	projectRootOverride string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	overrideMu.Lock()
	dbPathOverride = path
	overrideMu.Unlock()
}

func getDBPathOverride() string {
	overrideMu.RLock()
	v := dbPathOverride
	overrideMu.RUnlock()
	return v
}

// SetProjectRootOverride sets a process-wide project root override (--project).
func SetProjectRootOverride(path string) {
	overrideMu.Lock()
	projectRootOverride = path
	overrideMu.Unlock()
}

func getProjectRootOverride() string {
	overrideMu.RLock()
	v := projectRootOverride
	overrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/errfix/config.yaml
// 2) /etc/errfix/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
// Environment variables are handled separately.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		for _, p := range configPaths() {
			s, err := loadSettingsFile(p)
			if err == nil {
				settings = s
				return
			}
			if !errors.Is(err, os.ErrNotExist) {
				settingsErr = err
				return
			}
		}
	})

	return settings, settingsErr
}

func configPaths() []string {
	var paths []string
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "config.yaml"))
	}
	return append(paths,
		filepath.Join(string(os.PathSeparator), "etc", "errfix", "config.yaml"),
		"config.yaml",
	)
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: fixed config lookup paths
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
