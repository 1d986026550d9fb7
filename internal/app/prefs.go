package app

import "os"

// Keys under which `errfix config set` persists preferences in the KV store.
const (
	PrefAPIKey      = "settings/api_key"
	PrefModel       = "settings/model"
	PrefAutoCapture = "settings/auto_capture"
)

// StoredPrefs are preferences read back from the KV store. Empty or nil
// fields were never set.
type StoredPrefs struct {
	APIKey      string
	Model       string
	AutoCapture *bool
}

// WithStored layers persisted preferences over config.yaml values.
// Environment variables still win.
func (r Runtime) WithStored(p StoredPrefs) Runtime {
	if p.APIKey != "" && os.Getenv("ERRFIX_API_KEY") == "" {
		r.APIKey = p.APIKey
	}
	if p.Model != "" && os.Getenv("ERRFIX_MODEL") == "" {
		r.Model = p.Model
	}
	if p.AutoCapture != nil {
		r.AutoCapture = *p.AutoCapture
	}
	return r
}
