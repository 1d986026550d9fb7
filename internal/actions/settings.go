package actions

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/cache"
)

// settingKeys maps `errfix config set` names onto KV keys.
var settingKeys = map[string]string{
	"api_key":      app.PrefAPIKey,
	"model":        app.PrefModel,
	"auto_capture": app.PrefAutoCapture,
}

// SettingNames lists the keys accepted by SetSetting.
func SettingNames() []string {
	return []string{"api_key", "auto_capture", "model"}
}

// LoadStoredPrefs reads persisted preferences. Read failures are logged and
// treated as unset.
func LoadStoredPrefs(kv cache.KV) app.StoredPrefs {
	var p app.StoredPrefs
	if kv == nil {
		return p
	}
	get := func(key string) string {
		v, ok, err := kv.Get(key)
		if err != nil {
			slog.Warn("preference read failed", "key", key, "error", err)
			return ""
		}
		if !ok {
			return ""
		}
		return v
	}

	p.APIKey = get(app.PrefAPIKey)
	p.Model = get(app.PrefModel)
	if raw := get(app.PrefAutoCapture); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			p.AutoCapture = &b
		} else {
			slog.Warn("preference ignored", "key", app.PrefAutoCapture, "value", raw)
		}
	}
	return p
}

// SetSetting validates and persists one preference. An empty value deletes it.
func SetSetting(kv cache.KV, name, value string) error {
	key, ok := settingKeys[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("unknown setting %q (supported: %s)", name, strings.Join(SettingNames(), ", "))
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return kv.Delete(key)
	}
	if key == app.PrefAutoCapture {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto_capture must be true or false: %w", err)
		}
		value = strconv.FormatBool(b)
	}
	if err := kv.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// MaskKey shows only the last four characters of a credential.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
