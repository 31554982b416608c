package prefs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
)

// ThemeMode is the stored theme preference.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
	ThemeAuto  ThemeMode = "auto"
)

// SystemThemeEnv overrides the detected system theme (light or dark).
const SystemThemeEnv = "DASHBOARD_THEME_SYSTEM"

// ThemeModes lists the valid modes in cycle order.
var ThemeModes = []ThemeMode{ThemeLight, ThemeDark, ThemeAuto}

// ParseTheme validates s.
func ParseTheme(s string) (ThemeMode, error) {
	switch m := ThemeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ThemeLight, ThemeDark, ThemeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("invalid theme %q: want light, dark or auto", s)
	}
}

// Label is the display name of m.
func (m ThemeMode) Label() string {
	switch m {
	case ThemeLight:
		return "Light"
	case ThemeDark:
		return "Dark"
	default:
		return "Auto"
	}
}

// Icon is the display glyph of m.
func (m ThemeMode) Icon() string {
	switch m {
	case ThemeLight:
		return "☀️"
	case ThemeDark:
		return "🌙"
	default:
		return "🔄"
	}
}

// SystemTheme reads the system preference, dark unless the environment says light.
func SystemTheme() ThemeMode {
	if strings.EqualFold(os.Getenv(SystemThemeEnv), string(ThemeLight)) {
		return ThemeLight
	}
	return ThemeDark
}

// Theme is the persisted theme preference.
type Theme struct {
	v      *Value[ThemeMode]
	system func() ThemeMode
}

// NewTheme loads the preference stored under storage.KeyTheme. def is used when none is stored.
func NewTheme(ctx context.Context, store storage.Store, def ThemeMode) (*Theme, error) {
	if _, err := ParseTheme(string(def)); err != nil {
		def = ThemeAuto
	}
	v, err := NewValue(ctx, store, storage.KeyTheme,
		func() ThemeMode { return def },
		func(m ThemeMode) ThemeMode {
			if parsed, err := ParseTheme(string(m)); err == nil {
				return parsed
			}
			return def
		})
	if err != nil {
		return nil, err
	}
	return &Theme{v: v, system: SystemTheme}, nil
}

// Get returns the stored mode.
func (t *Theme) Get() ThemeMode { return t.v.Get() }

// Resolved maps auto to the system theme.
func (t *Theme) Resolved() ThemeMode {
	if m := t.Get(); m != ThemeAuto {
		return m
	}
	return t.system()
}

// IsSystemManaged reports whether the mode follows the system.
func (t *Theme) IsSystemManaged() bool { return t.Get() == ThemeAuto }

// IsDark reports whether the resolved theme is dark.
func (t *Theme) IsDark() bool { return t.Resolved() == ThemeDark }

// Set stores m. Invalid modes are rejected.
func (t *Theme) Set(ctx context.Context, m ThemeMode) error {
	parsed, err := ParseTheme(string(m))
	if err != nil {
		return err
	}
	_, _, err = t.v.Update(ctx, func(cur ThemeMode) (ThemeMode, bool) {
		return parsed, cur != parsed
	})
	return err
}

// Toggle switches between light and dark based on the resolved theme. Auto is left.
func (t *Theme) Toggle(ctx context.Context) (ThemeMode, error) {
	next := ThemeDark
	if t.Resolved() == ThemeDark {
		next = ThemeLight
	}
	return next, t.Set(ctx, next)
}

// Cycle steps light -> dark -> auto -> light.
func (t *Theme) Cycle(ctx context.Context) (ThemeMode, error) {
	next := ThemeModes[0]
	for i, m := range ThemeModes {
		if m == t.Get() {
			next = ThemeModes[(i+1)%len(ThemeModes)]
			break
		}
	}
	return next, t.Set(ctx, next)
}

// ResetToSystem stores auto.
func (t *Theme) ResetToSystem(ctx context.Context) error {
	return t.Set(ctx, ThemeAuto)
}

// OnChange registers fn to run with the stored mode after every change.
func (t *Theme) OnChange(fn func(ThemeMode)) { t.v.OnChange(fn) }

// Close stops following store changes.
func (t *Theme) Close() { t.v.Close() }
