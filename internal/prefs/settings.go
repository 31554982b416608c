package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
)

// DashboardSettings are the user's display choices, layered over the config file.
// Zero fields mean "use the config value".
type DashboardSettings struct {
	Currency           string `json:"currency,omitempty"`
	CoinLimit          int    `json:"coinLimit,omitempty"`
	SortBy             string `json:"sortBy,omitempty"`
	AutoRefresh        *bool  `json:"autoRefresh,omitempty"`
	RefreshIntervalSec int    `json:"refreshIntervalSec,omitempty"`
}

// SettingKeys lists the names accepted by Settings.SetField.
var SettingKeys = []string{"currency", "coin_limit", "sort_by", "auto_refresh", "refresh_interval"}

// ErrUnknownSetting is returned by SetField for names outside SettingKeys.
var ErrUnknownSetting = errors.New("unknown setting")

// Apply overlays s on the feed section of cfg.
func (s DashboardSettings) Apply(cfg *infra.Config) {
	if s.Currency != "" {
		cfg.Feed.Currency = s.Currency
	}
	if s.CoinLimit > 0 {
		cfg.Feed.Limit = s.CoinLimit
	}
	if s.SortBy != "" {
		cfg.Feed.SortBy = s.SortBy
	}
	if s.AutoRefresh != nil {
		cfg.Feed.AutoRefresh = *s.AutoRefresh
	}
	if s.RefreshIntervalSec > 0 {
		cfg.Feed.RefreshInterval = time.Duration(s.RefreshIntervalSec) * time.Second
	}
}

// Settings is the persisted DashboardSettings document.
type Settings struct {
	v *Value[DashboardSettings]
}

// NewSettings loads the document stored under storage.KeySettings.
func NewSettings(ctx context.Context, store storage.Store) (*Settings, error) {
	v, err := NewValue(ctx, store, storage.KeySettings,
		func() DashboardSettings { return DashboardSettings{} }, nil)
	if err != nil {
		return nil, err
	}
	return &Settings{v: v}, nil
}

// Get returns the current settings.
func (s *Settings) Get() DashboardSettings { return s.v.Get() }

// SetField parses value and stores it under the named setting.
func (s *Settings) SetField(ctx context.Context, name, value string) error {
	value = strings.TrimSpace(value)
	var apply func(*DashboardSettings) error

	switch name {
	case "currency":
		apply = func(d *DashboardSettings) error {
			code := strings.ToLower(value)
			if !domain.IsSupportedCurrency(code) {
				return fmt.Errorf("unsupported currency %q", value)
			}
			d.Currency = code
			return nil
		}
	case "coin_limit":
		apply = func(d *DashboardSettings) error {
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 250 {
				return fmt.Errorf("coin_limit must be between 1 and 250")
			}
			d.CoinLimit = n
			return nil
		}
	case "sort_by":
		apply = func(d *DashboardSettings) error {
			opt, err := domain.ParseSortOption(value)
			if err != nil {
				return err
			}
			d.SortBy = string(opt)
			return nil
		}
	case "auto_refresh":
		apply = func(d *DashboardSettings) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("auto_refresh must be true or false")
			}
			d.AutoRefresh = &b
			return nil
		}
	case "refresh_interval":
		apply = func(d *DashboardSettings) error {
			dur, err := time.ParseDuration(value)
			if err != nil || dur < 5*time.Second {
				return fmt.Errorf("refresh_interval must be a duration of at least 5s")
			}
			d.RefreshIntervalSec = int(dur / time.Second)
			return nil
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}

	var applyErr error
	_, _, err := s.v.Update(ctx, func(cur DashboardSettings) (DashboardSettings, bool) {
		next := cur
		if next.AutoRefresh != nil {
			b := *next.AutoRefresh
			next.AutoRefresh = &b
		}
		if applyErr = apply(&next); applyErr != nil {
			return cur, false
		}
		return next, true
	})
	if applyErr != nil {
		return applyErr
	}
	return err
}

// Reset removes every stored setting.
func (s *Settings) Reset(ctx context.Context) error {
	return s.v.Reset(ctx)
}

// Close stops following store changes.
func (s *Settings) Close() { s.v.Close() }
