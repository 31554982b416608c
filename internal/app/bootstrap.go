package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/Gabrielc476/dashboard-crypto/internal/engine"
	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra/coingecko"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
)

const dbFileName = "dashboard.db"

// Options steer Initialize.
type Options struct {
	ConfigPath  string // Empty: infra.ResolveConfigPath
	SecretsPath string // Empty: infra.ResolveSecretsPath; a missing file is fine
	WorkDir     string // Empty: infra.GetWorkspaceDir
	Ephemeral   bool   // Keep preferences in memory only
	Clock       infra.Clock

	// Override runs after the file, the environment and the stored settings
	// have been applied. Command-line flags hook in here.
	Override func(*infra.Config)
}

// Bootstrap orchestrates the application startup sequence and owns
// everything it creates.
type Bootstrap struct {
	Config    *infra.Config
	Clock     infra.Clock
	Bus       *event.Bus
	Store     storage.Store
	Client    *coingecko.Client
	Favorites *prefs.Favorites
	History   *prefs.History
	Theme     *prefs.Theme
	Settings  *prefs.Settings
	Backups   *storage.BackupManager

	workDir string

	mu      sync.Mutex
	hub     *storage.SyncHub
	workers []*storage.SyncWorker
	closers []func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and opens storage, the API client and
// the persisted preferences.
func (b *Bootstrap) Initialize(ctx context.Context, opts Options) error {
	b.Clock = opts.Clock
	if b.Clock == nil {
		b.Clock = infra.NewRealClock()
	}

	// 1. Config: file (or defaults), then secrets, then flags
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfigOrDefault(cfgPath)
	if err != nil {
		return err
	}
	secretsPath := opts.SecretsPath
	if secretsPath == "" {
		secretsPath = infra.ResolveSecretsPath()
	}
	if secrets, err := infra.LoadSecretConfig(secretsPath); err == nil {
		cfg.ApplySecrets(secrets)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if opts.Override != nil {
		opts.Override(cfg)
	}
	b.Config = cfg

	// 2. Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Debug("Configuration loaded", slog.String("path", cfgPath))

	// 3. Store
	b.Bus = event.NewBus(b.Clock.Now)
	if opts.Ephemeral {
		b.Store = storage.NewMemoryStore(b.Bus)
	} else {
		b.workDir = opts.WorkDir
		if b.workDir == "" {
			b.workDir = infra.GetWorkspaceDir()
		}
		dbPath := cfg.Storage.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(infra.DataDir(b.workDir), dbFileName)
		}
		if err := infra.EnsureDir(filepath.Dir(dbPath)); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		store, err := storage.NewSQLiteStore(dbPath, b.Bus)
		if err != nil {
			return err
		}
		b.Store = store
		slog.Debug("Preference store opened", slog.String("path", dbPath))
	}

	// 4. Stored settings sit between the file and the flags
	if b.Settings, err = prefs.NewSettings(ctx, b.Store); err != nil {
		return err
	}
	b.Settings.Get().Apply(cfg)
	if opts.Override != nil {
		opts.Override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// 5. API client
	b.Client = coingecko.New(coingecko.OptionsFromConfig(cfg, b.Clock))

	// 6. Preferences
	if b.Favorites, err = prefs.NewFavorites(ctx, b.Store, cfg.Favorites.Max, b.Clock); err != nil {
		return err
	}
	if b.History, err = prefs.NewHistory(ctx, b.Store, cfg.Search.HistorySize, b.Clock); err != nil {
		return err
	}
	theme, err := prefs.ParseTheme(cfg.UI.Theme)
	if err != nil {
		theme = prefs.ThemeAuto
	}
	if b.Theme, err = prefs.NewTheme(ctx, b.Store, theme); err != nil {
		return err
	}

	backupDir := infra.BackupDir(b.workDir)
	if opts.Ephemeral {
		backupDir = filepath.Join(os.TempDir(), infra.AppName, "backups")
	}
	b.Backups = storage.NewBackupManager(backupDir, b.Clock)

	slog.Debug("Bootstrap complete",
		slog.Int("favorites", len(b.Favorites.List())),
		slog.String("theme", string(b.Theme.Get())))
	return nil
}

// NewFeed creates a market feed from the current configuration.
func (b *Bootstrap) NewFeed() *engine.MarketFeed {
	return engine.NewMarketFeed(b.Client, engine.FeedOptionsFromConfig(b.Config, b.Clock, b.Bus))
}

// NewSearcher creates a searcher that records picks in the history.
func (b *Bootstrap) NewSearcher() *engine.Searcher {
	return engine.NewSearcher(b.Client, engine.SearchOptionsFromConfig(b.Config, b.History, b.Clock, b.Bus))
}

// StartSync serves local changes to peers and follows the configured peers.
// It does nothing when neither a listen address nor peers are configured.
func (b *Bootstrap) StartSync(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if addr := b.Config.Sync.Listen; addr != "" && b.hub == nil {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("sync listen %s: %w", addr, err)
		}
		hub := storage.NewSyncHub(b.Store)
		b.hub = hub
		go func() {
			if err := hub.Serve(ctx, ln); err != nil {
				slog.Error("Sync hub stopped", slog.String("addr", addr), slog.Any("error", err))
			}
		}()
	}

	if len(b.workers) == 0 {
		for _, peer := range b.Config.Sync.Peers {
			w := storage.NewSyncWorker(peer, b.Store)
			w.Start(ctx)
			b.workers = append(b.workers, w)
			slog.Info("Following sync peer", slog.String("url", peer))
		}
	}
	return nil
}

// OnClose registers fn to run first on Close.
func (b *Bootstrap) OnClose(fn func()) {
	b.mu.Lock()
	b.closers = append(b.closers, fn)
	b.mu.Unlock()
}

// Close releases everything Initialize and StartSync created, newest first.
func (b *Bootstrap) Close() error {
	b.mu.Lock()
	closers := b.closers
	b.closers = nil
	workers := b.workers
	b.workers = nil
	hub := b.hub
	b.hub = nil
	b.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	for _, w := range workers {
		w.Stop()
	}
	if hub != nil {
		if err := hub.Close(); err != nil {
			slog.Warn("Failed to close sync hub", slog.Any("error", err))
		}
	}

	if b.Favorites != nil {
		b.Favorites.Close()
	}
	if b.History != nil {
		b.History.Close()
	}
	if b.Theme != nil {
		b.Theme.Close()
	}
	if b.Settings != nil {
		b.Settings.Close()
	}
	if b.Store != nil {
		return b.Store.Close()
	}
	return nil
}
