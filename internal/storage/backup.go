package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
)

// Backup is one favorites export file on disk.
type Backup struct {
	Path     string
	UnixNano int64
}

// BackupManager writes favorites exports as timestamped files in one directory.
type BackupManager struct {
	dir   string
	clock infra.Clock
}

// NewBackupManager creates a manager for dir. A nil clock uses wall time.
func NewBackupManager(dir string, clock infra.Clock) *BackupManager {
	if clock == nil {
		clock = infra.NewRealClock()
	}
	return &BackupManager{dir: dir, clock: clock}
}

// Dir returns the backup directory.
func (bm *BackupManager) Dir() string { return bm.dir }

// Save writes data as favorites_<unixnano>.json and returns its path.
func (bm *BackupManager) Save(data []byte) (string, error) {
	if err := os.MkdirAll(bm.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	ts := bm.clock.Now().UnixNano()
	path := filepath.Join(bm.dir, fmt.Sprintf("favorites_%d.json", ts))
	// Two saves inside one clock tick would collide.
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		ts++
		path = filepath.Join(bm.dir, fmt.Sprintf("favorites_%d.json", ts))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	slog.Info("Favorites backup saved", slog.String("path", path))
	return path, nil
}

// List returns the backups, newest first.
func (bm *BackupManager) List() ([]Backup, error) {
	entries, err := os.ReadDir(bm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var backups []Backup
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "favorites_%d.json", &ts); err != nil {
			continue // Not a backup file
		}
		backups = append(backups, Backup{Path: filepath.Join(bm.dir, entry.Name()), UnixNano: ts})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].UnixNano > backups[j].UnixNano })
	return backups, nil
}

// LoadLatest returns the contents of the newest backup, or nil if there is none.
func (bm *BackupManager) LoadLatest() ([]byte, error) {
	backups, err := bm.List()
	if err != nil || len(backups) == 0 {
		return nil, err
	}

	data, err := os.ReadFile(backups[0].Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	slog.Info("Favorites backup loaded", slog.String("path", backups[0].Path))
	return data, nil
}

// Cleanup removes old backups, keeping only the latest keepCount.
func (bm *BackupManager) Cleanup(keepCount int) error {
	backups, err := bm.List()
	if err != nil {
		return err
	}
	if keepCount < 0 {
		keepCount = 0
	}

	for i := keepCount; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			slog.Warn("Failed to remove old backup", slog.String("path", backups[i].Path), slog.Any("error", err))
		} else {
			slog.Debug("Removed old backup", slog.String("path", backups[i].Path))
		}
	}
	return nil
}
