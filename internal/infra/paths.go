package infra

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	AppName = "crypto-dashboard"
)

// GetWorkspaceDir returns the root directory for all runtime data.
// It prioritizes a local "_workspace" directory if it exists (Portable/Dev mode).
// Otherwise, it returns the OS-standard data directory.
func GetWorkspaceDir() string {
	// 1. Check for local workspace (Priority 1: Portable/Dev)
	localDir := "_workspace"
	if _, err := os.Stat(localDir); err == nil {
		return localDir
	}

	// 2. Identify OS Standard Data Dir (Priority 2: Production)
	var baseDir string
	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, "Library", "Application Support")
	case "linux":
		// XDG_DATA_HOME, then ~/.local/share
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			home, _ := os.UserHomeDir()
			baseDir = filepath.Join(home, ".local", "share")
		}
	default:
		return localDir
	}

	return filepath.Join(baseDir, AppName)
}

// DataDir is where the preference database lives.
func DataDir(workDir string) string {
	return filepath.Join(workDir, "data")
}

// BackupDir is where favorites exports are written.
func BackupDir(workDir string) string {
	return filepath.Join(workDir, "backups")
}

// EnsureDir creates the directory if it doesn't exist with safe permissions (0755).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// ResolveConfigPath attempts to find the config.yaml.
// Priority: 1. Current Dir, 2. OS Config Dir
func ResolveConfigPath() string {
	return resolveInConfigDirs("config.yaml")
}

// ResolveSecretsPath finds secrets.yaml next to the config.
func ResolveSecretsPath() string {
	return resolveInConfigDirs("secrets.yaml")
}

func resolveInConfigDirs(name string) string {
	defaultPath := filepath.Join("configs", name)

	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	if configRoot, err := os.UserConfigDir(); err == nil {
		osPath := filepath.Join(configRoot, AppName, name)
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	// Let the loader report the missing file
	return defaultPath
}
