// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for chainlit-ui data.
type Paths struct {
	Data   string // ~/.local/share/chainlit
	Config string // ~/.config/chainlit
	Cache  string // ~/.cache/chainlit
	State  string // ~/.local/state/chainlit
}

// GetPaths returns the standard paths for chainlit-ui data.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "chainlit"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "chainlit"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "chainlit"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "chainlit"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// HistoryPath returns the default root for the file-backed history store.
func (p *Paths) HistoryPath() string {
	return filepath.Join(p.Data, "history")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "chainlit.json")
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".chainlit", "config.json")
}

// WatchPaths returns every config file Load would consult for the given
// project directory, in load order. The dev-mode watcher subscribes to these
// so config edits surface as change events.
func WatchPaths(directory string) []string {
	globalDir := GetPaths().Config
	paths := []string{
		filepath.Join(globalDir, "chainlit.json"),
		filepath.Join(globalDir, "chainlit.jsonc"),
	}
	if directory != "" {
		paths = append(paths,
			filepath.Join(directory, "chainlit.json"),
			filepath.Join(directory, "chainlit.jsonc"),
			filepath.Join(directory, ".chainlit", "config.json"),
			filepath.Join(directory, ".chainlit", "config.jsonc"),
		)
	}
	if override := os.Getenv("CHAINLIT_CONFIG"); override != "" {
		paths = append(paths, override)
	}
	return paths
}
