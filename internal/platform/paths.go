// Package platform resolves per-OS config and data locations for todo.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const defaultAppName = "todo"

// Paths lists the on-disk locations used by the todo binary.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	// StoreDir holds one JSON document per todo for the diskv driver.
	StoreDir string
}

// Options defines optional settings for configuration.
type Options struct {
	AppName string
	DevMode bool
}

// envOverrides maps each OS to the variables that replace the config and data bases.
var envOverrides = map[string][2]string{
	"linux":   {"XDG_CONFIG_HOME", "XDG_DATA_HOME"},
	"windows": {"APPDATA", "LOCALAPPDATA"},
}

// DefaultPaths returns default paths.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: defaultAppName})
}

// DefaultPathsWithOptions resolves paths for the running OS and environment.
// Dev mode gets its own "-dev" directories so it never touches real data.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	for _, names := range envOverrides {
		for _, name := range names {
			env[name] = os.Getenv(name)
		}
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

func userDataDir(goos, configDir string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	// macOS and the rest keep data beside config.
	return configDir, nil
}

// PathsFor computes paths from explicit inputs, so tests can cover every OS.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if names, ok := envOverrides[goos]; ok {
		if v := env[names[0]]; v != "" {
			configBase = v
		}
		if v := env[names[1]]; v != "" {
			dataBase = v
		}
	}

	appDataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    appDataDir,
		DBPath:     filepath.Join(appDataDir, appName+".db"),
		StoreDir:   filepath.Join(appDataDir, "store"),
	}, nil
}

// StorageFor returns the default storage location for a database driver:
// a directory for diskv, a single file for everything else.
func (p Paths) StorageFor(driver string) string {
	if strings.EqualFold(strings.TrimSpace(driver), "diskv") {
		return p.StoreDir
	}
	return p.DBPath
}
