package config

import (
	"os"
	"path/filepath"
)

const appDir = "ftlsim"

// xdgDir resolves $env/ftlsim, falling back to ~/<fallback...>/ftlsim and
// then to the working directory.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append(append([]string{home}, fallback...), appDir)...)
}

// GetConfigDir is $XDG_CONFIG_HOME/ftlsim.
func GetConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// getDataDir is $XDG_DATA_HOME/ftlsim, where snapshots live by default.
func getDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
