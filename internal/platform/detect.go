package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "voxscribe"

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

func DefaultModelDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	dataDir, err := defaultDataDirFor(goos, homeDir, xdgDataHome)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

// BundledModelDirs lists where a packaged install keeps its model files,
// relative to the voxscribe executable.
func BundledModelDirs(executable string) []string {
	binDir := filepath.Dir(executable)
	return []string{
		filepath.Join(binDir, "..", "share", appName, "models"),
		filepath.Join(binDir, "models"),
	}
}

// ModelSearchDirs returns the directories to look for named models in,
// most specific first: the override alone when set, otherwise the bundled
// resource dirs followed by the per-user data dir.
func ModelSearchDirs(override string) ([]string, error) {
	if override != "" {
		return []string{filepath.Clean(override)}, nil
	}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, BundledModelDirs(exe)...)
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		if dataDir, err := DefaultModelDirFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME")); err == nil {
			dirs = append(dirs, dataDir)
		}
	}

	if len(dirs) == 0 {
		return nil, errors.New("no model directory available; pass --model-dir")
	}
	return dirs, nil
}

func defaultDataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appName), nil
		}
		return filepath.Join(homeDir, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
