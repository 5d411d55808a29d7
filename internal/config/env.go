// Package config supplies flag defaults from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvModel       = "VOXSCRIBE_MODEL"
	EnvModelDir    = "VOXSCRIBE_MODEL_DIR"
	EnvEngine      = "VOXSCRIBE_ENGINE"
	EnvAddr        = "VOXSCRIBE_ADDR"
	EnvWhisperPath = "VOXSCRIBE_WHISPER_PATH"
	EnvFile        = "VOXSCRIBE_ENV_FILE"

	defaultEnvFile = ".env"
)

// Defaults are the values flags start from before the command line is
// parsed.
type Defaults struct {
	Model    string
	ModelDir string
	Engine   string
	Addr     string
}

// LoadEnvFile reads VOXSCRIBE_ENV_FILE, or ./.env when unset, into the
// process environment. Variables that are already set keep their value.
// A missing ./.env is not an error; a missing explicit file is. It returns
// the path that was loaded, or "" when none was.
func LoadEnvFile() (string, error) {
	path := strings.TrimSpace(os.Getenv(EnvFile))
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}

// Apply overrides d with every non-empty variable getenv reports.
func (d Defaults) Apply(getenv func(string) string) Defaults {
	if getenv == nil {
		getenv = os.Getenv
	}

	override := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&d.Model, EnvModel)
	override(&d.ModelDir, EnvModelDir)
	override(&d.Engine, EnvEngine)
	override(&d.Addr, EnvAddr)
	return d
}
