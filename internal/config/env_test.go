package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsApply(t *testing.T) {
	t.Parallel()

	base := Defaults{Model: "tiny.en", Engine: "auto", Addr: "127.0.0.1:8765"}
	env := map[string]string{
		EnvModel:    "base.en",
		EnvModelDir: " /srv/models ",
		EnvEngine:   "",
	}

	got := base.Apply(func(key string) string { return env[key] })
	require.Equal(t, Defaults{
		Model:    "base.en",
		ModelDir: "/srv/models",
		Engine:   "auto",
		Addr:     "127.0.0.1:8765",
	}, got)
	require.Equal(t, "tiny.en", base.Model, "Apply must not mutate the receiver")
}

// The LoadEnvFile tests touch the process environment and stay sequential.

func TestLoadEnvFileExplicitPathRealEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxscribe.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"VOXSCRIBE_MODEL=small.en\nVOXSCRIBE_TEST_FROM_FILE=from-file\n",
	), 0o644))

	t.Setenv(EnvFile, path)
	t.Setenv(EnvModel, "base.en")
	t.Cleanup(func() { _ = os.Unsetenv("VOXSCRIBE_TEST_FROM_FILE") })

	loaded, err := LoadEnvFile()
	require.NoError(t, err)
	require.Equal(t, path, loaded)

	require.Equal(t, "base.en", os.Getenv(EnvModel))
	require.Equal(t, "from-file", os.Getenv("VOXSCRIBE_TEST_FROM_FILE"))

	got := Defaults{Model: "tiny.en"}.Apply(nil)
	require.Equal(t, "base.en", got.Model)
}

func TestLoadEnvFileMissingExplicitPath(t *testing.T) {
	t.Setenv(EnvFile, filepath.Join(t.TempDir(), "missing.env"))

	_, err := LoadEnvFile()
	require.ErrorContains(t, err, "read env file")
}

func TestLoadEnvFileDefaultPathIsOptional(t *testing.T) {
	t.Setenv(EnvFile, "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	loaded, err := LoadEnvFile()
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestLoadEnvFileRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("VOXSCRIBE_MODEL='unterminated\n"), 0o644))
	t.Setenv(EnvFile, path)

	_, err := LoadEnvFile()
	require.ErrorContains(t, err, "load env file")
}
