package whisper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultModel = "tiny.en"

// ggml model files start with the little-endian uint32 0x67676d6c.
var ggmlMagic = []byte("lmgg")

type ModelInfo struct {
	Name     string
	FileName string
}

type ResolvedModel struct {
	Name         string
	Path         string
	IsCustomPath bool
}

var registry = map[string]ModelInfo{}

func init() {
	for _, name := range []string{"tiny", "tiny.en", "base", "base.en", "small", "small.en", "medium", "medium.en", "large-v3"} {
		registry[name] = ModelInfo{Name: name, FileName: "ggml-" + name + ".bin"}
	}
}

func ModelNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupModel(name string) (ModelInfo, bool) {
	model, ok := registry[name]
	return model, ok
}

// ResolveModel maps a model name or file path to a model file. Named models
// are looked up in searchDirs in order; the first existing file wins.
// Models are never downloaded, so a missing file is an ErrModelLoad.
func ResolveModel(modelRef string, searchDirs []string) (ResolvedModel, error) {
	if strings.TrimSpace(modelRef) == "" {
		modelRef = DefaultModel
	}

	if model, ok := LookupModel(modelRef); ok {
		if len(searchDirs) == 0 {
			return ResolvedModel{}, fmt.Errorf("%w: no model directory to search for %q", ErrModelLoad, model.Name)
		}

		for _, dir := range searchDirs {
			candidate := filepath.Join(dir, model.FileName)
			_, err := os.Stat(candidate)
			if err == nil {
				return ResolvedModel{Name: model.Name, Path: candidate}, nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return ResolvedModel{}, fmt.Errorf("%w: stat model path: %w", ErrModelLoad, err)
			}
		}

		return ResolvedModel{}, fmt.Errorf("%w: model %q (%s) not found in %s; install it there or pass --model <path>",
			ErrModelLoad, model.Name, model.FileName, strings.Join(searchDirs, ", "))
	}

	if !looksLikePath(modelRef) {
		return ResolvedModel{}, fmt.Errorf("%w: unknown model %q (known models: %s)", ErrModelLoad, modelRef, strings.Join(ModelNames(), ", "))
	}

	customPath := filepath.Clean(modelRef)
	if _, err := os.Stat(customPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("%w: custom model path does not exist: %s", ErrModelLoad, customPath)
		}
		return ResolvedModel{}, fmt.Errorf("%w: stat custom model path: %w", ErrModelLoad, err)
	}

	return ResolvedModel{
		Path:         customPath,
		IsCustomPath: true,
	}, nil
}

// CheckModelFile rejects paths that cannot be a ggml whisper model before
// an engine spends time on them.
func CheckModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat model file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(ggmlMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("%s is not a ggml model: %w", path, err)
	}
	if !bytes.Equal(magic, ggmlMagic) {
		return fmt.Errorf("%s is not a ggml model (bad magic %q)", path, magic)
	}
	return nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
