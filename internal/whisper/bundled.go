package whisper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/platform"
	"go.uber.org/zap"
)

// BundledEngine runs inference through the whisper-cli executable shipped
// next to voxscribe. Each session writes its samples to a scratch WAV and
// reads the segments back from whisper-cli's JSON output.
type BundledEngine struct {
	Executable string
	TempDir    string
	Logger     *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(config.EnvWhisperPath)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", config.EnvWhisperPath, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	selfExe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxscribe executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(selfExe)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
}

func ResolveBundledEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s; reinstall voxscribe or set %s, expected at ../libexec/whisper/%s",
		selfExecutable, config.EnvWhisperPath, engineBinaryName())
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

// Load satisfies Loader. whisper-cli reads the model on every run, so
// loading only verifies that both the engine and the model are usable.
func (b *BundledEngine) Load(modelPath string) (Model, error) {
	if err := ensureExecutable(b.Executable); err != nil {
		return nil, fmt.Errorf("bundled whisper engine missing or not executable: %w", err)
	}
	if err := CheckModelFile(modelPath); err != nil {
		return nil, err
	}
	return &bundledModel{engine: b, modelPath: modelPath}, nil
}

type bundledModel struct {
	engine    *BundledEngine
	modelPath string
}

func (m *bundledModel) NewSession() (Session, error) {
	return &bundledSession{model: m}, nil
}

func (m *bundledModel) Close() error {
	return nil
}

type bundledSession struct {
	model    *bundledModel
	segments []*Segment
}

func (s *bundledSession) Process(samples []float32) error {
	engine := s.model.engine
	logger := engine.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workDir, err := os.MkdirTemp(engine.TempDir, "voxscribe-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, "input.wav")
	if err := audio.WriteWAV(wavPath, samples, audio.RequiredSampleRate); err != nil {
		return fmt.Errorf("write scratch audio: %w", err)
	}

	outBase := filepath.Join(workDir, "transcript")
	// Greedy decoding, one candidate, no temperature fallback.
	args := []string{
		"-m", s.model.modelPath,
		"-f", wavPath,
		"-oj", "-of", outBase,
		"-np",
		"-bs", "1", "-bo", "1", "-nf",
	}

	cmd := exec.Command(engine.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	logger.Debug("running whisper engine", zap.String("engine", engine.Executable), zap.Strings("args", args))
	started := time.Now()
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return fmt.Errorf("bundled whisper engine at %s is missing required shared libraries (%s); reinstall voxscribe or rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", engine.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return fmt.Errorf("bundled whisper engine crashed with an illegal CPU instruction; " +
				"your CPU may lack required instruction set extensions; " +
				"set " + config.EnvWhisperPath + " to a whisper-cli binary built for your CPU")
		}
		return fmt.Errorf("whisper-cli failed: %w (%s)", err, errText)
	}
	logger.Debug("whisper engine finished", zap.Duration("elapsed", time.Since(started)))

	content, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return fmt.Errorf("read whisper output: %w", err)
	}

	segments, err := parseCLITranscript(content)
	if err != nil {
		return err
	}
	s.segments = segments
	return nil
}

func (s *bundledSession) SegmentCount() int {
	return len(s.segments)
}

func (s *bundledSession) Segment(i int) (Segment, bool) {
	if i < 0 || i >= len(s.segments) || s.segments[i] == nil {
		return Segment{}, false
	}
	return *s.segments[i], true
}

type cliTranscript struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text *string `json:"text"`
	} `json:"transcription"`
}

// parseCLITranscript keeps entries without text as nil so that the
// segment indices still line up with whisper-cli's output.
func parseCLITranscript(content []byte) ([]*Segment, error) {
	var out cliTranscript
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]*Segment, len(out.Transcription))
	for i, entry := range out.Transcription {
		if entry.Text == nil {
			continue
		}
		segments[i] = &Segment{
			Index: i,
			Start: time.Duration(entry.Offsets.From) * time.Millisecond,
			End:   time.Duration(entry.Offsets.To) * time.Millisecond,
			Text:  *entry.Text,
		}
	}
	return segments, nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
