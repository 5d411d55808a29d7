package cli

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/fmueller/voxscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

type stubTranscriber func(path string) (string, error)

func (f stubTranscriber) Transcribe(path string) (string, error) { return f(path) }

func stubLoad(t transcriber, closes *atomic.Int32) func(...whisper.HostOption) (*loadedPipeline, error) {
	return func(...whisper.HostOption) (*loadedPipeline, error) {
		return &loadedPipeline{
			transcriber: t,
			modelPath:   "/models/ggml-tiny.en.bin",
			closeFn: func() error {
				if closes != nil {
					closes.Add(1)
				}
				return nil
			},
		}, nil
	}
}

func executeTranscribe(t *testing.T, app *appState, args ...string) (string, error) {
	t.Helper()

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTranscribeCommandSingleFile(t *testing.T) {
	t.Parallel()

	var closes atomic.Int32
	app := &appState{noProgress: true, loadFn: stubLoad(stubTranscriber(func(path string) (string, error) {
		return " Hello world.", nil
	}), &closes)}

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"/tmp/audio.wav"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, " Hello world.\n", out.String())
	require.EqualValues(t, 1, closes.Load())
}

func TestTranscribeCommandPrintsInArgumentOrder(t *testing.T) {
	t.Parallel()

	delays := map[string]time.Duration{"a.wav": 30 * time.Millisecond, "b.wav": 0, "c.wav": 10 * time.Millisecond}
	app := &appState{noProgress: true, loadFn: stubLoad(stubTranscriber(func(path string) (string, error) {
		time.Sleep(delays[path])
		return "text of " + path, nil
	}), nil)}

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"a.wav", "b.wav", "c.wav"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "a.wav: text of a.wav\nb.wav: text of b.wav\nc.wav: text of c.wav\n", out.String())
}

func TestTranscribeCommandReportsFailuresAfterSuccesses(t *testing.T) {
	t.Parallel()

	var closes atomic.Int32
	app := &appState{noProgress: true, loadFn: stubLoad(stubTranscriber(func(path string) (string, error) {
		if path == "bad.wav" {
			return "", fmt.Errorf("%w: %s", audio.ErrOpen, path)
		}
		return "ok", nil
	}), &closes)}

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"good.wav", "bad.wav"})

	err := cmd.Execute()
	require.ErrorIs(t, err, audio.ErrOpen)
	require.Contains(t, err.Error(), "bad.wav: ")
	require.Equal(t, "good.wav: ok\n", out.String())
	require.EqualValues(t, 1, closes.Load())
}

func TestTranscribeCommandSingleFailureIsNotPrefixed(t *testing.T) {
	t.Parallel()

	engineErr := fmt.Errorf("%w: whisper-cli failed", whisper.ErrInference)
	app := &appState{noProgress: true, loadFn: stubLoad(stubTranscriber(func(string) (string, error) {
		return "", engineErr
	}), nil)}

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"clip.wav"})

	err := cmd.Execute()
	require.ErrorIs(t, err, whisper.ErrInference)
	require.Equal(t, engineErr.Error(), err.Error())
	require.Empty(t, out.String())
}

func TestTranscribeCommandLoadFailure(t *testing.T) {
	t.Parallel()

	loadErr := fmt.Errorf("%w: model missing", whisper.ErrModelLoad)
	app := &appState{noProgress: true, loadFn: func(...whisper.HostOption) (*loadedPipeline, error) {
		return nil, loadErr
	}}

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"clip.wav"})

	require.ErrorIs(t, cmd.Execute(), whisper.ErrModelLoad)
	require.Empty(t, out.String())
}

func TestTranscribeCommandPrintsBlankTranscript(t *testing.T) {
	t.Parallel()

	app := &appState{noProgress: true, loadFn: stubLoad(stubTranscriber(func(string) (string, error) {
		return "", nil
	}), nil)}

	out := new(bytes.Buffer)
	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"silence.wav"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "\n", out.String())
}

type echoModel struct{}

func (echoModel) NewSession() (whisper.Session, error) { return &echoSession{}, nil }
func (echoModel) Close() error { return nil }

type echoSession struct{ text string }

func (s *echoSession) Process(samples []float32) error {
	s.text = fmt.Sprintf("%d samples", len(samples))
	return nil
}

func (s *echoSession) SegmentCount() int { return 1 }

func (s *echoSession) Segment(int) (whisper.Segment, bool) {
	return whisper.Segment{Text: s.text}, true
}

func TestTranscribeCommandRunsPipeline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	modelPath := writeFakeModel(t, dir, "ggml-tiny.en.bin")
	host, err := whisper.Load(modelPath, func(string) (whisper.Model, error) { return echoModel{}, nil }, nil)
	require.NoError(t, err)

	clip := filepath.Join(dir, "clip.wav")
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.25
	}
	require.NoError(t, audio.WriteWAV(clip, samples, audio.RequiredSampleRate))

	cdRate := filepath.Join(dir, "cd-rate.wav")
	require.NoError(t, audio.WriteWAV(cdRate, samples, 44100))

	app := &appState{noProgress: true, loadFn: func(...whisper.HostOption) (*loadedPipeline, error) {
		return &loadedPipeline{
			transcriber: transcribe.New(host, transcribe.Options{}),
			modelPath:   modelPath,
			closeFn:     host.Close,
		}, nil
	}}

	out, err := executeTranscribe(t, app, clip, cdRate)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	require.Equal(t, transcribe.KindUnsupportedFormat, transcribe.KindOf(err))
	require.Equal(t, clip+": 1600 samples\n", out)

	require.ErrorIs(t, host.WithExclusiveAccess(func(whisper.Session) error { return nil }), whisper.ErrHostClosed)
}
