// Package transcribe turns a 16 kHz mono WAV file into text using the
// process-wide whisper model host.
package transcribe

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/whisper"
	"go.uber.org/zap"
)

// ModelHost is the exclusive-access gate around the loaded model.
// *whisper.Host implements it.
type ModelHost interface {
	WithExclusiveAccess(fn func(whisper.Session) error) error
}

type Options struct {
	// SilenceGate skips inference for clips whose level stays below
	// SilenceThresholdDBFS and returns an empty transcript instead.
	SilenceGate          bool
	SilenceThresholdDBFS float64
	Logger               *zap.Logger
}

type Pipeline struct {
	host   ModelHost
	opts   Options
	logger *zap.Logger
}

func New(host ModelHost, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{host: host, opts: opts, logger: logger}
}

// Transcribe reads the WAV file at audioPath and returns the joined text of
// all segments the model produced. An empty string means no speech was
// found. Reading and decoding run without coordination; only inference is
// serialized through the host. There is no cancellation: once called, the
// work runs to completion.
func (p *Pipeline) Transcribe(audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	log := p.logger.With(zap.String("audio", audioPath))
	started := time.Now()

	clip, err := audio.LoadClip(audioPath)
	if err != nil {
		log.Warn("audio rejected", zap.String("kind", string(KindOf(err))), zap.Error(err))
		return "", err
	}
	log.Debug("audio decoded", zap.Int("samples", len(clip.Samples)), zap.Duration("duration", clip.Duration()))

	if p.opts.SilenceGate {
		if silent, metrics := audio.IsSilent(clip.Samples, p.opts.SilenceThresholdDBFS); silent {
			log.Info(
				"audio considered silent; skipping transcription",
				zap.Float64("rms_dbfs", metrics.RMSdBFS),
				zap.Float64("peak_dbfs", metrics.PeakdBFS),
				zap.Float64("threshold_dbfs", p.opts.SilenceThresholdDBFS),
			)
			return "", nil
		}
	}

	var transcript string
	var segments int
	err = p.host.WithExclusiveAccess(func(session whisper.Session) error {
		if err := session.Process(clip.Samples); err != nil {
			return fmt.Errorf("%w: %w", whisper.ErrInference, err)
		}
		transcript, segments = joinSegments(session, log)
		return nil
	})
	if err != nil {
		log.Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}

	log.Info("transcription finished",
		zap.Int("segments", segments),
		zap.Int("chars", len(transcript)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return transcript, nil
}

// joinSegments concatenates segment texts in index order with no separator.
// Unavailable indices are skipped.
func joinSegments(session whisper.Session, log *zap.Logger) (string, int) {
	var b strings.Builder
	count := session.SegmentCount()
	joined := 0
	for i := 0; i < count; i++ {
		seg, ok := session.Segment(i)
		if !ok {
			log.Debug("segment unavailable; skipping", zap.Int("index", i), zap.Int("count", count))
			continue
		}
		b.WriteString(seg.Text)
		joined++
	}
	return b.String(), joined
}
