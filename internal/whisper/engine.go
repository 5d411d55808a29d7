package whisper

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	EngineAuto      = "auto"
	EngineInProcess = "inprocess"
	EngineCLI       = "cli"
)

// Segment is one span of text produced for a contiguous part of the audio.
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Session runs a single inference pass. Sessions are not safe for
// concurrent use and are only handed out by Host.WithExclusiveAccess.
type Session interface {
	Process(samples []float32) error
	SegmentCount() int
	// Segment returns false when the segment at index i is unavailable.
	Segment(i int) (Segment, bool)
}

type Model interface {
	NewSession() (Session, error)
	Close() error
}

// Loader builds a Model from a model file on disk.
type Loader func(modelPath string) (Model, error)

// SelectLoader picks the inference engine. "auto" prefers the in-process
// whisper.cpp bindings when they are compiled in.
func SelectLoader(engine string, logger *zap.Logger) (Loader, string, error) {
	switch engine {
	case "", EngineAuto:
		if InProcessAvailable {
			return LoadInProcess, EngineInProcess, nil
		}
		return selectBundled(logger)
	case EngineInProcess:
		return LoadInProcess, EngineInProcess, nil
	case EngineCLI:
		return selectBundled(logger)
	default:
		return nil, "", fmt.Errorf("unknown engine %q (expected %s, %s or %s)", engine, EngineAuto, EngineInProcess, EngineCLI)
	}
}

func selectBundled(logger *zap.Logger) (Loader, string, error) {
	engine, err := NewBundledEngine(logger)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	return engine.Load, EngineCLI, nil
}

// maxSegmentReadFailures bounds a run of consecutive failed segment reads.
const maxSegmentReadFailures = 4

// collectSegments drains next until io.EOF. A failed read leaves a nil gap
// at that index and collection moves on to the next one. A run of
// maxSegmentReadFailures failures ends the list and the run is dropped.
func collectSegments(next func() (Segment, error)) []*Segment {
	var segments []*Segment
	failures := 0
	for {
		seg, err := next()
		switch {
		case errors.Is(err, io.EOF):
			return segments
		case err != nil:
			failures++
			if failures == maxSegmentReadFailures {
				return segments[:len(segments)-(failures-1)]
			}
			segments = append(segments, nil)
		default:
			failures = 0
			segments = append(segments, &seg)
		}
	}
}
