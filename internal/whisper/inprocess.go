//go:build whispercpp

package whisper

import (
	"fmt"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// InProcessAvailable reports whether the whisper.cpp cgo bindings are
// compiled into this binary.
const InProcessAvailable = true

// LoadInProcess loads the model into this process through the whisper.cpp
// bindings. Requires libwhisper at link time.
func LoadInProcess(modelPath string) (Model, error) {
	model, err := whispercpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp rejected %s: %w", modelPath, err)
	}
	return &inProcessModel{model: model}, nil
}

type inProcessModel struct {
	model whispercpp.Model
}

// NewSession returns a context with the bindings' greedy sampling and the
// temperature fallback disabled, so repeated runs give the same text.
func (m *inProcessModel) NewSession() (Session, error) {
	ctx, err := m.model.NewContext()
	if err != nil {
		return nil, err
	}
	ctx.SetTemperature(0)
	ctx.SetTemperatureFallback(0)
	return &inProcessSession{ctx: ctx}, nil
}

func (m *inProcessModel) Close() error {
	return m.model.Close()
}

type inProcessSession struct {
	ctx      whispercpp.Context
	segments []*Segment
}

func (s *inProcessSession) Process(samples []float32) error {
	if err := s.ctx.Process(samples, nil, nil, nil); err != nil {
		return err
	}

	s.segments = collectSegments(func() (Segment, error) {
		seg, err := s.ctx.NextSegment()
		if err != nil {
			return Segment{}, err
		}
		return Segment{
			Index: seg.Num,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}, nil
	})
	return nil
}

func (s *inProcessSession) SegmentCount() int {
	return len(s.segments)
}

func (s *inProcessSession) Segment(i int) (Segment, bool) {
	if i < 0 || i >= len(s.segments) || s.segments[i] == nil {
		return Segment{}, false
	}
	return *s.segments[i], true
}
