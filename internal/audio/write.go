package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores normalized mono samples as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []float32, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close wav: %w", closeErr)
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, RequiredBitDepth, RequiredChannels, pcmAudioFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: RequiredChannels, SampleRate: sampleRate},
		Data:           Denormalize(samples),
		SourceBitDepth: RequiredBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Denormalize is the inverse of Normalize, clamped to the int16 range.
func Denormalize(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int(v)
	}
	return out
}
