package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

const (
	RequiredSampleRate = 16000
	RequiredChannels   = 1
	RequiredBitDepth   = 16

	pcmAudioFormat = 1
	bytesPerSample = RequiredBitDepth / 8
)

var (
	ErrOpen              = errors.New("cannot open audio file")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrDecode            = errors.New("cannot decode audio samples")
)

// FormatError reports a WAV header that declares something other than
// 16 kHz mono 16-bit PCM. It matches ErrUnsupportedFormat.
type FormatError struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	AudioFormat int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf(
		"%s: audio must be %d Hz mono %d-bit PCM, got %d Hz with %d channel(s) at %d bits (wav format %d)",
		ErrUnsupportedFormat, RequiredSampleRate, RequiredBitDepth, e.SampleRate, e.Channels, e.BitDepth, e.AudioFormat,
	)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

type Format struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	AudioFormat int
}

// Clip is a decoded, normalized audio clip ready for inference.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// File is an opened WAV container whose header has been parsed but whose
// samples have not been read yet.
type File struct {
	path   string
	f      *os.File
	dec    *wav.Decoder
	format Format
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: parse wav header of %s: %w", ErrOpen, path, err)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a wav file with a fmt chunk", ErrOpen, path)
	}

	return &File{
		path: path,
		f:    f,
		dec:  dec,
		format: Format{
			SampleRate:  int(dec.SampleRate),
			Channels:    int(dec.NumChans),
			BitDepth:    int(dec.BitDepth),
			AudioFormat: int(dec.WavAudioFormat),
		},
	}, nil
}

func (w *File) Format() Format {
	return w.format
}

// Validate checks the declared header against the format inference needs.
// It never converts: a mismatch is always an error.
func (w *File) Validate() error {
	ft := w.format
	if ft.SampleRate != RequiredSampleRate ||
		ft.Channels != RequiredChannels ||
		ft.BitDepth != RequiredBitDepth ||
		ft.AudioFormat != pcmAudioFormat {
		return &FormatError{
			SampleRate:  ft.SampleRate,
			Channels:    ft.Channels,
			BitDepth:    ft.BitDepth,
			AudioFormat: ft.AudioFormat,
		}
	}
	return nil
}

// Decode reads every sample of the data chunk in file order. The chunk must
// hold a whole number of samples and be fully present in the file.
func (w *File) Decode() ([]int16, error) {
	if err := w.dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: find data chunk in %s: %w", ErrDecode, w.path, err)
	}

	declared, err := w.declaredDataSize()
	if err != nil {
		return nil, fmt.Errorf("%w: read data chunk size of %s: %w", ErrDecode, w.path, err)
	}
	if declared%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %s data chunk declares %d bytes, not a whole number of %d-bit samples",
			ErrDecode, w.path, declared, RequiredBitDepth)
	}

	samples := make([]int16, declared/bytesPerSample)
	if err := binary.Read(io.LimitReader(w.dec.PCMChunk, declared), binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("%w: %s data chunk declares %d bytes: %w", ErrDecode, w.path, declared, err)
	}
	return samples, nil
}

// declaredDataSize returns the size field of the data chunk header the
// decoder just consumed. The riff parser rounds odd sizes up to include the
// pad byte, so the header is read back as written.
func (w *File) declaredDataSize() (int64, error) {
	pos, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	var raw [4]byte
	if _, err := w.f.ReadAt(raw[:], pos-4); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint32(raw[:])), nil
}

func (w *File) Close() error {
	return w.f.Close()
}

// Normalize maps signed 16-bit samples onto [-1.0, 1.0) by dividing by
// 32768. +32767 maps slightly below 1.0.
func Normalize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// LoadClip opens, validates, decodes and normalizes the WAV file at path.
func LoadClip(path string) (Clip, error) {
	w, err := Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer w.Close()

	if err := w.Validate(); err != nil {
		return Clip{}, err
	}

	samples, err := w.Decode()
	if err != nil {
		return Clip{}, err
	}

	return Clip{
		SampleRate: w.format.SampleRate,
		Channels:   w.format.Channels,
		Samples:    Normalize(samples),
	}, nil
}
