package transcribe

import (
	"errors"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/whisper"
)

// Kind names a class of transcription failure for callers that report
// errors as codes rather than Go errors.
type Kind string

const (
	KindModelLoad         Kind = "model_load"
	KindAudioOpen         Kind = "audio_open"
	KindUnsupportedFormat Kind = "unsupported_audio_format"
	KindAudioDecode       Kind = "audio_decode"
	KindInference         Kind = "inference"
	KindInternal          Kind = "internal"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, whisper.ErrModelLoad):
		return KindModelLoad
	case errors.Is(err, audio.ErrOpen):
		return KindAudioOpen
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, audio.ErrDecode):
		return KindAudioDecode
	case errors.Is(err, whisper.ErrInference):
		return KindInference
	default:
		return KindInternal
	}
}
