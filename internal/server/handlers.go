package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	kindBadRequest = "bad_request"
	kindInternal   = string(transcribe.KindInternal)
)

type transcriptionRequest struct {
	Path string `json:"path"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Model:   s.opts.ModelPath,
	})
}

func (s *Server) transcribe(c *gin.Context) {
	var req transcriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{
			Kind:    kindBadRequest,
			Message: "request body must be JSON like {\"path\": \"/path/to/audio.wav\"}",
		}})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{
			Kind:    kindBadRequest,
			Message: "path is required",
		}})
		return
	}

	s.metrics.inflight.Inc()
	defer s.metrics.inflight.Dec()

	started := time.Now()
	text, err := s.transcriber.Transcribe(req.Path)
	elapsed := time.Since(started)

	if err != nil {
		kind := transcribe.KindOf(err)
		s.metrics.observeTranscription(string(kind), elapsed)
		_ = c.Error(err)
		s.logger.Debug("transcription request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		c.JSON(statusForKind(kind), errorResponse{Error: errorBody{
			Kind:    string(kind),
			Message: err.Error(),
		}})
		return
	}

	s.metrics.observeTranscription(outcomeOK, elapsed)
	c.JSON(http.StatusOK, transcriptionResponse{Text: text})
}

func statusForKind(kind transcribe.Kind) int {
	switch kind {
	case transcribe.KindAudioOpen:
		return http.StatusNotFound
	case transcribe.KindUnsupportedFormat, transcribe.KindAudioDecode:
		return http.StatusUnprocessableEntity
	case transcribe.KindModelLoad:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
