// Package server exposes the transcription pipeline over a local HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultAddr = "127.0.0.1:8765"

// Transcriber is satisfied by *transcribe.Pipeline.
type Transcriber interface {
	Transcribe(audioPath string) (string, error)
}

type Options struct {
	Addr      string
	ModelPath string
	Version   string
	Logger    *zap.Logger
	Metrics   *Metrics
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	transcriber Transcriber
	opts        Options
	logger      *zap.Logger
	metrics     *Metrics
}

func New(transcriber Transcriber, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		transcriber: transcriber,
		opts:        opts,
		logger:      logger,
		metrics:     metrics,
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(requestLogger(logger))
	router.Use(recovery(logger))

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.POST("/v1/transcriptions", s.transcribe)

	s.router = router
	// No write timeout: a transcription holds its response until the model
	// is free and inference finishes.
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down and waits for in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("http server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("model", s.opts.ModelPath),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	// In-flight transcriptions cannot be interrupted; wait for them.
	if err := s.httpServer.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
