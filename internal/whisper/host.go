package whisper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrModelLoad  = errors.New("model load failed")
	ErrInference  = errors.New("inference failed")
	ErrHostClosed = errors.New("model host is closed")
)

// Host owns the single loaded model of the process and serializes every
// inference session against it.
type Host struct {
	mu        sync.Mutex
	model     Model
	modelPath string
	closed    bool

	logger      *zap.Logger
	observeWait func(time.Duration)
}

type HostOption func(*Host)

// WithWaitObserver reports how long each caller waited for exclusive access.
func WithWaitObserver(observe func(time.Duration)) HostOption {
	return func(h *Host) {
		h.observeWait = observe
	}
}

// Load checks the model file and hands it to loader. It is meant to run
// once while the process starts; callers treat its error as fatal.
func Load(modelPath string, loader Loader, logger *zap.Logger, opts ...HostOption) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: no inference engine configured", ErrModelLoad)
	}

	if err := CheckModelFile(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	started := time.Now()
	model, err := loader(modelPath)
	if err != nil {
		if errors.Is(err, ErrModelLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, modelPath, err)
	}
	logger.Info("model loaded", zap.String("model", modelPath), zap.Duration("elapsed", time.Since(started)))

	h := &Host{
		model:     model,
		modelPath: modelPath,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// WithExclusiveAccess blocks until no other caller holds the model, then
// runs fn with a fresh session. Access is released when fn returns or
// panics. Errors returned by fn are passed through unchanged.
func (h *Host) WithExclusiveAccess(fn func(Session) error) error {
	requested := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()

	waited := time.Since(requested)
	h.logger.Debug("model access acquired", zap.Duration("waited", waited))
	if h.observeWait != nil {
		h.observeWait(waited)
	}

	if h.closed {
		return ErrHostClosed
	}

	session, err := h.model.NewSession()
	if err != nil {
		return fmt.Errorf("%w: create session: %w", ErrInference, err)
	}

	return fn(session)
}

// Close releases the model. It waits for a running session to finish.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.logger.Debug("model released", zap.String("model", h.modelPath))
	return h.model.Close()
}
