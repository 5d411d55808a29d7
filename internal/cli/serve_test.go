package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fmueller/voxscribe/internal/server"
	"github.com/fmueller/voxscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

// The serve tests switch gin's global mode and stay sequential.

func TestServeCommandWiresServer(t *testing.T) {
	var closes atomic.Int32
	var hostOpts int
	var served *server.Server

	app := &appState{
		noProgress: true,
		addr:       "127.0.0.1:0",
		loadFn: func(opts ...whisper.HostOption) (*loadedPipeline, error) {
			hostOpts = len(opts)
			return stubLoad(stubTranscriber(func(path string) (string, error) {
				return "served " + path, nil
			}), &closes)()
		},
		serveFn: func(_ context.Context, srv *server.Server) error {
			served = srv
			return nil
		},
	}

	cmd := newServeCmd(app)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	require.Equal(t, 1, hostOpts, "model wait observer must be installed")
	require.EqualValues(t, 1, closes.Load())
	require.NotNil(t, served)

	rec := httptest.NewRecorder()
	served.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/models/ggml-tiny.en.bin")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/transcriptions", strings.NewReader(`{"path":"a.wav"}`))
	req.Header.Set("Content-Type", "application/json")
	served.ServeHTTP(rec, req)
	require.JSONEq(t, `{"text":"served a.wav"}`, rec.Body.String())
}

func TestServeCommandLoadFailure(t *testing.T) {
	serveCalls := 0
	app := &appState{
		noProgress: true,
		loadFn: func(...whisper.HostOption) (*loadedPipeline, error) {
			return nil, whisper.ErrModelLoad
		},
		serveFn: func(context.Context, *server.Server) error {
			serveCalls++
			return nil
		},
	}

	cmd := newServeCmd(app)
	cmd.SetArgs(nil)
	require.ErrorIs(t, cmd.Execute(), whisper.ErrModelLoad)
	require.Zero(t, serveCalls)
}

func TestServeCommandReturnsServeError(t *testing.T) {
	var closes atomic.Int32
	listenErr := errors.New("listen on 127.0.0.1:8765: address already in use")
	app := &appState{
		noProgress: true,
		loadFn:     stubLoad(stubTranscriber(func(string) (string, error) { return "", nil }), &closes),
		serveFn: func(context.Context, *server.Server) error {
			return listenErr
		},
	}

	cmd := newServeCmd(app)
	cmd.SetArgs(nil)
	require.ErrorIs(t, cmd.Execute(), listenErr)
	require.EqualValues(t, 1, closes.Load())
}
