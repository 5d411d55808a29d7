package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/server"
	"github.com/fmueller/voxscribe/internal/version"
	"github.com/fmueller/voxscribe/internal/whisper"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve transcriptions over a local HTTP API",
		Long: "Load the model once and serve POST /v1/transcriptions, GET /health and\n" +
			"GET /metrics until interrupted. Requests are handled concurrently;\n" +
			"inference runs one request at a time.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metrics := server.NewMetrics()
			loaded, err := app.load(whisper.WithWaitObserver(metrics.ObserveModelWait))
			if err != nil {
				return err
			}
			defer app.closeLoaded(loaded)

			if !app.verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := server.New(loaded.transcriber, server.Options{
				Addr:      app.addr,
				ModelPath: loaded.modelPath,
				Version:   version.Resolve(),
				Logger:    app.log(),
				Metrics:   metrics,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = serveHTTP
			}
			return serveFn(ctx, srv)
		},
	}

	cmd.Flags().StringVar(&app.addr, "addr", app.addr, "Address to listen on (env "+config.EnvAddr+")")
	return cmd
}

func serveHTTP(ctx context.Context, srv *server.Server) error {
	return srv.Serve(ctx)
}
