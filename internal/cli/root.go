package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/logging"
	"github.com/fmueller/voxscribe/internal/platform"
	"github.com/fmueller/voxscribe/internal/server"
	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/fmueller/voxscribe/internal/version"
	"github.com/fmueller/voxscribe/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type transcriber interface {
	Transcribe(audioPath string) (string, error)
}

// loadedPipeline is a pipeline bound to a loaded model host. Commands
// create exactly one per invocation and close it when they return.
type loadedPipeline struct {
	transcriber transcriber
	modelPath   string
	closeFn     func() error
}

func (l *loadedPipeline) Close() error {
	if l.closeFn == nil {
		return nil
	}
	return l.closeFn()
}

type appState struct {
	verbose     bool
	jsonLogs    bool
	noProgress  bool
	model       string
	modelDir    string
	engine      string
	addr        string
	silenceGate bool
	silenceDBFS float64

	logger *zap.Logger

	loadFn  func(opts ...whisper.HostOption) (*loadedPipeline, error)
	serveFn func(ctx context.Context, srv *server.Server) error
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Getenv)
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	defaults := config.Defaults{
		Model:  whisper.DefaultModel,
		Engine: whisper.EngineAuto,
		Addr:   server.DefaultAddr,
	}.Apply(getenv)

	app := &appState{
		model:       defaults.Model,
		modelDir:    defaults.ModelDir,
		engine:      defaults.Engine,
		addr:        defaults.Addr,
		silenceGate: true,
		silenceDBFS: -65,
	}
	app.loadFn = app.loadPipeline
	app.serveFn = serveHTTP

	cmd := &cobra.Command{
		Use:           "voxscribe",
		Short:         "Transcribe 16 kHz mono WAV recordings with a local whisper model",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			app.logger = logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.model, "model", app.model, "Model name or model file path (env "+config.EnvModel+")")
	cmd.PersistentFlags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory to look for named models in (env "+config.EnvModelDir+")")
	cmd.PersistentFlags().StringVar(&app.engine, "engine", app.engine, "Inference engine: auto|inprocess|cli (env "+config.EnvEngine+")")
}

func bindSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent audio and skip inference")
	cmd.PersistentFlags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

// loadPipeline resolves the model, loads it once and wraps it in a
// transcription pipeline. Any error is a model load failure the command
// cannot recover from.
func (a *appState) loadPipeline(hostOpts ...whisper.HostOption) (*loadedPipeline, error) {
	searchDirs, err := platform.ModelSearchDirs(a.modelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", whisper.ErrModelLoad, err)
	}

	resolved, err := whisper.ResolveModel(a.model, searchDirs)
	if err != nil {
		return nil, err
	}

	loader, engine, err := whisper.SelectLoader(a.engine, a.log())
	if err != nil {
		return nil, err
	}

	a.log().Info("loading model", zap.String("model", resolved.Path), zap.String("engine", engine))
	stopSpinner := startSpinner(a.progressEnabled(), "Loading model")
	host, err := whisper.Load(resolved.Path, loader, a.log(), hostOpts...)
	stopSpinner()
	if err != nil {
		return nil, err
	}

	pipeline := transcribe.New(host, transcribe.Options{
		SilenceGate:          a.silenceGate,
		SilenceThresholdDBFS: a.silenceDBFS,
		Logger:               a.log(),
	})

	return &loadedPipeline{
		transcriber: pipeline,
		modelPath:   resolved.Path,
		closeFn:     host.Close,
	}, nil
}

func (a *appState) load(hostOpts ...whisper.HostOption) (*loadedPipeline, error) {
	loadFn := a.loadFn
	if loadFn == nil {
		loadFn = a.loadPipeline
	}
	return loadFn(hostOpts...)
}

func (a *appState) closeLoaded(loaded *loadedPipeline) {
	if err := loaded.Close(); err != nil {
		a.log().Warn("failed to release model", zap.String("model", loaded.modelPath), zap.Error(err))
	}
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
