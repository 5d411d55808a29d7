package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type fileResult struct {
	path string
	text string
	err  error
}

func newTranscribeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>...",
		Short: "Transcribe 16 kHz mono WAV files",
		Long: "Transcribe one or more 16 kHz mono 16-bit PCM WAV files.\n\n" +
			"Files are decoded in parallel; inference runs one file at a time on the\n" +
			"shared model. Transcripts are printed in argument order. With several\n" +
			"files each line is prefixed by the file path.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.load()
			if err != nil {
				return err
			}
			defer app.closeLoaded(loaded)

			return app.transcribeFiles(cmd.OutOrStdout(), loaded.transcriber, args)
		},
	}
}

// transcribeFiles runs one goroutine per file and prints results in
// argument order once all of them finished. Successful transcripts are
// printed even when other files fail.
func (a *appState) transcribeFiles(out io.Writer, t transcriber, paths []string) error {
	results := make([]fileResult, len(paths))

	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := t.Transcribe(path)
			results[i] = fileResult{path: path, text: text, err: err}
		}()
	}
	wg.Wait()
	stopSpinner()

	a.log().Debug("all files processed", zap.Int("files", len(paths)), zap.Duration("elapsed", time.Since(started)))

	prefixed := len(paths) > 1
	var errs []error
	for _, r := range results {
		if r.err != nil {
			if prefixed {
				errs = append(errs, fmt.Errorf("%s: %w", r.path, r.err))
			} else {
				errs = append(errs, r.err)
			}
			continue
		}

		if prefixed {
			fmt.Fprintf(out, "%s: %s\n", r.path, r.text)
		} else {
			fmt.Fprintln(out, r.text)
		}
		if isBlankTranscript(r.text) {
			a.log().Warn(noSpeechHint(), zap.String("audio", r.path))
		}
	}

	return errors.Join(errs...)
}
