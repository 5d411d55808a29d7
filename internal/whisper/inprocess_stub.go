//go:build !whispercpp

package whisper

import "fmt"

const InProcessAvailable = false

func LoadInProcess(modelPath string) (Model, error) {
	return nil, fmt.Errorf("%w: %s: in-process engine not compiled in; rebuild with -tags whispercpp or use --engine %s",
		ErrModelLoad, modelPath, EngineCLI)
}
