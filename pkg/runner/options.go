package runner

import (
	"io"
	"os"

	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/output"
)

// Options holds all configuration options for the runner
type Options struct {
	Concurrency int
	Silent      bool
	Verbosity   int

	// Output
	Output output.Options
	Stdout io.Writer
	Stderr io.Writer
}

// OptionsFromConfig derives runner options from the loaded configuration.
// Human output is coloured only when stdout is a terminal.
func OptionsFromConfig(cfg *config.Config, silent bool, stdout, stderr io.Writer) *Options {
	color := false
	if f, ok := stdout.(*os.File); ok {
		color = output.ColorEnabled(f)
	}
	return &Options{
		Concurrency: cfg.Runner.Concurrency,
		Silent:      silent,
		Verbosity:   cfg.Logger.Verbosity,
		Output: output.Options{
			Format: cfg.Output.Format,
			Trace:  cfg.Output.Trace,
			Color:  color,
		},
		Stdout: stdout,
		Stderr: stderr,
	}
}
