package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/network"
	"github.com/lcalzada-xor/domtaint/pkg/runner"
	"github.com/lcalzada-xor/domtaint/pkg/scanner/dom"
)

// flagKeys maps analyze flags onto configuration keys.
var flagKeys = map[string]string{
	"concurrency": "runner.concurrency",
	"timeout":     "network.timeout",
	"proxy":       "network.proxy",
	"rate-limit":  "network.rate_limit",
	"user-agent":  "network.user_agent",
	"output":      "output.format",
	"trace":       "output.trace",
	"verbose":     "logger.verbosity",
	"log-file":    "logger.log_file",
	"events":      "analysis.events",
	"external":    "analysis.load_external_scripts",
	"inline":      "analysis.load_inline_scripts",
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var silent bool

	cmd := &cobra.Command{
		Use:   "analyze [files|urls...]",
		Short: "Analyze HTML documents or scripts for tainted flows into sinks",
		Long: `Analyze HTML documents or JavaScript files for values read from the page
location that reach HTML, URL or event-handler sinks without the matching
sanitizer. Targets are local paths or http(s) URLs; when none are given
they are read from stdin, one per line.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for name, key := range flagKeys {
				if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			log := newLogger(cfg.Logger, silent, cmd.ErrOrStderr())
			defer func() { _ = log.Sync() }()

			targets := args
			if len(targets) == 0 {
				if targets, err = runner.ReadTargets(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if len(targets) == 0 {
				return fmt.Errorf("no targets given")
			}

			client, err := network.NewClient(network.Options{
				Timeout:     cfg.Network.Timeout,
				Proxy:       cfg.Network.Proxy,
				Concurrency: cfg.Runner.Concurrency,
				RateLimit:   cfg.Network.RateLimit,
				UserAgent:   cfg.Network.UserAgent,
			})
			if err != nil {
				return err
			}

			scanner := dom.NewDOMScanner(cfg, client, log.Named("scanner"))
			opts := runner.OptionsFromConfig(cfg, silent, cmd.OutOrStdout(), cmd.ErrOrStderr())
			_, err = runner.NewRunner(opts, scanner, log).Execute(cmd.Context(), targets)
			return err
		},
	}

	f := cmd.Flags()
	f.IntP("concurrency", "c", config.DefaultConcurrency, "Number of documents analyzed at once")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Request timeout")
	f.String("proxy", "", "Proxy URL for remote documents and scripts")
	f.Float64("rate-limit", 0, "Maximum requests per second (0 disables)")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header for remote fetches")
	f.StringP("output", "o", config.DefaultFormat, "Output format: text, human, json")
	f.Bool("trace", false, "Include the analysis trace in the output")
	f.CountP("verbose", "v", "Verbose logging (-v, -vv)")
	f.String("log-file", "", "Also write a rotated JSON log to this file")
	f.Bool("events", true, "Analyze inline event handler attributes")
	f.Bool("external", true, "Load external <script src> files")
	f.Bool("inline", true, "Load inline <script> blocks")
	f.BoolVarP(&silent, "silent", "s", false, "Suppress banner, statistics and logs")
	return cmd
}
