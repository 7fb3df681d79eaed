package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/logger"
)

// EnvPrefix prefixes environment overrides, e.g. DOMTAINT_RUNNER_CONCURRENCY.
const EnvPrefix = "DOMTAINT"

// app carries state shared by the sub-commands of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the command tree on a fresh viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "domtaint",
		Short:         "Taint tracking for client-side JavaScript in HTML documents",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./domtaint.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newAnalyzeCmd(a), newConfigCmd(a), newVersionCmd())
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "\n[!] Received interrupt, shutting down...")
			return 130
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig merges defaults, the config file, environment and bound flags.
func (a *app) loadConfig() (*config.Config, error) {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("domtaint")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return config.NewConfigFromViper(a.v)
}

// newLogger builds the console logger on stderr, silenced on request, plus
// the rotated file sink when configured.
func newLogger(cfg config.LoggerConfig, silent bool, stderr io.Writer) *logger.Logger {
	console := stderr
	if silent {
		console = io.Discard
	}
	var file *logger.FileOptions
	if cfg.LogFile != "" {
		file = &logger.FileOptions{
			Path:       cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}
	// Validate has already rejected unknown levels.
	floor, _ := cfg.ConsoleLevel()
	return logger.NewLoggerWithMinLevel(cfg.Verbosity, floor, zapcore.Lock(zapcore.AddSync(console)), file)
}
