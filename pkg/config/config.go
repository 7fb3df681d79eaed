package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration of domtaint.
type Config struct {
	Logger     LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Sanitizers SanitizerConfig `mapstructure:"sanitizers" yaml:"sanitizers"`
	Sources    SourceConfig    `mapstructure:"sources" yaml:"sources"`
	Analysis   AnalysisConfig  `mapstructure:"analysis" yaml:"analysis"`
	Network    NetworkConfig   `mapstructure:"network" yaml:"network"`
	Runner     RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	Output     OutputConfig    `mapstructure:"output" yaml:"output"`
}

// LoggerConfig controls verbosity and the optional log file.
type LoggerConfig struct {
	// Level is the console floor: debug, info, warn or error.
	Level      string `mapstructure:"level" yaml:"level"`
	Verbosity  int    `mapstructure:"verbosity" yaml:"verbosity"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// SanitizerConfig holds the three sanitizer pattern lists. Each value is a
// newline-delimited list of literal prefixes matched against "name(".
type SanitizerConfig struct {
	HTML       string `mapstructure:"html" yaml:"html"`
	URL        string `mapstructure:"url" yaml:"url"`
	JavaScript string `mapstructure:"javascript" yaml:"javascript"`
}

// SourceConfig describes what counts as the document, as a taint source and
// as an element-returning accessor.
type SourceConfig struct {
	Document   []string `mapstructure:"document" yaml:"document"`
	Tainted    []string `mapstructure:"tainted" yaml:"tainted"`
	DOMElement []string `mapstructure:"dom_element" yaml:"dom_element"`
}

// AnalysisConfig toggles the document-level glue around the engine.
type AnalysisConfig struct {
	LoadExternalScripts bool `mapstructure:"load_external_scripts" yaml:"load_external_scripts"`
	LoadInlineScripts   bool `mapstructure:"load_inline_scripts" yaml:"load_inline_scripts"`
	Events              bool `mapstructure:"events" yaml:"events"`
}

// NetworkConfig configures fetching of remote pages and scripts.
type NetworkConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Proxy     string        `mapstructure:"proxy" yaml:"proxy"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// RunnerConfig controls how many documents are analyzed at once.
type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// OutputConfig selects the report format.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Trace  bool   `mapstructure:"trace" yaml:"trace"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.verbosity", 0)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Sanitizers --
	v.SetDefault("sanitizers.html", DefaultHTMLSanitizers)
	v.SetDefault("sanitizers.url", DefaultURLSanitizers)
	v.SetDefault("sanitizers.javascript", DefaultJSSanitizers)

	// -- Sources --
	v.SetDefault("sources.document", DocumentPatterns)
	v.SetDefault("sources.tainted", TaintedSourcePatterns)
	v.SetDefault("sources.dom_element", DOMElementPatterns)

	// -- Analysis --
	v.SetDefault("analysis.load_external_scripts", true)
	v.SetDefault("analysis.load_inline_scripts", true)
	v.SetDefault("analysis.events", true)

	// -- Network --
	v.SetDefault("network.timeout", DefaultTimeout)
	v.SetDefault("network.rate_limit", 0.0)
	v.SetDefault("network.proxy", "")
	v.SetDefault("network.user_agent", DefaultUserAgent)

	// -- Runner --
	v.SetDefault("runner.concurrency", DefaultConcurrency)

	// -- Output --
	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("output.trace", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := c.Logger.ConsoleLevel(); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be positive")
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	switch c.Output.Format {
	case "text", "human", "json":
	default:
		return fmt.Errorf("output.format %q is not one of text, human, json", c.Output.Format)
	}
	if len(c.Sources.Document) == 0 {
		return fmt.Errorf("sources.document must name at least one document identifier")
	}
	return nil
}

// ConsoleLevel parses Level. An empty level means info.
func (l LoggerConfig) ConsoleLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

// Marshal renders the configuration as YAML, the format read back by viper.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SplitPatterns splits a newline-delimited pattern list, dropping blank
// lines. An empty prefix would match every call, so it is never kept.
func SplitPatterns(raw string) []string {
	var patterns []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
