package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// VerboseLevel represents the verbosity level for logging
type VerboseLevel int

const (
	// VerboseSilent means no verbose output
	VerboseSilent VerboseLevel = 0
	// VerboseNormal means standard verbose output (-v)
	VerboseNormal VerboseLevel = 1
	// VerboseVery means detailed debugging output (-vv)
	VerboseVery VerboseLevel = 2
)

// FileOptions configures the optional rotated JSON log file.
type FileOptions struct {
	Path       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Logger handles verbose output at different levels on top of zap.
type Logger struct {
	level VerboseLevel
	zl    *zap.Logger
	sugar *zap.SugaredLogger
	mu    sync.Mutex
}

// NewLogger creates a new logger with the specified verbosity level writing to stderr.
func NewLogger(level int) *Logger {
	return NewLoggerWithWriter(level, zapcore.Lock(os.Stderr), nil)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	zl := zap.NewNop()
	return &Logger{level: VerboseSilent, zl: zl, sugar: zl.Sugar()}
}

// NewLoggerWithWriter builds a logger on an arbitrary console writer and,
// when file is set, tees everything into a rotated JSON file.
func NewLoggerWithWriter(level int, console zapcore.WriteSyncer, file *FileOptions) *Logger {
	return NewLoggerWithMinLevel(level, zap.InfoLevel, console, file)
}

// NewLoggerWithMinLevel is NewLoggerWithWriter with a floor for the console.
// Entries below floor are dropped; -v and -vv lower the floor to debug so that
// their output is never hidden.
func NewLoggerWithMinLevel(level int, floor zapcore.Level, console zapcore.WriteSyncer, file *FileOptions) *Logger {
	minLevel := floor
	if VerboseLevel(level) >= VerboseNormal && minLevel > zap.DebugLevel {
		minLevel = zap.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), console, minLevel),
	}

	if file != nil && file.Path != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSize,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAge,
			Compress:   file.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fileWriter, zap.DebugLevel))
	}

	zl := zap.New(zapcore.NewTee(cores...))
	return &Logger{level: VerboseLevel(level), zl: zl, sugar: zl.Sugar()}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Named returns a child logger with the same verbosity.
func (l *Logger) Named(name string) *Logger {
	zl := l.zl.Named(name)
	return &Logger{level: l.level, zl: zl, sugar: zl.Sugar()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// IsVerbose returns true if verbose mode is enabled (-v or -vv)
func (l *Logger) IsVerbose() bool {
	return l.level >= VerboseNormal
}

// IsVeryVerbose returns true if very verbose mode is enabled (-vv)
func (l *Logger) IsVeryVerbose() bool {
	return l.level >= VerboseVery
}

// V logs a message at verbose level (-v)
func (l *Logger) V(format string, args ...interface{}) {
	if l.IsVerbose() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.sugar.Debugf("[*] "+format, args...)
	}
}

// VV logs a message at very verbose level (-vv)
func (l *Logger) VV(format string, args ...interface{}) {
	if l.IsVeryVerbose() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.sugar.Debugf("[VV] "+format, args...)
	}
}

// Info logs an informational message (always shown unless silent)
func (l *Logger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sugar.Infof("[+] "+format, args...)
}

// Error logs an error message (always shown unless silent)
func (l *Logger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sugar.Errorf("[!] "+format, args...)
}

// Section logs a section header for very verbose mode
func (l *Logger) Section(title string) {
	if l.IsVeryVerbose() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.sugar.Debug(fmt.Sprintf("[VV] === %s ===", title))
	}
}

// Detail logs a detail line for very verbose mode with indentation
func (l *Logger) Detail(format string, args ...interface{}) {
	if l.IsVeryVerbose() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.sugar.Debugf("[VV] → "+format, args...)
	}
}
