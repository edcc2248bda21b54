package logger

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoding
type Format string

const (
	// FormatJSON is used by the server and the worker
	FormatJSON Format = "json"
	// FormatConsole is human-readable output for the command line
	FormatConsole Format = "console"
)

// Options configure New
type Options struct {
	Format Format
	// Debug lowers the level to debug
	Debug bool
	// Quiet raises the default level to warn. Debug still wins.
	Quiet bool
	// Service and Version are added to every entry when set
	Service string
	Version string
}

func (o Options) level() zapcore.Level {
	switch {
	case o.Debug:
		return zapcore.DebugLevel
	case o.Quiet:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger writing to stderr
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	switch opts.Format {
	case FormatJSON, "":
		config = zap.NewProductionConfig()
		config.Encoding = "json"
		config.EncoderConfig = zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
		// No sampling: every failed job must reach the log
		config.Sampling = nil
	case FormatConsole:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.TimeKey = ""
		config.DisableCaller = !opts.Debug
		config.DisableStacktrace = !opts.Debug
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	config.Level = zap.NewAtomicLevelAt(opts.level())
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	var fields []zap.Field
	if opts.Service != "" {
		fields = append(fields, zap.String("service", opts.Service))
	}
	if opts.Version != "" {
		fields = append(fields, zap.String("version", opts.Version))
	}
	return config.Build(zap.Fields(fields...))
}

// NewCLILogger creates the command line tool's logger. Only warnings and
// errors are shown unless debugMode is set, so stdout stays clean.
func NewCLILogger(debugMode bool) (*zap.Logger, error) {
	return New(Options{Format: FormatConsole, Debug: debugMode, Quiet: true})
}

// Sync flushes buffered entries. Errors from syncing a terminal or pipe,
// which cannot be fsynced, are ignored.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	err := logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}
