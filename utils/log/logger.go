// Package log provides the zap logger construction and module-level debug
// filtering used across the scanner.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFileName = "tlssak-logs.txt"

// LogCfg is the mutable zap build configuration. Exported so tests and the
// CLI can tweak level/encoding in place and rebuild.
var LogCfg = defaultConfig()

// indirections over the stdlib calls touched by New, so tests can inject
// failures without creating real files.
var (
	osOpenFile184 = os.OpenFile
	osChmod184    = os.Chmod
)

func defaultConfig() zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "colorConsole"
	cfg.EncoderConfig.EncodeTime = customTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stdout", logFileName}
	return cfg
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(time.RFC3339))
}

type colorConsoleEncoder struct {
	zapcore.Encoder
}

func newColorConsole(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return colorConsoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (c colorConsoleEncoder) Clone() zapcore.Encoder {
	return colorConsoleEncoder{Encoder: c.Encoder.Clone()}
}

var registerEncodersOnce sync.Once

func registerEncoders() {
	registerEncodersOnce.Do(func() {
		_ = zap.RegisterEncoder("colorConsole", func(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
			return newColorConsole(cfg), nil
		})
	})
}

// New creates the default logger, ensuring the on-disk log file exists and
// is world-writable (several invocations of this CLI may run under
// different users against the same working directory).
func New() (*zap.Logger, *os.File, error) {
	registerEncoders()

	f, err := osOpenFile184(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if err := osChmod184(logFileName, 0777); err != nil {
		return nil, nil, fmt.Errorf("failed to set the log file permission to 777: %w", err)
	}

	logger, err := LogCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build config for logger: %w", err)
	}

	return withModuleFilter(logger), f, nil
}

// ChangeLogLevel rebuilds the logger at the given level, enabling
// stacktraces and the caller field at Debug.
func ChangeLogLevel(level zapcore.Level) (*zap.Logger, error) {
	LogCfg.Level = zap.NewAtomicLevelAt(level)
	if level == zap.DebugLevel {
		LogCfg.DisableStacktrace = false
		LogCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	logger, err := LogCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build config for logger: %w", err)
	}
	return withModuleFilter(logger), nil
}

// AddMode rebuilds the logger with an extra "mode" field stamped on every
// entry (e.g. "scan", "gencert") so multi-command log output can be split.
func AddMode(mode string) (*zap.Logger, error) {
	logger, err := LogCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to add mode to logger: %w", err)
	}
	return withModuleFilter(logger).With(zap.String("mode", mode)), nil
}

// ChangeColorEncoding switches the console encoder between colored and
// plain output and rebuilds the logger.
func ChangeColorEncoding() (*zap.Logger, error) {
	if LogCfg.Encoding == "colorConsole" {
		LogCfg.Encoding = "nonColorConsole"
		_ = zap.RegisterEncoder("nonColorConsole", func(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
			return zapcore.NewConsoleEncoder(cfg), nil
		})
	} else {
		LogCfg.Encoding = "colorConsole"
	}
	logger, err := LogCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build config for logger: %w", err)
	}
	return withModuleFilter(logger), nil
}

// NewWithWriter builds a logger (with the same module filtering as New)
// that writes to w instead of stdout/file, for tests that need to assert
// on log output without touching the filesystem.
func NewWithWriter(w io.Writer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = customTimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return withModuleFilter(zap.New(core))
}

// LogError logs err alongside a human message and any structured fields.
// A nil logger makes it a no-op.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
}
