package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shakram02/go-chatdb/internal/config"
)

const (
	logDirPerm  = 0755
	logFilePerm = 0644
)

// New builds a zap logger from the logging configuration. The returned
// close function flushes the logger and releases any opened log file.
func New(cfg config.LoggingConfig) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "console", "":
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	sink, closeSink, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.New(zapcore.NewCore(encoder, sink, level))

	closeFn := func() error {
		_ = logger.Sync()
		return closeSink()
	}

	return logger, closeFn, nil
}

// OrNop returns logger, or a no-op logger when logger is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func openOutput(output string) (zapcore.WriteSyncer, func() error, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), func() error { return nil }, nil
	case "stdout":
		return zapcore.Lock(os.Stdout), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), logDirPerm); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return zapcore.Lock(file), file.Close, nil
}
