package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger writes JSON to a rotated file under logDir and a readable copy
// to stderr.
func NewLogger(logDir, level string) (*zap.Logger, error) {
	return newLogger(logDir, level, os.Stderr)
}

func newLogger(logDir, level string, console io.Writer) (*zap.Logger, error) {
	lvl, levelErr := ParseLevel(level)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "monitor.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, lvl)

	ccfg := zap.NewDevelopmentEncoderConfig()
	ccfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(ccfg), zapcore.AddSync(console), lvl)

	logger := zap.New(zapcore.NewTee(fileCore, consoleCore))
	if levelErr != nil {
		logger.Warn("log_level_fallback", zap.String("requested", level), zap.Error(levelErr))
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level. Python-style names such as
// WARNING and CRITICAL are accepted. Unknown names yield info and an error.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zap.InfoLevel, nil
	case "warning":
		return zap.WarnLevel, nil
	case "critical", "fatal":
		return zap.ErrorLevel, nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zap.InfoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}
