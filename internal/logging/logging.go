// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies cfg to the standard logrus logger. The returned closer
// flushes the rotating file, if one was opened.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	return Configure(log.StandardLogger(), cfg, os.Stderr)
}

// Configure applies cfg to logger, writing to stderr and, when cfg.File is
// set, to a lumberjack-rotated file.
func Configure(logger *log.Logger, cfg config.LoggingConfig, stderr io.Writer) (io.Closer, error) {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	parsed, errLevel := log.ParseLevel(level)
	if errLevel != nil {
		return nil, fmt.Errorf("logging: %w", errLevel)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	file := strings.TrimSpace(cfg.File)
	if file == "" {
		logger.SetOutput(stderr)
		return io.NopCloser(nil), nil
	}
	if errMkdir := os.MkdirAll(filepath.Dir(file), 0o755); errMkdir != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", errMkdir)
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(stderr, rotator))
	return rotator, nil
}
