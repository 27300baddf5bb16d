package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitescout/BiteScoutAPI/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestConfigureJSONToFile(t *testing.T) {
	logger := log.New()
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	closer, err := Configure(logger, config.LoggingConfig{Level: "debug", Format: "json", File: path, MaxSizeMB: 1}, &stderr)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	logger.WithField("access_id", "a1").Debug("access requested")
	if errClose := closer.Close(); errClose != nil {
		t.Fatalf("close: %v", errClose)
	}

	if !strings.Contains(stderr.String(), `"access_id":"a1"`) {
		t.Fatalf("stderr = %q", stderr.String())
	}
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		t.Fatalf("read log file: %v", errRead)
	}
	if !strings.Contains(string(raw), "access requested") {
		t.Fatalf("log file = %q", raw)
	}
}

func TestConfigureRejectsBadInput(t *testing.T) {
	if _, err := Configure(log.New(), config.LoggingConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := Configure(log.New(), config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestConfigureDefaultsToInfoText(t *testing.T) {
	logger := log.New()
	var stderr bytes.Buffer
	if _, err := Configure(logger, config.LoggingConfig{}, &stderr); err != nil {
		t.Fatalf("configure: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(stderr.String(), "hidden") || !strings.Contains(stderr.String(), "shown") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
