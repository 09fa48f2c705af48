package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("lookup skipped", zap.String("food", "rice"))
	logger.Sync() //nolint:errcheck

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "lookup skipped" || entry["food"] != "rice" || entry["level"] != "warn" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNew_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "console")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("decomposed")
	logger.Sync() //nolint:errcheck
	if !strings.Contains(buf.String(), "decomposed") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, "loud", "json"); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad level, got %v", err)
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad format, got %v", err)
	}
}
