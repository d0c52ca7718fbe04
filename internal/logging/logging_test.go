package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"tasksync/internal/logging"
)

func TestNew_DefaultIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, logging.Options{})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "uid", "u1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at default level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "uid=u1") {
		t.Errorf("expected warn record, got %s", out)
	}
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, logging.Options{Debug: true, Level: "error"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug record, got %q", buf.String())
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, logging.Options{Level: "info", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("subscribed", "uid", "u1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON record: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "subscribed" || rec["uid"] != "u1" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := logging.New(&bytes.Buffer{}, logging.Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := logging.New(&bytes.Buffer{}, logging.Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
