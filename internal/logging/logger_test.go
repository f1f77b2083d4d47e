package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alertstate/internal/config"
)

func TestConsoleJSONSinkRespectsLevel(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger, closeFn, err := newWithConsole(config.LogConfig{
		Console: config.LogSinkConfig{Enabled: true, Level: "warn", Format: "json"},
	}, &out, &out)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closeFn()

	logger.Info("dropped")
	logger.Warn("instance transition", "rule_uid", "cpu", "to", "Alerting")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), out.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["rule_uid"] != "cpu" || record["msg"] != "instance transition" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["time"]; ok {
		t.Fatalf("console sink must drop time attribute")
	}
}

func TestTeeWritesConsoleAndFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "service.log")
	var console bytes.Buffer
	logger, closeFn, err := newWithConsole(config.LogConfig{
		Console: config.LogSinkConfig{Enabled: true, Level: "info", Format: "line"},
		File:    config.LogSinkConfig{Enabled: true, Level: "debug", Format: "json", Path: path},
	}, &console, &console)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Debug("file only")
	logger.With("component", "manager").Info("both sinks")
	closeFn()

	if strings.Contains(console.String(), "file only") {
		t.Fatalf("console sink accepted debug record")
	}
	if !strings.Contains(console.String(), "component=manager") {
		t.Fatalf("console output missing attrs: %q", console.String())
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(body), "file only") || !strings.Contains(string(body), "both sinks") {
		t.Fatalf("file output missing records: %q", string(body))
	}
}

func TestNewRejectsInvalidSinks(t *testing.T) {
	t.Parallel()

	if _, _, err := New(config.LogConfig{}); err == nil {
		t.Fatalf("expected error without sinks")
	}
	if _, _, err := New(config.LogConfig{Console: config.LogSinkConfig{Enabled: true, Level: "trace", Format: "line"}}); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestColorLineWriterWrapsKnownLevels(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writer := &colorLineWriter{dst: &out}
	payload := []byte("level=ERROR msg=boom\n")
	n, err := writer.Write(payload)
	if err != nil || n != len(payload) {
		t.Fatalf("unexpected write result n=%d err=%v", n, err)
	}
	if !strings.HasPrefix(out.String(), ansiRed) || !strings.HasSuffix(out.String(), ansiReset) {
		t.Fatalf("expected red wrapped line, got %q", out.String())
	}
}
