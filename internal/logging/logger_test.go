package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesConsoleFormatToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "reframe.log")
	logger, err := New(Options{Level: "info", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scoped := NewComponentLogger(logger, "encoder")
	scoped.Info("transcode progress", Float64("percent", 42))
	scoped.Debug("suppressed at info level")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	output := string(data)

	if !strings.Contains(output, "[encoder]") {
		t.Fatalf("expected component prefix in output: %q", output)
	}
	if !strings.Contains(output, "transcode progress") {
		t.Fatalf("expected message in output: %q", output)
	}
	if !strings.Contains(output, "percent=42") {
		t.Fatalf("expected attribute in output: %q", output)
	}
	if strings.Contains(output, "suppressed") {
		t.Fatalf("debug line must not appear at info level: %q", output)
	}
}

func TestNewWritesJSONFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "reframe.log")
	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	WithJobID(logger, "job-1").Info("started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	output := string(data)

	for _, want := range []string{`"msg":"started"`, `"level":"info"`, `"job_id":"job-1"`, `"ts":"`} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output: %q", want, output)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
