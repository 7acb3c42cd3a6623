package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCreatesLogDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wppbotd.log")
	logger, err := New(path, "main", false)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["msg"] != "hello" || entry["session"] != "main" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["pid"]; !ok {
		t.Error("pid field missing")
	}
}

func TestDebugLevel(t *testing.T) {
	var file, console bytes.Buffer
	newTee(&file, &console, "main", false).Debug("hidden")
	if file.Len() != 0 || console.Len() != 0 {
		t.Error("debug entry written at info level")
	}

	newTee(&file, &console, "main", true).Debug("shown")
	if !strings.Contains(file.String(), "shown") || !strings.Contains(console.String(), "shown") {
		t.Error("debug entry missing with debug enabled")
	}
}
