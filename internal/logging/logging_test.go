package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesPrefixedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ffpull.log")
	l, err := Open(Options{File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	l.Logger("sync").Printf("alpha is already up to date")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "[sync] ") {
		t.Errorf("log line = %q, want [sync] prefix", data)
	}
	if !strings.Contains(string(data), "alpha is already up to date") {
		t.Errorf("log line = %q", data)
	}
}

func TestTracefDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffpull.log")
	l, err := Open(Options{File: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Tracef("git")("git %s", "fetch")
	l.Close()

	if data, _ := os.ReadFile(path); len(data) != 0 {
		t.Errorf("trace written while disabled: %q", data)
	}
}

func TestTracefEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffpull.log")
	l, err := Open(Options{File: path, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	l.Tracef("git")("git %s", "fetch")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[git] ") || !strings.Contains(string(data), "git fetch") {
		t.Errorf("trace = %q", data)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Logger("x").Printf("dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffpull.log")
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	lines, err := Tail(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(lines, ",") != "line 7,line 8,line 9" {
		t.Errorf("Tail(3) = %v", lines)
	}

	all, err := Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 10 {
		t.Errorf("Tail(0) returned %d lines, want 10", len(all))
	}

	if _, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 3); !os.IsNotExist(err) {
		t.Errorf("Tail(missing) = %v, want not-exist", err)
	}
}
