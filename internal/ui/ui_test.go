package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ffpull/ffpull/internal/engine"
	"github.com/ffpull/ffpull/internal/project"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "[          ]"},
		{0.5, "[=====     ]"},
		{1, "[==========]"},
		{2, "[==========]"},
		{-1, "[          ]"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.fraction, 10); got != tt.want {
			t.Errorf("ProgressBar(%v) = %q, want %q", tt.fraction, got, tt.want)
		}
	}
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := engine.Progress{
		Index:    1,
		Total:    4,
		Record:   project.Record{Name: "alpha"},
		Outcome:  engine.Outcome{Kind: engine.FastForwarded},
		Fraction: 0.25,
	}
	PrintProgress(&buf, p, false)

	got := buf.String()
	if !strings.Contains(got, " 25% (1/4) alpha: fast-forwarded") {
		t.Errorf("PrintProgress() = %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Error("non-live progress line not newline-terminated")
	}

	buf.Reset()
	PrintProgress(&buf, p, true)
	if !strings.HasPrefix(buf.String(), "\r") || strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("live progress = %q", buf.String())
	}
}

func TestRenderLogLinePlain(t *testing.T) {
	for _, line := range []string{"[INFO] a", "[WARN] b", "[ERROR] c"} {
		if got := RenderLogLine(line); got != line {
			t.Errorf("RenderLogLine(%q) = %q without colors", line, got)
		}
	}
}
