package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestParseLines(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []string
	}{
		{
			name:     "empty input",
			input:    []byte(""),
			expected: nil,
		},
		{
			name:     "single line",
			input:    []byte("line1"),
			expected: []string{"line1"},
		},
		{
			name:     "lines with whitespace",
			input:    []byte("  origin  \n  upstream  "),
			expected: []string{"origin", "upstream"},
		},
		{
			name:     "empty lines filtered",
			input:    []byte("line1\n\nline2\n\n\nline3\n"),
			expected: []string{"line1", "line2", "line3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseLines(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d lines, got %d", len(tt.expected), len(result))
			}

			for i, line := range result {
				if line != tt.expected[i] {
					t.Errorf("Line %d: expected %q, got %q", i, tt.expected[i], line)
				}
			}
		})
	}
}

func TestTrimOutput(t *testing.T) {
	if got := TrimOutput([]byte("  abc123\n")); got != "abc123" {
		t.Errorf("TrimOutput() = %q, want %q", got, "abc123")
	}
	if got := TrimOutput(nil); got != "" {
		t.Errorf("TrimOutput(nil) = %q, want empty", got)
	}
}

func TestExecContext(t *testing.T) {
	ctx := context.Background()

	output, err := ExecContext(ctx, 5*time.Second, t.TempDir(), "echo", "test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result := strings.TrimSpace(string(output)); result != "test" {
		t.Errorf("Expected 'test', got '%s'", result)
	}
}

func TestExecContextIncludesStderr(t *testing.T) {
	_, err := ExecContext(context.Background(), 5*time.Second, t.TempDir(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not include stderr", err)
	}
	if code := GetExitCode(err); code != 3 {
		t.Errorf("GetExitCode() = %d, want 3", code)
	}
}

func TestExecContextTimeout(t *testing.T) {
	_, err := ExecContext(context.Background(), 100*time.Millisecond, t.TempDir(), "sleep", "2")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestExecContextMissingBinary(t *testing.T) {
	_, err := ExecContext(context.Background(), time.Second, t.TempDir(), "ffpull-no-such-binary")
	if !errors.Is(err, ErrVCSNotAvailable) {
		t.Errorf("Expected ErrVCSNotAvailable, got %v", err)
	}
}

func TestGetExitCode(t *testing.T) {
	if code := GetExitCode(nil); code != 0 {
		t.Errorf("Expected exit code 0 for nil error, got %d", code)
	}

	err := exec.Command("sh", "-c", "exit 42").Run()
	if code := GetExitCode(err); code != 42 {
		t.Errorf("Expected exit code 42, got %d", code)
	}

	if code := GetExitCode(errors.New("plain")); code != -1 {
		t.Errorf("Expected -1 for non-exit error, got %d", code)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("0123456789abcdef"); got != "0123456" {
		t.Errorf("ShortHash() = %q", got)
	}
	if got := ShortHash("abc"); got != "abc" {
		t.Errorf("ShortHash(short) = %q", got)
	}
}

func TestBranchRef(t *testing.T) {
	if got := BranchRef("master"); got != "refs/heads/master" {
		t.Errorf("BranchRef() = %q", got)
	}
}

func TestMergeAnalysisString(t *testing.T) {
	tests := map[MergeAnalysis]string{
		AnalysisUpToDate:    "up-to-date",
		AnalysisFastForward: "fast-forward",
		AnalysisNormal:      "normal",
		MergeAnalysis(99):   "unknown",
	}
	for a, want := range tests {
		if got := a.String(); got != want {
			t.Errorf("MergeAnalysis(%d).String() = %q, want %q", int(a), got, want)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	wrappedTimeout := fmt.Errorf("git fetch: %w", ErrTimeout)

	if !IsRetryable(wrappedTimeout) {
		t.Error("IsRetryable(timeout) = false, want true")
	}
	if IsRetryable(ErrNotInVCS) {
		t.Error("IsRetryable(ErrNotInVCS) = true, want false")
	}
	if !IsRetryable(fmt.Errorf("refs/heads/master: %w", ErrRefChanged)) {
		t.Error("IsRetryable(ref changed) = false, want true")
	}
	if !IsTimeout(wrappedTimeout) || IsTimeout(ErrRefChanged) {
		t.Error("IsTimeout misclassified")
	}
	if IsRetryable(nil) || IsTimeout(nil) {
		t.Error("nil error classified")
	}
}
