package logbuf

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"
)

func TestAppendKeepsLastThousand(t *testing.T) {
	b := New(0)

	for i := 0; i < 1200; i++ {
		b.Append(fmt.Sprintf("line %d", i))
	}

	lines := b.Lines()
	if len(lines) != 1000 {
		t.Fatalf("Len = %d, want 1000", len(lines))
	}
	if lines[0] != "line 200" {
		t.Errorf("oldest line = %q, want %q", lines[0], "line 200")
	}
	if lines[999] != "line 1199" {
		t.Errorf("newest line = %q, want %q", lines[999], "line 1199")
	}
	for i, line := range lines {
		if want := fmt.Sprintf("line %d", i+200); line != want {
			t.Fatalf("lines[%d] = %q, want %q", i, line, want)
		}
	}
}

func TestAppendBelowCapacity(t *testing.T) {
	b := New(5)
	b.Append("a")
	b.Append("b")

	if got := b.String(); got != "a\nb" {
		t.Errorf("String() = %q, want %q", got, "a\nb")
	}
}

func TestAppendSplitsMultiline(t *testing.T) {
	b := New(3)
	b.Append("one\ntwo\n")
	b.Append("three\nfour")

	want := []string{"two", "three", "four"}
	got := b.Lines()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Lines() = %v, want %v", got, want)
	}
}

func TestSeverityPrefixes(t *testing.T) {
	b := New(10)
	b.Infof("project %s is already up to date", "alpha")
	b.Warnf("sync canceled after %d/%d", 1, 3)
	b.Errorf("cannot open repository: %s", "/nope")

	want := []string{
		"[INFO] project alpha is already up to date",
		"[WARN] sync canceled after 1/3",
		"[ERROR] cannot open repository: /nope",
	}
	got := b.Lines()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTailAndClear(t *testing.T) {
	b := New(4)
	for i := 0; i < 6; i++ {
		b.Append(fmt.Sprint(i))
	}

	if got := strings.Join(b.Tail(2), ","); got != "4,5" {
		t.Errorf("Tail(2) = %v", got)
	}
	if got := len(b.Tail(10)); got != 4 {
		t.Errorf("Tail(10) returned %d lines, want 4", got)
	}

	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Len() after Clear = %d", b.Len())
	}
	b.Append("fresh")
	if got := b.String(); got != "fresh" {
		t.Errorf("String() after Clear = %q", got)
	}
}

func TestMirrorAndWriter(t *testing.T) {
	var out bytes.Buffer
	b := New(10)
	b.SetMirror(log.New(&out, "", 0))

	logger := log.New(b, "", 0)
	logger.Printf("[INFO] via logger")

	if got := b.Lines(); len(got) != 1 || got[0] != "[INFO] via logger" {
		t.Errorf("Lines() = %v", got)
	}
	if out.String() != "[INFO] via logger\n" {
		t.Errorf("mirror got %q", out.String())
	}
}

func TestSubscribe(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(4)

	b.Infof("hello")

	select {
	case line := <-ch:
		if line != "[INFO] hello" {
			t.Errorf("subscriber got %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive line")
	}

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Appending after cancel must not panic
	b.Infof("after")
}
