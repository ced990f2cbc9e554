// Package logbuf provides the append-only, capped log that sync and
// registration results are reported to.
//
// Lines are severity tagged ("[INFO] ...", "[WARN] ...", "[ERROR] ...").
// Once the buffer holds Capacity lines, every append discards the oldest.
package logbuf

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// DefaultCapacity is the number of lines kept when none is configured.
const DefaultCapacity = 1000

// Severity tags a log line.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Buffer is a FIFO-truncating line log. It is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	lines    []string
	start    int
	capacity int

	// mirror receives every appended line, e.g. the rotating process log
	mirror *log.Logger

	subs   map[chan string]struct{}
	subsMu sync.Mutex
}

// New creates a Buffer keeping the most recent capacity lines.
// A capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		lines:    make([]string, 0, min(capacity, 64)),
		subs:     make(map[chan string]struct{}),
	}
}

// SetMirror copies every appended line to logger. Pass nil to stop.
func (b *Buffer) SetMirror(logger *log.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirror = logger
}

// Capacity returns the maximum number of lines kept.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Append adds text to the log. Multi-line text is split so that each
// stored entry is exactly one line; a trailing newline adds nothing.
func (b *Buffer) Append(text string) {
	text = strings.TrimSuffix(text, "\n")
	added := strings.Split(text, "\n")

	b.mu.Lock()
	for _, line := range added {
		b.push(line)
	}
	mirror := b.mirror
	b.mu.Unlock()

	for _, line := range added {
		if mirror != nil {
			mirror.Println(line)
		}
		b.publish(line)
	}
}

// push stores one line, overwriting the oldest once full. Caller holds mu.
func (b *Buffer) push(line string) {
	if len(b.lines) < b.capacity {
		b.lines = append(b.lines, line)
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % b.capacity
}

// Logf appends a line tagged with sev.
func (b *Buffer) Logf(sev Severity, format string, args ...any) {
	b.Append(fmt.Sprintf("[%s] %s", sev, fmt.Sprintf(format, args...)))
}

// Infof appends an [INFO] line.
func (b *Buffer) Infof(format string, args ...any) {
	b.Logf(SeverityInfo, format, args...)
}

// Warnf appends a [WARN] line.
func (b *Buffer) Warnf(format string, args ...any) {
	b.Logf(SeverityWarn, format, args...)
}

// Errorf appends an [ERROR] line.
func (b *Buffer) Errorf(format string, args ...any) {
	b.Logf(SeverityError, format, args...)
}

// Write implements io.Writer so a *log.Logger can target the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(string(p))
	return len(p), nil
}

// Lines returns a copy of the stored lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.start:]...)
	out = append(out, b.lines[:b.start]...)
	return out
}

// Tail returns at most n of the newest lines, oldest first.
func (b *Buffer) Tail(n int) []string {
	lines := b.Lines()
	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Len returns the number of stored lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// String returns the log as newline-joined text.
func (b *Buffer) String() string {
	return strings.Join(b.Lines(), "\n")
}

// Clear drops every stored line.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
	b.start = 0
}

// Subscribe returns a channel receiving each line appended from now on and a
// function that ends the subscription. Slow subscribers miss lines rather
// than block writers.
func (b *Buffer) Subscribe(buffer int) (<-chan string, func()) {
	ch := make(chan string, buffer)

	b.subsMu.Lock()
	b.subs[ch] = struct{}{}
	b.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.subsMu.Lock()
			delete(b.subs, ch)
			b.subsMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Buffer) publish(line string) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- line:
		default:
		}
	}
}
