// Package logging builds the process loggers.
//
// Every component gets a stdlib *log.Logger with a "[component] " prefix.
// All of them share one size-rotated file managed by lumberjack; with
// verbose set the output is also copied to stderr.
package logging

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ffpull/ffpull/internal/config"
)

// DebugEnv enables tracing of every git command when set to a non-empty value.
const DebugEnv = "FFPULL_DEBUG"

// Options configures the rotating log file.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Verbose    bool
	Debug      bool
}

// FromConfig maps the log section of the config to Options.
func FromConfig(c config.LogConfig) Options {
	return Options{
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Verbose:    c.Verbose,
		Debug:      os.Getenv(DebugEnv) != "",
	}
}

// Logging owns the shared log destination.
type Logging struct {
	w     io.Writer
	file  *lumberjack.Logger
	debug bool
}

// Open creates the log directory and the rotating writer. An empty File
// logs to stderr only when verbose, otherwise nowhere.
func Open(opts Options) (*Logging, error) {
	l := &Logging{debug: opts.Debug}

	var writers []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, l.file)
	}
	if opts.Verbose {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		l.w = io.Discard
	case 1:
		l.w = writers[0]
	default:
		l.w = io.MultiWriter(writers...)
	}
	return l, nil
}

// Discard returns a Logging that drops everything.
func Discard() *Logging {
	return &Logging{w: io.Discard}
}

// Logger returns a logger whose lines are prefixed "[component] ".
func (l *Logging) Logger(component string) *log.Logger {
	return log.New(l.w, "["+component+"] ", log.LstdFlags)
}

// Tracef returns a printf-style function that logs under component when
// debugging is enabled and does nothing otherwise.
func (l *Logging) Tracef(component string) func(format string, args ...any) {
	if !l.debug {
		return func(string, ...any) {}
	}
	return l.Logger(component).Printf
}

// Writer returns the shared destination.
func (l *Logging) Writer() io.Writer {
	return l.w
}

// Close closes the log file, if any.
func (l *Logging) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Tail returns at most n of the last lines of the log file at path.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
