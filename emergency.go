// emergency.go: Last-resort synchronous writer and console mirror
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/gofrs/flock"
)

// EmergencyConfig configures an EmergencyWriter.
type EmergencyConfig struct {
	// Path of the fallback file. Defaults to DefaultEmergencyFilename in the
	// working directory.
	Path string `json:"path"`

	// Stdout receives INFO events and anything without a severity colour.
	// Defaults to os.Stdout.
	Stdout io.Writer `json:"-"`

	// Stderr receives FATAL, ERROR, WARN and DEBUG events and internal
	// diagnostics. Defaults to os.Stderr.
	Stderr io.Writer `json:"-"`

	// FileMode for the fallback file (default 0644).
	FileMode os.FileMode `json:"file_mode"`
}

// EmergencyWriter appends events to a fixed local file when no sink can
// take them. Every write is serialised across processes with an advisory
// lock on "<path>.lock", so concurrent writers never interleave lines.
//
// The first failure to write the file prints one diagnostic; later failures
// keep trying silently.
type EmergencyWriter struct {
	path     string
	fileMode os.FileMode
	stdout   io.Writer
	stderr   io.Writer

	mu     sync.Mutex
	lock   *flock.Flock
	warned atomic.Bool
}

// NewEmergencyWriter creates a writer. It does not touch the file system
// until the first write.
func NewEmergencyWriter(config EmergencyConfig) *EmergencyWriter {
	w := &EmergencyWriter{
		path:     config.Path,
		fileMode: config.FileMode,
		stdout:   config.Stdout,
		stderr:   config.Stderr,
	}
	if w.path == "" {
		w.path = DefaultEmergencyFilename
	}
	if w.fileMode == 0 {
		w.fileMode = GetDefaultFileMode()
	}
	if w.stdout == nil {
		w.stdout = os.Stdout
	}
	if w.stderr == nil {
		w.stderr = os.Stderr
	}
	w.lock = flock.New(w.path + ".lock")
	return w
}

// Path returns the fallback file path.
func (w *EmergencyWriter) Path() string { return w.path }

// Write persists ev to the fallback file and mirrors it to the console.
func (w *EmergencyWriter) Write(ev Event) {
	w.Console(ev.Level(), ev.Message())

	if err := w.append(ev); err != nil {
		if w.warned.CompareAndSwap(false, true) {
			color.New(color.FgRed, color.Bold).Fprintf(w.stderr,
				"kleio: cannot write emergency log %s: %v\n", w.path, err)
		}
	}
}

// Failed reports whether a write to the fallback file has ever failed.
func (w *EmergencyWriter) Failed() bool { return w.warned.Load() }

func (w *EmergencyWriter) append(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lock.Lock(); err != nil {
		return wrapError(err, ErrCodeEmergencyWrite, "failed to lock emergency log")
	}
	defer func() { _ = w.lock.Unlock() }()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, w.fileMode)
	if err != nil {
		return wrapError(err, ErrCodeEmergencyWrite, "failed to open emergency log")
	}

	line := ev.formatLine() + "\n"
	if trace := ev.formatTrace(); trace != "" {
		line += trace + "\n"
	}
	_, werr := f.WriteString(line)
	cerr := f.Close()
	if werr != nil {
		return wrapError(werr, ErrCodeEmergencyWrite, "failed to write emergency log")
	}
	if cerr != nil {
		return wrapError(cerr, ErrCodeEmergencyWrite, "failed to close emergency log")
	}
	return nil
}

// Console renders text with the colour of level. Severe and debug output
// goes to stderr, everything else to stdout uncoloured.
func (w *EmergencyWriter) Console(level Level, text string) {
	var c *color.Color
	switch level {
	case LevelFatal:
		c = color.New(color.FgRed, color.Bold)
	case LevelError:
		c = color.New(color.FgRed)
	case LevelWarn:
		c = color.New(color.FgYellow)
	case LevelDebug:
		c = color.New(color.FgCyan, color.Faint)
	default:
		fmt.Fprintln(w.stdout, text)
		return
	}
	c.Fprintln(w.stderr, text)
}

// Report renders an internal failure on the console path.
func (w *EmergencyWriter) Report(operation string, err error) {
	w.Console(LevelError, fmt.Sprintf("kleio: %s: %v", operation, err))
}
