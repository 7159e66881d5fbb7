// emergency_test.go: Tests for the last-resort writer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEmergencyWriter_AppendsLines(t *testing.T) {
	dir := t.TempDir()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	w := NewEmergencyWriter(EmergencyConfig{
		Path:   filepath.Join(dir, "fallback.txt"),
		Stdout: stdout,
		Stderr: stderr,
	})

	at := time.Date(2025, 3, 9, 14, 5, 9, 0, time.Local)
	w.Write(NewEventAt(LevelInfo, "first", nil, at))
	w.Write(NewEventAt(LevelError, "second", errors.New("cause"), at))

	lines := readLines(t, w.Path())
	want := []string{
		"3/9/2025 14:05:09, first, INFO",
		"3/9/2025 14:05:09, second, ERROR",
		"cause",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("file = %q, want %q", lines, want)
	}
	if w.Failed() {
		t.Error("no write failed")
	}
}

func TestEmergencyWriter_ConsoleRouting(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	w := NewEmergencyWriter(EmergencyConfig{
		Path:   filepath.Join(t.TempDir(), "fallback.txt"),
		Stdout: stdout,
		Stderr: stderr,
	})

	w.Console(LevelInfo, "plain info")
	w.Console(LevelFatal, "fatal text")
	w.Console(LevelError, "error text")
	w.Console(LevelWarn, "warn text")
	w.Console(LevelDebug, "debug text")

	if !strings.Contains(stdout.String(), "plain info") {
		t.Errorf("stdout = %q", stdout.String())
	}
	for _, s := range []string{"fatal text", "error text", "warn text", "debug text"} {
		if !strings.Contains(stderr.String(), s) {
			t.Errorf("stderr missing %q: %q", s, stderr.String())
		}
		if strings.Contains(stdout.String(), s) {
			t.Errorf("%q should not reach stdout", s)
		}
	}
}

func TestEmergencyWriter_WarnsOnce(t *testing.T) {
	stderr := &bytes.Buffer{}
	w := NewEmergencyWriter(EmergencyConfig{
		Path:   filepath.Join(t.TempDir(), "missing", "fallback.txt"),
		Stdout: &bytes.Buffer{},
		Stderr: stderr,
	})

	for i := 0; i < 3; i++ {
		w.Write(NewEvent(LevelInfo, fmt.Sprintf("attempt %d", i), nil))
	}

	if !w.Failed() {
		t.Fatal("writes into a missing directory should fail")
	}
	if n := strings.Count(stderr.String(), "cannot write emergency log"); n != 1 {
		t.Errorf("diagnostic printed %d times, want 1: %q", n, stderr.String())
	}
}

func TestEmergencyWriter_RecoversAfterFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "late")
	w := NewEmergencyWriter(EmergencyConfig{
		Path:   filepath.Join(dir, "fallback.txt"),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	})

	w.Write(NewEvent(LevelInfo, "lost", nil))
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	w.Write(NewEvent(LevelInfo, "kept", nil))

	lines := readLines(t, w.Path())
	if len(lines) != 1 || !strings.Contains(lines[0], "kept") {
		t.Errorf("file = %q", lines)
	}
}

func TestEmergencyWriter_ConcurrentWritersKeepLinesIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.txt")
	writers := []*EmergencyWriter{
		NewEmergencyWriter(EmergencyConfig{Path: path, Stdout: &safeBuffer{}, Stderr: &safeBuffer{}}),
		NewEmergencyWriter(EmergencyConfig{Path: path, Stdout: &safeBuffer{}, Stderr: &safeBuffer{}}),
	}

	var wg sync.WaitGroup
	for wi, w := range writers {
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(wi, g int, w *EmergencyWriter) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					w.Write(NewEvent(LevelInfo, fmt.Sprintf("w%d-g%d-%d", wi, g, i), nil))
				}
			}(wi, g, w)
		}
	}
	wg.Wait()

	lines := readLines(t, path)
	if len(lines) != 2*4*25 {
		t.Fatalf("expected %d lines, got %d", 2*4*25, len(lines))
	}
	for _, l := range lines {
		if strings.Count(l, ", ") != 2 || !strings.HasSuffix(l, ", INFO") {
			t.Fatalf("corrupted line %q", l)
		}
	}
}

func TestEmergencyWriter_Defaults(t *testing.T) {
	w := NewEmergencyWriter(EmergencyConfig{})
	if w.Path() != DefaultEmergencyFilename {
		t.Errorf("Path = %q", w.Path())
	}
}

// safeBuffer is a bytes.Buffer usable from several goroutines.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
