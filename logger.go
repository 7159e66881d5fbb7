// logger.go: Per-level facade over a sink
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Sink accepts events without blocking. FileSink and DatabaseSink
// implement it.
type Sink interface {
	Enqueue(ev Event)
}

// Logger applies a threshold and forwards events to a sink. Loggers are
// cheap; many may share one sink.
type Logger struct {
	sink      Sink
	threshold Level
	now       func() time.Time
}

// NewLogger returns a logger that lets through events at least as severe as
// threshold. LevelNoLogging suppresses everything.
func NewLogger(sink Sink, threshold Level) *Logger {
	return &Logger{sink: sink, threshold: threshold, now: time.Now}
}

// Threshold returns the configured threshold.
func (l *Logger) Threshold() Level { return l.threshold }

// Enabled reports whether an event at level would be forwarded.
func (l *Logger) Enabled(level Level) bool { return Allow(level, l.threshold) }

// Debug logs at DEBUG. The first non-nil err is attached to the event.
func (l *Logger) Debug(message string, err ...error) { l.emit(LevelDebug, message, err) }

// Info logs at INFO.
func (l *Logger) Info(message string, err ...error) { l.emit(LevelInfo, message, err) }

// Warn logs at WARN.
func (l *Logger) Warn(message string, err ...error) { l.emit(LevelWarn, message, err) }

// Error logs at ERROR.
func (l *Logger) Error(message string, err ...error) { l.emit(LevelError, message, err) }

// Fatal logs at FATAL. It does not exit the process.
func (l *Logger) Fatal(message string, err ...error) { l.emit(LevelFatal, message, err) }

// Log dispatches to the method matching level. An undefined level, or
// LevelNoLogging, is a programming error and panics.
func (l *Logger) Log(level Level, message string, err error) {
	switch level {
	case LevelDebug:
		l.Debug(message, err)
	case LevelInfo:
		l.Info(message, err)
	case LevelWarn:
		l.Warn(message, err)
	case LevelError:
		l.Error(message, err)
	case LevelFatal:
		l.Fatal(message, err)
	default:
		panic(newError(ErrCodeUnknownLevel, fmt.Sprintf("cannot log at level %s", level)))
	}
}

func (l *Logger) emit(level Level, message string, errs []error) {
	if !Allow(level, l.threshold) {
		return
	}
	l.sink.Enqueue(NewEventAt(level, message, firstError(errs), l.now()))
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Writer returns an io.Writer that logs every line written to it at level,
// for libraries that only accept a writer:
//
//	log.SetOutput(logger.Writer(kleio.LevelInfo))
//
// A trailing partial line is held until its newline arrives.
func (l *Logger) Writer(level Level) io.Writer {
	if !level.Valid() || level == LevelNoLogging {
		panic(newError(ErrCodeUnknownLevel, fmt.Sprintf("cannot write at level %s", level)))
	}
	return &lineWriter{logger: l, level: level}
}

type lineWriter struct {
	logger  *Logger
	level   Level
	mu      sync.Mutex
	partial []byte
}

func (w *lineWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, data...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.partial[:i], "\r")
		if len(line) > 0 {
			w.logger.Log(w.level, string(line), nil)
		}
		w.partial = w.partial[i+1:]
	}
	return len(data), nil
}
