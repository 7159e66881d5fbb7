// event.go: Log levels, the level gate and the immutable log event
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of an event. Lower values are more severe;
// NoLogging is reserved and never takes part in the ordinary comparison.
type Level int

const (
	LevelNoLogging Level = 0
	LevelFatal     Level = 1
	LevelError     Level = 2
	LevelWarn      Level = 3
	LevelInfo      Level = 4
	LevelDebug     Level = 5
)

var levelNames = map[Level]string{
	LevelNoLogging: "NOLOGGING",
	LevelFatal:     "FATAL",
	LevelError:     "ERROR",
	LevelWarn:      "WARN",
	LevelInfo:      "INFO",
	LevelDebug:     "DEBUG",
}

// String returns the upper-case spelling used in log files.
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Capitalized returns the level spelled with only its first letter in upper
// case ("Error", "Warn"), the form expected by database consumers.
func (l Level) Capitalized() string {
	s := l.String()
	if len(s) < 2 {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel accepts a level name in any case ("info", "WARN", "NoLogging").
func ParseLevel(s string) (Level, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if up == "WARNING" {
		return LevelWarn, nil
	}
	for lvl, name := range levelNames {
		if name == up {
			return lvl, nil
		}
	}
	return LevelNoLogging, newError(ErrCodeUnknownLevel, fmt.Sprintf("unknown log level %q", s))
}

// Allow is the level gate: an event at level is let through a threshold when
// it is at least as severe as the threshold and the threshold is not NoLogging.
func Allow(level, threshold Level) bool {
	return threshold != LevelNoLogging && level <= threshold
}

// Event is one log occurrence. It is immutable once constructed.
type Event struct {
	level     Level
	message   string
	err       error
	timestamp time.Time
}

// NewEvent creates an event stamped with the current time.
func NewEvent(level Level, message string, err error) Event {
	return NewEventAt(level, message, err, time.Now())
}

// NewEventAt creates an event stamped with the given instant.
func NewEventAt(level Level, message string, err error, at time.Time) Event {
	return Event{
		level:     level,
		message:   message,
		err:       err,
		timestamp: at.UTC(),
	}
}

// Level returns the event severity.
func (e Event) Level() Level { return e.level }

// Message returns the event text.
func (e Event) Message() string { return e.message }

// Err returns the attached error, if any.
func (e Event) Err() error { return e.err }

// Timestamp returns the construction instant in UTC.
func (e Event) Timestamp() time.Time { return e.timestamp }

// isErrorLevel reports whether the event updates the most recent error message.
func (e Event) isErrorLevel() bool {
	return e.level == LevelError || e.level == LevelFatal
}

// formatLine renders "<M/d/yyyy H:mm:ss>, <message>, <LEVEL>" in local time.
func (e Event) formatLine() string {
	return formatTimestamp(e.timestamp.Local()) + ", " + e.message + ", " + e.level.String()
}

// formatTrace renders the full error chain, or "" if the event has no error.
func (e Event) formatTrace() string {
	if e.err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.err)
}

func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d %d:%02d:%02d",
		int(t.Month()), t.Day(), t.Year(), t.Hour(), t.Minute(), t.Second())
}
