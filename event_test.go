// event_test.go: Tests for levels, the level gate and events
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var allLevels = []Level{LevelNoLogging, LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug}

func TestAllow_Exhaustive(t *testing.T) {
	for _, threshold := range allLevels {
		for _, level := range allLevels {
			want := level <= threshold && threshold != LevelNoLogging
			if got := Allow(level, threshold); got != want {
				t.Errorf("Allow(%s, %s) = %v, want %v", level, threshold, got, want)
			}
		}
	}
}

func TestAllow_InfoThreshold(t *testing.T) {
	for _, level := range []Level{LevelFatal, LevelError, LevelWarn, LevelInfo} {
		if !Allow(level, LevelInfo) {
			t.Errorf("%s should pass an INFO threshold", level)
		}
	}
	if Allow(LevelDebug, LevelInfo) {
		t.Error("DEBUG should not pass an INFO threshold")
	}
	if Allow(LevelFatal, LevelNoLogging) {
		t.Error("nothing passes a NOLOGGING threshold")
	}
}

func TestLevel_Strings(t *testing.T) {
	tests := []struct {
		level       Level
		upper       string
		capitalized string
	}{
		{LevelFatal, "FATAL", "Fatal"},
		{LevelError, "ERROR", "Error"},
		{LevelWarn, "WARN", "Warn"},
		{LevelInfo, "INFO", "Info"},
		{LevelDebug, "DEBUG", "Debug"},
		{LevelNoLogging, "NOLOGGING", "Nologging"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.upper {
			t.Errorf("String() = %q, want %q", got, tt.upper)
		}
		if got := tt.level.Capitalized(); got != tt.capitalized {
			t.Errorf("Capitalized() = %q, want %q", got, tt.capitalized)
		}
		if !tt.level.Valid() {
			t.Errorf("%s should be valid", tt.upper)
		}
	}

	if got := Level(42).String(); got != "LEVEL(42)" {
		t.Errorf("unknown level String() = %q", got)
	}
	if Level(42).Valid() {
		t.Error("Level(42) should not be valid")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"info", LevelInfo},
		{"INFO", LevelInfo},
		{" Debug ", LevelDebug},
		{"warning", LevelWarn},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"NoLogging", LevelNoLogging},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); !HasCode(err, ErrCodeUnknownLevel) {
		t.Errorf("expected %s, got %v", ErrCodeUnknownLevel, err)
	}
}

func TestEvent_TimestampIsUTCAndFixed(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2025, 3, 9, 14, 5, 9, 0, loc)

	ev := NewEventAt(LevelInfo, "start", nil, at)
	if ev.Timestamp().Location() != time.UTC {
		t.Errorf("timestamp should be stored in UTC, got %v", ev.Timestamp().Location())
	}
	if !ev.Timestamp().Equal(at) {
		t.Errorf("timestamp moved: %v != %v", ev.Timestamp(), at)
	}

	before := time.Now()
	ev = NewEvent(LevelWarn, "now", nil)
	if ev.Timestamp().Before(before.Add(-time.Second)) || ev.Timestamp().After(time.Now().Add(time.Second)) {
		t.Errorf("NewEvent timestamp %v not near construction time", ev.Timestamp())
	}
}

func TestEvent_FormatLine(t *testing.T) {
	at := time.Date(2025, 3, 9, 4, 5, 9, 0, time.Local)
	ev := NewEventAt(LevelError, "bad input", nil, at)

	if got, want := ev.formatLine(), "3/9/2025 4:05:09, bad input, ERROR"; got != want {
		t.Errorf("formatLine() = %q, want %q", got, want)
	}
	if ev.formatTrace() != "" {
		t.Error("event without error should have no trace")
	}
}

func TestEvent_FormatTraceIncludesChain(t *testing.T) {
	root := errors.New("disk full")
	err := fmt.Errorf("write segment: %w", root)
	ev := NewEventAt(LevelError, "bad input", err, time.Now())

	trace := ev.formatTrace()
	if !strings.Contains(trace, "write segment") || !strings.Contains(trace, "disk full") {
		t.Errorf("trace should render the full chain, got %q", trace)
	}
	if ev.Err() != err {
		t.Error("Err() should return the attached error")
	}
}

func TestEvent_IsErrorLevel(t *testing.T) {
	for _, lvl := range allLevels {
		want := lvl == LevelError || lvl == LevelFatal
		if got := NewEvent(lvl, "m", nil).isErrorLevel(); got != want {
			t.Errorf("isErrorLevel(%s) = %v", lvl, got)
		}
	}
}
