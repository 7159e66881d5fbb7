// logger_test.go: Tests for the per-level facade
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"errors"
	"fmt"
	"log"
	"testing"
	"time"
)

// collectSink keeps every event it is given.
type collectSink struct{ events []Event }

func (c *collectSink) Enqueue(ev Event) { c.events = append(c.events, ev) }

func TestLogger_ThresholdFiltering(t *testing.T) {
	tests := []struct {
		threshold Level
		want      int
	}{
		{LevelNoLogging, 0},
		{LevelFatal, 1},
		{LevelError, 2},
		{LevelWarn, 3},
		{LevelInfo, 4},
		{LevelDebug, 5},
	}
	for _, tt := range tests {
		t.Run(tt.threshold.String(), func(t *testing.T) {
			sink := &collectSink{}
			l := NewLogger(sink, tt.threshold)
			l.Fatal("f")
			l.Error("e")
			l.Warn("w")
			l.Info("i")
			l.Debug("d")
			if len(sink.events) != tt.want {
				t.Errorf("got %d events, want %d", len(sink.events), tt.want)
			}
		})
	}
}

func TestLogger_LogDispatch(t *testing.T) {
	sink := &collectSink{}
	l := NewLogger(sink, LevelDebug)
	cause := errors.New("cause")

	for _, lvl := range []Level{LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug} {
		l.Log(lvl, lvl.String(), cause)
	}
	if len(sink.events) != 5 {
		t.Fatalf("got %d events", len(sink.events))
	}
	for i, lvl := range []Level{LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug} {
		ev := sink.events[i]
		if ev.Level() != lvl || ev.Message() != lvl.String() || ev.Err() != cause {
			t.Errorf("event %d = %s %q %v", i, ev.Level(), ev.Message(), ev.Err())
		}
	}
}

func TestLogger_LogUnknownLevelPanics(t *testing.T) {
	for _, lvl := range []Level{LevelNoLogging, Level(9), Level(-1)} {
		func() {
			defer func() {
				r := recover()
				if r == nil {
					t.Errorf("Log(%s) should panic", lvl)
					return
				}
				err, ok := r.(error)
				if !ok || !HasCode(err, ErrCodeUnknownLevel) {
					t.Errorf("panic value = %v", r)
				}
			}()
			NewLogger(&collectSink{}, LevelDebug).Log(lvl, "x", nil)
		}()
	}
}

func TestLogger_FirstNonNilError(t *testing.T) {
	sink := &collectSink{}
	l := NewLogger(sink, LevelDebug)
	second := errors.New("second")

	l.Error("no error")
	l.Error("skip nil", nil, second)

	if sink.events[0].Err() != nil {
		t.Error("no error expected")
	}
	if sink.events[1].Err() != second {
		t.Errorf("got %v", sink.events[1].Err())
	}
}

func TestLogger_StampsAtCallTime(t *testing.T) {
	sink := &collectSink{}
	l := NewLogger(sink, LevelInfo)
	fixed := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Info("stamped")
	if !sink.events[0].Timestamp().Equal(fixed) {
		t.Errorf("timestamp = %v", sink.events[0].Timestamp())
	}
}

func TestLogger_Enabled(t *testing.T) {
	l := NewLogger(&collectSink{}, LevelWarn)
	if l.Threshold() != LevelWarn {
		t.Errorf("Threshold = %s", l.Threshold())
	}
	if !l.Enabled(LevelError) || l.Enabled(LevelInfo) {
		t.Error("Enabled disagrees with Allow")
	}
}

func TestLogger_Writer(t *testing.T) {
	sink := &collectSink{}
	l := NewLogger(sink, LevelInfo)

	w := l.Writer(LevelWarn)
	fmt.Fprint(w, "first line\nsecond ")
	fmt.Fprint(w, "line\r\n\n")
	fmt.Fprint(w, "unterminated")

	if len(sink.events) != 2 {
		t.Fatalf("got %d events", len(sink.events))
	}
	if sink.events[0].Message() != "first line" || sink.events[1].Message() != "second line" {
		t.Errorf("messages = %q, %q", sink.events[0].Message(), sink.events[1].Message())
	}
	if sink.events[0].Level() != LevelWarn {
		t.Errorf("level = %s", sink.events[0].Level())
	}

	// Lines below the threshold are dropped like any other call.
	fmt.Fprintln(l.Writer(LevelDebug), "hidden")
	if len(sink.events) != 2 {
		t.Error("DEBUG line passed an INFO threshold")
	}
}

func TestLogger_WriterWithStandardLog(t *testing.T) {
	sink := &collectSink{}
	std := log.New(NewLogger(sink, LevelDebug).Writer(LevelInfo), "job: ", 0)
	std.Println("hello")

	if len(sink.events) != 1 || sink.events[0].Message() != "job: hello" {
		t.Fatalf("events = %+v", sink.events)
	}
}

func TestLogger_WriterRejectsNoLogging(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Writer(LevelNoLogging) should panic")
		}
	}()
	NewLogger(&collectSink{}, LevelInfo).Writer(LevelNoLogging)
}
