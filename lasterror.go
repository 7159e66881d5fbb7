// lasterror.go: Most recent error message snapshot
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import "sync/atomic"

// LastError holds the message of the most recent ERROR or FATAL event seen
// by any sink it is shared with. Status reporters poll it. The zero value is
// ready to use.
type LastError struct {
	msg atomic.Pointer[string]
}

// Set records msg as the most recent error message.
func (l *LastError) Set(msg string) {
	l.msg.Store(&msg)
}

// Load returns the most recent error message, or "" if none was recorded.
func (l *LastError) Load() string {
	if p := l.msg.Load(); p != nil {
		return *p
	}
	return ""
}

// observe records ev when it is an ERROR or FATAL event.
func (l *LastError) observe(ev Event) {
	if l != nil && ev.isErrorLevel() {
		l.Set(ev.Message())
	}
}
