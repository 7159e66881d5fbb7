// filesink.go: Rolling file sink with asynchronous drain
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// FileSinkConfig holds configuration options for creating a FileSink.
// Zero values select the documented defaults.
type FileSinkConfig struct {
	// Filename is the configured log path, e.g. "logs/app.txt". Events are
	// written to "logs/app_<MM-dd-yyyy>.txt" according to their local date.
	// A path without a directory writes to the working directory; a missing
	// directory is created on first write.
	Filename string `json:"filename"`

	// FlushInterval is the period of the background drain (default 500ms).
	FlushInterval time.Duration `json:"flush_interval"`

	// Archival: files older than ArchiveAfter (default 32 days) are moved
	// into a "<yyyy>" subdirectory. The check runs at most once per
	// ArchiveSweepInterval (default 24h).
	ArchiveAfter         time.Duration `json:"archive_after"`
	ArchiveAfterStr      string        `json:"archive_after_str"`
	ArchiveSweepInterval time.Duration `json:"archive_sweep_interval"`

	// File operations
	FileMode   os.FileMode   `json:"file_mode"`
	RetryCount int           `json:"retry_count"`
	RetryDelay time.Duration `json:"retry_delay"`

	// Shared collaborators. Nil values get private defaults; a Pipeline
	// injects the same instances into all of its sinks.
	Emergency *EmergencyWriter `json:"-"`
	LastError *LastError       `json:"-"`
	Locks     *ResourceLocks   `json:"-"`

	// Error handling
	ErrorCallback func(operation string, err error) `json:"-"`
}

// FileSink persists events to a date-rolled text file.
//
// Enqueue never blocks. A background goroutine drains the queue every
// FlushInterval; FlushNow runs the same drain on the caller's goroutine.
// At most one drain runs at a time; a drain attempt that finds another in
// progress returns immediately.
//
// The file handle is opened lazily inside a drain and closed at its end.
type FileSink struct {
	name          rollingName
	fileMode      os.FileMode
	retryCount    int
	retryDelay    time.Duration
	archiveAfter  time.Duration
	sweepInterval time.Duration

	emergency     *EmergencyWriter
	lastError     *LastError
	guard         *ResourceGuard
	errorCallback func(operation string, err error)

	pump      *pump
	lastSweep time.Time // guarded by the drain flag

	currentPath atomic.Pointer[string]
	closed      atomic.Bool
	closeOnce   sync.Once

	written     atomic.Uint64
	writeErrors atomic.Uint64
	archived    atomic.Uint64
}

// NewFileSink validates config, claims the file family in the resource
// registry and starts the background drain.
func NewFileSink(config FileSinkConfig) (*FileSink, error) {
	name, err := parseRollingName(config.Filename)
	if err != nil {
		return nil, err
	}

	archiveAfter, err := resolveDuration(config.ArchiveAfter, config.ArchiveAfterStr, DefaultArchiveAfter)
	if err != nil {
		return nil, err
	}

	s := &FileSink{
		name:          name,
		fileMode:      config.FileMode,
		retryCount:    config.RetryCount,
		retryDelay:    config.RetryDelay,
		archiveAfter:  archiveAfter,
		sweepInterval: config.ArchiveSweepInterval,
		emergency:     config.Emergency,
		lastError:     config.LastError,
		errorCallback: config.ErrorCallback,
	}

	// Apply safe defaults for unset values
	if s.fileMode == 0 {
		s.fileMode = GetDefaultFileMode()
	}
	if s.retryCount <= 0 {
		s.retryCount = DefaultRetryCount
	}
	if s.retryDelay <= 0 {
		s.retryDelay = DefaultRetryDelay
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = DefaultArchiveSweepInterval
	}
	if s.emergency == nil {
		s.emergency = NewEmergencyWriter(EmergencyConfig{
			Path: filepath.Join(name.dir, DefaultEmergencyFilename),
		})
	}
	if s.lastError == nil {
		s.lastError = &LastError{}
	}

	locks := config.Locks
	if locks == nil {
		locks = ProcessLocks
	}
	guard, ok := locks.TryAcquire(name.key())
	if !ok {
		return nil, newError(ErrCodeResourceInUse, fmt.Sprintf("log file %s is already claimed by another sink", name.pathFor("<date>")))
	}
	s.guard = guard

	s.pump = newPump("file", s.reportError)
	s.pump.start(config.FlushInterval, s.beginCycle)
	return s, nil
}

// Enqueue appends ev to the queue and returns immediately. After Close the
// event goes straight to the emergency writer.
func (s *FileSink) Enqueue(ev Event) {
	if s.closed.Load() {
		s.emergency.Write(ev)
		return
	}
	s.pump.enqueue(ev)
}

// FlushNow drains the queue on the calling goroutine. If a drain is already
// in progress elsewhere it returns at once; that drain owns the events.
func (s *FileSink) FlushNow() {
	s.pump.drain(s.beginCycle)
}

// Pending returns the number of queued events.
func (s *FileSink) Pending() int {
	return s.pump.pending()
}

// CurrentFile returns the path most recently opened for writing, or "".
func (s *FileSink) CurrentFile() string {
	if p := s.currentPath.Load(); p != nil {
		return *p
	}
	return ""
}

// PathFor returns the file an event stamped t is written to.
func (s *FileSink) PathFor(t time.Time) string {
	return s.name.pathFor(localDate(t))
}

// MostRecentErrorMessage returns the message of the latest ERROR or FATAL
// event written by this sink or any sink sharing its LastError.
func (s *FileSink) MostRecentErrorMessage() string {
	return s.lastError.Load()
}

// Close stops the background drain, writes whatever is still queued and
// releases the file family. It is safe to call more than once.
func (s *FileSink) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.pump.stop()
		s.FlushNow()
		s.closed.Store(true)
		// Events that raced with the flag are still owed a write.
		s.FlushNow()
		s.guard.Release()

		if n := s.pump.pending(); n > 0 {
			closeErr = newError(ErrCodeFileWrite, fmt.Sprintf("%d events could not be written before close", n))
		}
	})
	return closeErr
}

// FileSinkStats is a point-in-time snapshot of sink counters.
type FileSinkStats struct {
	Pending      int    `json:"pending"`
	Written      uint64 `json:"written"`
	WriteErrors  uint64 `json:"write_errors"`
	Archived     uint64 `json:"archived"`
	CurrentFile  string `json:"current_file"`
	EmergencyLog string `json:"emergency_log"`
}

// Stats returns the sink counters.
func (s *FileSink) Stats() FileSinkStats {
	return FileSinkStats{
		Pending:      s.pump.pending(),
		Written:      s.written.Load(),
		WriteErrors:  s.writeErrors.Load(),
		Archived:     s.archived.Load(),
		CurrentFile:  s.CurrentFile(),
		EmergencyLog: s.emergency.Path(),
	}
}

func (s *FileSink) beginCycle() cycle {
	return &fileCycle{sink: s}
}

// reportError invokes the error callback if set and renders the failure on
// the emergency console path.
func (s *FileSink) reportError(operation string, err error) {
	if s.errorCallback != nil {
		s.errorCallback(operation, err)
	}
	s.emergency.Report(operation, err)
}

// fileCycle owns the open file for a single drain.
type fileCycle struct {
	sink   *FileSink
	file   *os.File
	date   string
	failed bool
}

func (c *fileCycle) deliver(ev Event) error {
	s := c.sink

	date := localDate(ev.Timestamp())
	if c.file != nil && date != c.date {
		c.closeFile()
	}
	if c.file == nil {
		f, err := s.openLogFile(date)
		if err != nil {
			c.fail(ev)
			return err
		}
		c.file = f
		c.date = date
	}

	line := ev.formatLine() + "\n"
	if trace := ev.formatTrace(); trace != "" {
		line += trace + "\n"
	}
	if _, err := c.file.WriteString(line); err != nil {
		c.fail(ev)
		return wrapError(err, ErrCodeFileWrite, fmt.Sprintf("failed to write to %s", c.file.Name()))
	}

	s.written.Add(1)
	s.lastError.observe(ev)
	return nil
}

// fail hands the undeliverable event to the emergency writer.
func (c *fileCycle) fail(ev Event) {
	c.failed = true
	c.sink.writeErrors.Add(1)
	c.sink.lastError.observe(ev)
	c.sink.emergency.Write(ev)
}

func (c *fileCycle) closeFile() {
	if c.file == nil {
		return
	}
	if err := c.file.Close(); err != nil {
		c.sink.reportError("file_close", wrapError(err, ErrCodeFileWrite, "failed to close log file"))
	}
	c.file = nil
	c.date = ""
}

func (c *fileCycle) finish() {
	c.closeFile()
	if c.failed {
		return
	}

	s := c.sink
	now := time.Now()
	if !s.archiveDue(now) {
		return
	}
	s.lastSweep = now
	if n := s.archiveOldFiles(now); n > 0 {
		s.archived.Add(uint64(n))
	}
}
