// pipeline.go: Service object owning the sinks and their shared state
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// File configures the rolling file sink. Filename is required. The
	// Emergency, LastError and Locks fields are filled in by the pipeline
	// when left nil.
	File FileSinkConfig `json:"file"`

	// Database configures the optional stored-procedure sink. It is built
	// only when Transport is set. File, Emergency and LastError are always
	// taken from the pipeline.
	Database *DatabaseSinkConfig `json:"database,omitempty"`

	// Emergency configures the fallback writer. Path defaults to
	// FileLoggerErrors.txt next to the log files.
	Emergency EmergencyConfig `json:"emergency"`

	// ErrorCallback receives internal failures of every sink unless the
	// sink config sets its own.
	ErrorCallback func(operation string, err error) `json:"-"`
}

// Pipeline owns one FileSink, an optional DatabaseSink, the emergency
// writer, the most recent error message and the clock used to stamp events.
type Pipeline struct {
	file      *FileSink
	database  *DatabaseSink
	emergency *EmergencyWriter
	lastError *LastError
	timeCache *timecache.TimeCache

	closeOnce sync.Once
}

// NewPipeline builds and starts the sinks described by config.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	name, err := parseRollingName(config.File.Filename)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{lastError: &LastError{}}

	ec := config.Emergency
	if ec.Path == "" {
		ec.Path = filepath.Join(name.dir, DefaultEmergencyFilename)
	}
	p.emergency = NewEmergencyWriter(ec)

	fc := config.File
	if fc.Emergency == nil {
		fc.Emergency = p.emergency
	}
	if fc.LastError == nil {
		fc.LastError = p.lastError
	}
	if fc.ErrorCallback == nil {
		fc.ErrorCallback = config.ErrorCallback
	}
	p.file, err = NewFileSink(fc)
	if err != nil {
		return nil, err
	}
	p.emergency = fc.Emergency
	p.lastError = fc.LastError

	if config.Database != nil && config.Database.Transport != nil {
		dc := *config.Database
		dc.File = p.file
		dc.Emergency = fc.Emergency
		dc.LastError = p.lastError
		if dc.ErrorCallback == nil {
			dc.ErrorCallback = config.ErrorCallback
		}
		p.database, err = NewDatabaseSink(dc)
		if err != nil {
			_ = p.file.Close()
			return nil, err
		}
	}

	// Initialize time cache for event timestamps
	p.timeCache = timecache.NewWithResolution(time.Millisecond)
	return p, nil
}

// Run builds a pipeline, passes it to fn and flushes and closes it on every
// exit path. If fn panics the pending events are written before the panic
// continues.
func Run(config PipelineConfig, fn func(p *Pipeline) error) (err error) {
	p, err := NewPipeline(config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(p)
}

// Logger returns a facade over the file sink.
func (p *Pipeline) Logger(threshold Level) *Logger {
	return p.newLogger(p.file, threshold)
}

// DatabaseLogger returns a facade over the database sink. Without one it
// falls back to the file sink.
func (p *Pipeline) DatabaseLogger(threshold Level) *Logger {
	if p.database == nil {
		return p.Logger(threshold)
	}
	return p.newLogger(p.database, threshold)
}

func (p *Pipeline) newLogger(sink Sink, threshold Level) *Logger {
	l := NewLogger(sink, threshold)
	l.now = p.timeCache.CachedTime
	return l
}

// File returns the file sink.
func (p *Pipeline) File() *FileSink { return p.file }

// Database returns the database sink, or nil if none was configured.
func (p *Pipeline) Database() *DatabaseSink { return p.database }

// Emergency returns the shared emergency writer.
func (p *Pipeline) Emergency() *EmergencyWriter { return p.emergency }

// FlushPendingMessages drains every sink on the calling goroutine. The
// database sink goes first so its echoes and diagnostics reach the file in
// the same call.
func (p *Pipeline) FlushPendingMessages() {
	if p.database != nil {
		p.database.FlushNow()
	}
	p.file.FlushNow()
}

// MostRecentErrorMessage returns the message of the latest ERROR or FATAL
// event seen by any sink of the pipeline.
func (p *Pipeline) MostRecentErrorMessage() string {
	return p.lastError.Load()
}

// Close flushes and stops every sink. It is safe to call more than once.
func (p *Pipeline) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		if p.database != nil {
			errs = append(errs, p.database.Close())
		}
		errs = append(errs, p.file.Close())
		if p.timeCache != nil {
			p.timeCache.Stop()
		}
	})
	return errors.Join(errs...)
}
