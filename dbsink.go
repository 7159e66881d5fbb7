// dbsink.go: Stored-procedure sink with retry, echo and escalation
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ProcedureConfig names the stored procedure and its parameters. An empty
// ConnectionString or ProcedureName disables remote delivery.
type ProcedureConfig struct {
	ModuleName       string `json:"module_name"`
	ConnectionString string `json:"-"`
	ProcedureName    string `json:"procedure_name"`

	LevelParam   string `json:"level_param"`
	MessageParam string `json:"message_param"`
	SourceParam  string `json:"source_param"`

	// Maximum parameter lengths (defaults 128, 4000, 128).
	LevelParamSize   int `json:"level_param_size"`
	MessageParamSize int `json:"message_param_size"`
	SourceParamSize  int `json:"source_param_size"`
}

// Enabled reports whether remote delivery is configured.
func (c ProcedureConfig) Enabled() bool {
	return c.ConnectionString != "" && c.ProcedureName != ""
}

func (c ProcedureConfig) withDefaults() ProcedureConfig {
	if c.LevelParamSize <= 0 {
		c.LevelParamSize = DefaultLevelParamSize
	}
	if c.MessageParamSize <= 0 {
		c.MessageParamSize = DefaultMessageParamSize
	}
	if c.SourceParamSize <= 0 {
		c.SourceParamSize = DefaultSourceParamSize
	}
	return c
}

// call builds the invocation for ev.
func (c ProcedureConfig) call(ev Event, capitalize bool) ProcedureCall {
	level := ev.Level().String()
	if capitalize {
		level = ev.Level().Capitalized()
	}
	return ProcedureCall{
		Procedure: c.ProcedureName,
		Params: []ProcedureParam{
			{Name: c.LevelParam, Value: level, Size: c.LevelParamSize},
			{Name: c.MessageParam, Value: ev.Message(), Size: c.MessageParamSize},
			{Name: c.SourceParam, Value: c.ModuleName, Size: c.SourceParamSize},
		},
	}
}

// DatabaseSinkConfig holds configuration options for creating a DatabaseSink.
type DatabaseSinkConfig struct {
	// Transport performs the calls. Required.
	Transport Transport `json:"-"`

	// File receives echoed events and retry diagnostics. Optional; without
	// it diagnostics go to the emergency writer.
	File *FileSink `json:"-"`

	// By default every event is echoed to File regardless of remote outcome,
	// and levels are sent as "Error" rather than "ERROR".
	DisableEcho       bool `json:"disable_echo"`
	DisableCapitalize bool `json:"disable_capitalize"`

	// Procedure is the initial configuration; see Configure.
	Procedure ProcedureConfig `json:"procedure"`

	FlushInterval time.Duration `json:"flush_interval"` // default 500ms
	CallTimeout   time.Duration `json:"call_timeout"`   // default 15s
	MaxAttempts   int           `json:"max_attempts"`   // default 3

	// Shared collaborators
	Emergency *EmergencyWriter `json:"-"`
	LastError *LastError       `json:"-"`

	// Error handling
	ErrorCallback func(operation string, err error) `json:"-"`
}

// DatabaseSink mirrors events into a relational store through a stored
// procedure. It has its own queue and drain, shaped like FileSink's.
//
// Each event is attempted up to MaxAttempts times. Every failed attempt
// with retries left produces a WARN diagnostic, the final failure an ERROR
// one. A missing procedure is never retried.
type DatabaseSink struct {
	transport   Transport
	file        *FileSink
	echo        bool
	capitalize  bool
	callTimeout time.Duration
	maxAttempts int

	emergency     *EmergencyWriter
	lastError     *LastError
	errorCallback func(operation string, err error)

	procedure atomic.Pointer[ProcedureConfig]
	pump      *pump
	closeOnce sync.Once

	delivered atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
}

// NewDatabaseSink validates config and starts the background drain.
func NewDatabaseSink(config DatabaseSinkConfig) (*DatabaseSink, error) {
	if config.Transport == nil {
		return nil, newError(ErrCodeInvalidConfig, "database sink requires a transport")
	}

	s := &DatabaseSink{
		transport:     config.Transport,
		file:          config.File,
		echo:          !config.DisableEcho,
		capitalize:    !config.DisableCapitalize,
		callTimeout:   config.CallTimeout,
		maxAttempts:   config.MaxAttempts,
		emergency:     config.Emergency,
		lastError:     config.LastError,
		errorCallback: config.ErrorCallback,
	}

	if s.callTimeout <= 0 {
		s.callTimeout = DefaultCallTimeout
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.emergency == nil {
		if s.file != nil {
			s.emergency = s.file.emergency
		} else {
			s.emergency = NewEmergencyWriter(EmergencyConfig{})
		}
	}
	if s.lastError == nil {
		if s.file != nil {
			s.lastError = s.file.lastError
		} else {
			s.lastError = &LastError{}
		}
	}

	if err := s.Configure(config.Procedure); err != nil {
		return nil, err
	}

	s.pump = newPump("database", s.reportError)
	s.pump.start(config.FlushInterval, s.beginCycle)
	return s, nil
}

// Configure replaces the procedure configuration. It takes effect on the
// next delivered event. Passing an empty connection string and procedure
// name disables remote delivery.
func (s *DatabaseSink) Configure(config ProcedureConfig) error {
	if config.ProcedureName != "" && !validProcedureName(config.ProcedureName) {
		return newError(ErrCodeInvalidConfig, fmt.Sprintf("invalid procedure name %q", config.ProcedureName))
	}
	c := config.withDefaults()
	s.procedure.Store(&c)
	return nil
}

// ConfigureProcedure is Configure with default parameter sizes.
func (s *DatabaseSink) ConfigureProcedure(moduleName, connectionString, procedureName, levelParam, messageParam, sourceParam string) error {
	return s.Configure(ProcedureConfig{
		ModuleName:       moduleName,
		ConnectionString: connectionString,
		ProcedureName:    procedureName,
		LevelParam:       levelParam,
		MessageParam:     messageParam,
		SourceParam:      sourceParam,
	})
}

// RemoveConnectionInfo disables remote delivery. Echo continues.
func (s *DatabaseSink) RemoveConnectionInfo() {
	current := s.Procedure()
	current.ConnectionString = ""
	current.ProcedureName = ""
	s.procedure.Store(&current)
}

// Procedure returns a copy of the current procedure configuration.
func (s *DatabaseSink) Procedure() ProcedureConfig {
	if p := s.procedure.Load(); p != nil {
		return *p
	}
	return ProcedureConfig{}.withDefaults()
}

// Enqueue appends ev to the queue and returns immediately.
func (s *DatabaseSink) Enqueue(ev Event) {
	s.pump.enqueue(ev)
}

// FlushNow drains the queue on the calling goroutine, skipping if a drain
// is already running.
func (s *DatabaseSink) FlushNow() {
	s.pump.drain(s.beginCycle)
}

// Pending returns the number of queued events.
func (s *DatabaseSink) Pending() int {
	return s.pump.pending()
}

// MostRecentErrorMessage returns the shared most recent error message.
func (s *DatabaseSink) MostRecentErrorMessage() string {
	return s.lastError.Load()
}

// Close stops the background drain and delivers what is still queued.
// The echo target is not closed.
func (s *DatabaseSink) Close() error {
	s.closeOnce.Do(func() {
		s.pump.stop()
		s.FlushNow()
	})
	return nil
}

// DatabaseSinkStats is a point-in-time snapshot of sink counters.
type DatabaseSinkStats struct {
	Pending   int    `json:"pending"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
}

// Stats returns the sink counters.
func (s *DatabaseSink) Stats() DatabaseSinkStats {
	return DatabaseSinkStats{
		Pending:   s.pump.pending(),
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
	}
}

func (s *DatabaseSink) beginCycle() cycle {
	return &dbCycle{sink: s}
}

// reportError invokes the error callback if set
func (s *DatabaseSink) reportError(operation string, err error) {
	if s.errorCallback != nil {
		s.errorCallback(operation, err)
	}
}

// escalate records a delivery diagnostic in the file log, or on the
// emergency writer when there is no file sink.
func (s *DatabaseSink) escalate(level Level, message string, err error) {
	ev := NewEvent(level, message, err)
	if s.file != nil {
		s.file.Enqueue(ev)
		return
	}
	s.emergency.Write(ev)
}

// dbCycle owns the database handle for a single drain.
type dbCycle struct {
	sink   *DatabaseSink
	db     *sql.DB
	conn   string
	opened bool
}

func (c *dbCycle) deliver(ev Event) error {
	s := c.sink

	if s.echo && s.file != nil {
		s.file.Enqueue(ev)
	}
	s.lastError.observe(ev)

	cfg := s.Procedure()
	if !cfg.Enabled() {
		s.skipped.Add(1)
		return nil
	}
	call := cfg.call(ev, s.capitalize)

	for attempt := 1; ; attempt++ {
		err := c.attempt(cfg.ConnectionString, call)
		if err == nil {
			s.delivered.Add(1)
			return nil
		}
		s.reportError("db_call", err)

		if HasCode(err, ErrCodeProcedureMissing) {
			s.failed.Add(1)
			s.escalate(LevelError, fmt.Sprintf("Stored procedure %s does not exist; message not logged to database: %s", cfg.ProcedureName, ev.Message()), err)
			return nil
		}

		remaining := s.maxAttempts - attempt
		if remaining <= 0 {
			s.failed.Add(1)
			s.escalate(LevelError, fmt.Sprintf("Error logging to database after %d attempts: %v", s.maxAttempts, err), err)
			return nil
		}
		s.escalate(LevelWarn, fmt.Sprintf("Error logging to database: %v; %d retries remaining", err, remaining), nil)
	}
}

// attempt performs one bounded call, opening the handle on first use.
func (c *dbCycle) attempt(conn string, call ProcedureCall) error {
	if !c.opened || c.conn != conn {
		c.closeDB()
		db, err := c.sink.transport.Open(conn)
		if err != nil {
			return err
		}
		c.db, c.conn, c.opened = db, conn, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.sink.callTimeout)
	defer cancel()
	return c.sink.transport.Call(ctx, c.db, call)
}

func (c *dbCycle) closeDB() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.sink.reportError("db_close", wrapError(err, ErrCodeConnection, "failed to close database handle"))
		}
	}
	c.db, c.conn, c.opened = nil, "", false
}

func (c *dbCycle) finish() {
	c.closeDB()
}
