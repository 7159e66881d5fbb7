// Package kleio provides an asynchronous, multi-sink logging pipeline.
//
// Callers log through per-level facades that never block on I/O. Events are
// queued per sink and drained by a background goroutine into a date-rolled
// text file and, optionally, into a relational database through a stored
// procedure call. When nothing else can take an event it goes to a local
// emergency file.
//
// # Quick Start
//
//	err := kleio.Run(kleio.PipelineConfig{
//		File: kleio.FileSinkConfig{Filename: "logs/app.txt"},
//	}, func(p *kleio.Pipeline) error {
//		log := p.Logger(kleio.LevelInfo)
//		log.Info("start")
//		log.Error("bad input", err)
//		log.Debug("detail") // suppressed by the INFO threshold
//		return nil
//	})
//
// Run flushes and closes the pipeline on every exit path, including a panic
// in the callback. Use NewPipeline and Close directly for long-lived services
// and call FlushPendingMessages before exiting.
//
// # Levels
//
// Severity decreases with the numeric value: FATAL=1, ERROR=2, WARN=3,
// INFO=4, DEBUG=5. LevelNoLogging (0) is reserved and never logs. An event
// passes a threshold T when its level L satisfies L <= T and T is not
// LevelNoLogging (see Allow).
//
// # File Sink
//
// A configured filename "logs/app.txt" produces one file per local date,
// "logs/app_03-09-2025.txt", each line formatted as
//
//	3/9/2025 14:05:09, message, LEVEL
//
// followed by the full error chain when the event carries an error. Once a
// day the directory is swept and files whose date is older than 32 days are
// moved into a subdirectory named after their year.
//
// The queue is unbounded and lock-free for producers. Exactly one goroutine
// drains a sink at a time: the periodic drain (every 500ms by default) and
// FlushNow share a try-once flag, and an attempt that finds a drain already
// running returns immediately instead of waiting.
//
// # Database Sink
//
// The DatabaseSink calls a stored procedure with three parameters: level,
// message and source module. The call syntax is provided by a Transport:
//
//	kleio.MSSQLTransport{}              // native TDS, RPC call with named parameters
//	kleio.NewMySQLTransport()           // CALL proc(?, ?, ?)
//	kleio.NewPostgresTransport()        // CALL proc(level => $1, ...)
//	kleio.SQLTransport{Driver: "odbc"}  // {CALL proc(?, ?, ?)}
//
// Each event is tried up to three times. Failed attempts are reported as WARN
// lines in the file sink and the final failure as an ERROR line; a missing
// procedure is reported at once without retrying. Every event is also echoed
// to the file sink, which remains the durable record.
//
// An empty connection string or procedure name disables remote delivery:
//
//	db := p.Database()
//	db.ConfigureProcedure("reports", conn, "dbo.LogMessage", "@Level", "@Message", "@Source")
//	...
//	db.RemoveConnectionInfo()
//
// # Error Handling
//
// Logging calls never return errors. Internal failures are passed to the
// optional ErrorCallback and printed on the emergency console path. Errors
// returned by constructors carry codes (ErrCodeInvalidConfig,
// ErrCodeResourceInUse, ...) testable with HasCode.
//
// # Resource Claims
//
// ResourceLocks is a reference-counted registry of named claims. FileSink
// claims its file family in ProcessLocks so two sinks in the same process
// cannot write the same files.
package kleio
