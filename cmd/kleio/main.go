// main.go: Pipe standard input into a kleio pipeline
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Command kleio reads lines from standard input and logs each one through a
// kleio pipeline, optionally mirroring them to a stored procedure.
//
//	some-job 2>&1 | kleio --file logs/job.txt --level warn \
//	    --db-driver mssql --db-conn "sqlserver://..." --db-proc dbo.LogMessage
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"

	"github.com/agilira/kleio"
)

type options struct {
	file      string
	level     string
	threshold string
	flush     time.Duration
	archive   string
	driver    string
	conn      string
	proc      string
	module    string
	levelArg  string
	msgArg    string
	srcArg    string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kleio: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "kleio: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flashflags.New("kleio")
	file := fs.String("file", "kleio.txt", "log file; the date is appended to the base name")
	level := fs.String("level", "info", "level assigned to every input line")
	threshold := fs.String("threshold", "debug", "most verbose level that is written")
	flush := fs.Duration("flush", kleio.DefaultFlushInterval, "background drain period")
	archive := fs.String("archive-after", "32d", "age after which log files are moved into a year folder")
	driver := fs.String("db-driver", "", "database transport: mssql, mysql, postgres or a registered ODBC driver name")
	conn := fs.String("db-conn", "", "database connection string")
	proc := fs.String("db-proc", "", "stored procedure receiving each line")
	module := fs.String("module", "kleio", "value of the source parameter")
	levelArg := fs.String("db-level-param", "@Level", "procedure parameter for the level")
	msgArg := fs.String("db-message-param", "@Message", "procedure parameter for the message")
	srcArg := fs.String("db-source-param", "@Source", "procedure parameter for the module name")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return options{
		file:      *file,
		level:     *level,
		threshold: *threshold,
		flush:     *flush,
		archive:   *archive,
		driver:    *driver,
		conn:      *conn,
		proc:      *proc,
		module:    *module,
		levelArg:  *levelArg,
		msgArg:    *msgArg,
		srcArg:    *srcArg,
	}, nil
}

// transportFor maps a driver flag value to a transport.
func transportFor(driver string) kleio.Transport {
	switch strings.ToLower(driver) {
	case "":
		return nil
	case "mssql", "sqlserver":
		return kleio.MSSQLTransport{}
	case "mysql":
		return kleio.NewMySQLTransport()
	case "postgres", "postgresql", "pq":
		return kleio.NewPostgresTransport()
	default:
		return kleio.SQLTransport{Driver: driver, Dialect: kleio.DialectODBC}
	}
}

func run(opts options, in io.Reader) error {
	level, err := kleio.ParseLevel(opts.level)
	if err != nil {
		return err
	}
	if level == kleio.LevelNoLogging {
		return fmt.Errorf("--level must name a loggable level, got %q", opts.level)
	}
	threshold, err := kleio.ParseLevel(opts.threshold)
	if err != nil {
		return err
	}

	config := kleio.PipelineConfig{
		File: kleio.FileSinkConfig{
			Filename:        opts.file,
			FlushInterval:   opts.flush,
			ArchiveAfterStr: opts.archive,
		},
	}
	if t := transportFor(opts.driver); t != nil {
		config.Database = &kleio.DatabaseSinkConfig{
			Transport:     t,
			FlushInterval: opts.flush,
			Procedure: kleio.ProcedureConfig{
				ModuleName:       opts.module,
				ConnectionString: opts.conn,
				ProcedureName:    opts.proc,
				LevelParam:       opts.levelArg,
				MessageParam:     opts.msgArg,
				SourceParam:      opts.srcArg,
			},
		}
	}

	return kleio.Run(config, func(p *kleio.Pipeline) error {
		logger := p.DatabaseLogger(threshold)
		if !logger.Enabled(level) {
			_, err := io.Copy(io.Discard, in)
			return err
		}

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			logger.Log(level, line, nil)
		}
		p.FlushPendingMessages()
		return scanner.Err()
	})
}
