// transport.go: Stored-procedure transport contract and error classification
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
)

// Transport opens connections and executes stored-procedure calls for a
// DatabaseSink. Implementations vary only in wire protocol and call syntax;
// retries, echo and escalation live in the sink.
type Transport interface {
	// Open returns a handle for connectionString. The sink closes it at the
	// end of the drain cycle.
	Open(connectionString string) (*sql.DB, error)

	// Call executes the procedure. Implementations should return an error
	// carrying ErrCodeProcedureMissing when the procedure does not exist.
	Call(ctx context.Context, db *sql.DB, call ProcedureCall) error
}

// ProcedureCall is one stored-procedure invocation.
type ProcedureCall struct {
	Procedure string
	Params    []ProcedureParam
}

// ProcedureParam is a named string argument with a maximum length.
type ProcedureParam struct {
	Name  string
	Value string
	Size  int // in characters; 0 means unbounded
}

// BareName returns Name without a leading "@", ":" or "$" marker.
func (p ProcedureParam) BareName() string {
	return strings.TrimLeft(p.Name, "@:$")
}

// Truncated returns Value cut to Size characters.
func (p ProcedureParam) Truncated() string {
	if p.Size <= 0 || utf8.RuneCountInString(p.Value) <= p.Size {
		return p.Value
	}
	runes := []rune(p.Value)
	return string(runes[:p.Size])
}

// validProcedureName accepts plain and schema-qualified identifiers with the
// usual quoting characters. Procedure names end up in the statement text.
func validProcedureName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_.$#[]\"`", r):
		default:
			return false
		}
	}
	return true
}

// Server error numbers meaning "this procedure does not exist".
const (
	mssqlProcedureNotFound    = 2812    // Could not find stored procedure
	mysqlProcedureNotFound    = 1305    // ER_SP_DOES_NOT_EXIST
	postgresUndefinedFunction = "42883" // undefined_function
)

// procedureMissing reports whether err says the called procedure is absent.
func procedureMissing(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) && msErr.Number == mssqlProcedureNotFound {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlProcedureNotFound {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == postgresUndefinedFunction {
		return true
	}

	// ODBC and other drivers only give us text.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find stored procedure") ||
		(strings.Contains(msg, "procedure") && strings.Contains(msg, "does not exist"))
}

// classifyCallError attaches the matching error code to a driver error.
func classifyCallError(err error, procedure string) error {
	if err == nil {
		return nil
	}
	if procedureMissing(err) {
		return wrapError(err, ErrCodeProcedureMissing, fmt.Sprintf("stored procedure %s does not exist", procedure))
	}
	return wrapError(err, ErrCodeProcedureCall, fmt.Sprintf("call to stored procedure %s failed", procedure))
}
