// errors.go: Error codes shared by sinks and transports
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	goerrors "github.com/agilira/go-errors"
)

// Error codes attached to every error produced by this package.
// Use HasCode to test for a specific condition.
const (
	ErrCodeInvalidConfig    goerrors.ErrorCode = "KLEIO_INVALID_CONFIG"
	ErrCodeUnknownLevel     goerrors.ErrorCode = "KLEIO_UNKNOWN_LEVEL"
	ErrCodeResourceInUse    goerrors.ErrorCode = "KLEIO_RESOURCE_IN_USE"
	ErrCodeFileOpen         goerrors.ErrorCode = "KLEIO_FILE_OPEN"
	ErrCodeFileWrite        goerrors.ErrorCode = "KLEIO_FILE_WRITE"
	ErrCodeArchive          goerrors.ErrorCode = "KLEIO_ARCHIVE"
	ErrCodeDequeue          goerrors.ErrorCode = "KLEIO_DEQUEUE"
	ErrCodeEmergencyWrite   goerrors.ErrorCode = "KLEIO_EMERGENCY_WRITE"
	ErrCodeConnection       goerrors.ErrorCode = "KLEIO_DB_CONNECTION"
	ErrCodeProcedureCall    goerrors.ErrorCode = "KLEIO_PROCEDURE_CALL"
	ErrCodeProcedureMissing goerrors.ErrorCode = "KLEIO_PROCEDURE_MISSING"
)

// HasCode reports whether err, or any error it wraps, carries code.
func HasCode(err error, code goerrors.ErrorCode) bool {
	return goerrors.HasCode(err, code)
}

func newError(code goerrors.ErrorCode, message string) error {
	return goerrors.New(code, message)
}

func wrapError(err error, code goerrors.ErrorCode, message string) error {
	return goerrors.Wrap(err, code, message)
}
