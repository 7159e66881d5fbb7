// config.go: Defaults and configuration parsing utilities
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by the constructors when a config field is left zero.
const (
	DefaultFlushInterval        = 500 * time.Millisecond
	DefaultArchiveAfter         = 32 * 24 * time.Hour
	DefaultArchiveSweepInterval = 24 * time.Hour
	DefaultCallTimeout          = 15 * time.Second
	DefaultMaxAttempts          = 3
	DefaultRetryCount           = 3
	DefaultRetryDelay           = 10 * time.Millisecond
	DefaultEmergencyFilename    = "FileLoggerErrors.txt"

	DefaultLevelParamSize   = 128
	DefaultMessageParamSize = 4000
	DefaultSourceParamSize  = 128
)

// ParseDuration converts duration strings like "32d", "24h" to time.Duration
// Supports Go durations plus d (day), w (week) and y (year) suffixes
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	s = strings.ToLower(strings.TrimSpace(s))

	var multiplier time.Duration
	var numStr string

	switch {
	case strings.HasSuffix(s, "d"):
		multiplier = 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "w"):
		multiplier = 7 * 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "y"):
		multiplier = 365 * 24 * time.Hour
		numStr = s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number in %q: %v", s, err)
	}

	return time.Duration(val) * multiplier, nil
}

// SanitizeFilename removes or replaces invalid characters for cross-platform compatibility
func SanitizeFilename(filename string) string {
	if runtime.GOOS == "windows" {
		// Windows invalid characters: < > : " | ? * and control characters
		result := filename
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			result = strings.ReplaceAll(result, char, "_")
		}

		var sanitized strings.Builder
		for _, r := range result {
			if r >= 32 {
				sanitized.WriteRune(r)
			} else {
				sanitized.WriteRune('_')
			}
		}
		return sanitized.String()
	}

	return strings.ReplaceAll(filename, "\x00", "_")
}

// ValidatePathLength checks if the path length is within OS limits
func ValidatePathLength(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %v", err)
	}

	limit := 4096
	if runtime.GOOS == "windows" {
		limit = 260
	}
	if len(absPath) > limit {
		return fmt.Errorf("path too long: %d characters (limit: %d)", len(absPath), limit)
	}
	return nil
}

// GetDefaultFileMode returns the default permissions for new log files
func GetDefaultFileMode() os.FileMode {
	return 0644
}

// RetryFileOperation executes a file operation with retry logic.
// Antivirus scanners, indexers and network shares cause transient failures
// that succeed a few milliseconds later.
func RetryFileOperation(operation func() error, retryCount int, retryDelay time.Duration) error {
	if retryCount <= 0 {
		retryCount = DefaultRetryCount
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	var lastErr error
	for i := 0; i < retryCount; i++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		// On the last attempt, don't wait - fail fast
		if i < retryCount-1 {
			time.Sleep(retryDelay)
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", retryCount, lastErr)
}

// resolveDuration returns str parsed when set, else d, else def.
func resolveDuration(d time.Duration, str string, def time.Duration) (time.Duration, error) {
	if d > 0 && str != "" {
		return 0, newError(ErrCodeInvalidConfig, "cannot specify both a duration and its string form")
	}
	if str != "" {
		parsed, err := ParseDuration(str)
		if err != nil {
			return 0, wrapError(err, ErrCodeInvalidConfig, "invalid duration string")
		}
		return parsed, nil
	}
	if d > 0 {
		return d, nil
	}
	return def, nil
}
