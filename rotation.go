// rotation.go: Date-based file naming, lazy open and age-based archival
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dateLayout is the MM-dd-yyyy stamp embedded in every log file name.
const dateLayout = "01-02-2006"

// defaultExt is used when the configured filename has no extension.
const defaultExt = ".txt"

// rollingName splits a configured filename into the pieces of the
// "<base>_<MM-dd-yyyy><ext>" pattern.
type rollingName struct {
	dir  string
	base string
	ext  string
}

// parseRollingName validates and sanitizes filename. A filename without a
// directory component resolves to the working directory.
func parseRollingName(filename string) (rollingName, error) {
	if filename == "" {
		return rollingName{}, newError(ErrCodeInvalidConfig, "filename cannot be empty")
	}
	if err := ValidatePathLength(filename); err != nil {
		return rollingName{}, wrapError(err, ErrCodeInvalidConfig, "invalid log file path")
	}

	dir := filepath.Dir(filename)
	if dir == "." {
		wd, err := os.Getwd()
		if err != nil {
			return rollingName{}, wrapError(err, ErrCodeInvalidConfig, "cannot resolve working directory")
		}
		dir = wd
	}

	name := SanitizeFilename(filepath.Base(filename))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = defaultExt
	}
	if base == "" {
		return rollingName{}, newError(ErrCodeInvalidConfig, fmt.Sprintf("filename %q has no base name", filename))
	}
	return rollingName{dir: dir, base: base, ext: ext}, nil
}

// pathFor returns the log file path for the local date of t.
func (n rollingName) pathFor(date string) string {
	return filepath.Join(n.dir, n.base+"_"+date+n.ext)
}

// key identifies the file family for resource locking.
func (n rollingName) key() string {
	return "file:" + filepath.Join(n.dir, n.base+n.ext)
}

// dateOf parses the date stamp out of a file name belonging to this family.
func (n rollingName) dateOf(name string) (time.Time, bool) {
	prefix := n.base + "_"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, n.ext) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), n.ext)
	if len(stamp) != len(dateLayout) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(dateLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// localDate returns the date stamp of the event's local calendar day.
func localDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

// createLogDirectory creates the log directory if needed
func (s *FileSink) createLogDirectory() error {
	err := RetryFileOperation(func() error {
		return os.MkdirAll(s.name.dir, 0750)
	}, s.retryCount, s.retryDelay)

	if err != nil {
		s.reportError("directory_creation", fmt.Errorf("failed to create log directory %q: %v (check permissions and disk space)", s.name.dir, err))
		return wrapError(err, ErrCodeFileOpen, "failed to create log directory")
	}
	return nil
}

// openLogFile opens or creates the file for date with retry
func (s *FileSink) openLogFile(date string) (*os.File, error) {
	if _, err := os.Stat(s.name.dir); err != nil {
		if err := s.createLogDirectory(); err != nil {
			return nil, err
		}
	}

	path := s.name.pathFor(date)
	var file *os.File
	err := RetryFileOperation(func() error {
		var err error
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, s.fileMode) // #nosec G304 -- path built from a sanitized base name
		return err
	}, s.retryCount, s.retryDelay)

	if err != nil {
		s.reportError("file_open", fmt.Errorf("failed to open log file %q: %v (check permissions and disk space)", path, err))
		return nil, wrapError(err, ErrCodeFileOpen, "failed to open log file")
	}
	s.currentPath.Store(&path)
	return file, nil
}

// archiveDue reports whether the sweep interval elapsed since the last
// sweep. lastSweep carries a monotonic reading, so wall-clock corrections
// do not move it.
func (s *FileSink) archiveDue(now time.Time) bool {
	return s.lastSweep.IsZero() || now.Sub(s.lastSweep) >= s.sweepInterval
}

// archiveOldFiles moves every file of this family whose embedded date is
// older than archiveAfter into a subdirectory named after its year.
// Failures are reported per file; the sweep always runs to completion.
func (s *FileSink) archiveOldFiles(now time.Time) int {
	entries, err := os.ReadDir(s.name.dir)
	if err != nil {
		s.reportError("archive", wrapError(err, ErrCodeArchive, "failed to list log directory"))
		return 0
	}

	cutoff := now.Add(-s.archiveAfter)
	moved := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := s.name.dateOf(entry.Name())
		if !ok || !date.Before(cutoff) {
			continue
		}

		yearDir := filepath.Join(s.name.dir, fmt.Sprintf("%04d", date.Year()))
		if err := os.MkdirAll(yearDir, 0750); err != nil {
			s.reportError("archive", wrapError(err, ErrCodeArchive, fmt.Sprintf("failed to create archive directory %q", yearDir)))
			continue
		}

		src := filepath.Join(s.name.dir, entry.Name())
		dst := filepath.Join(yearDir, entry.Name())
		err := RetryFileOperation(func() error {
			return os.Rename(src, dst)
		}, s.retryCount, s.retryDelay)
		if err != nil {
			s.reportError("archive", wrapError(err, ErrCodeArchive, fmt.Sprintf("failed to archive %q", src)))
			continue
		}
		moved++
	}
	return moved
}
