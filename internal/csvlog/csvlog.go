// Package csvlog appends accepted readings to a per-session CSV file.
//
// Each record is "<timestamp_ms>,<value>" with no header row. The file is
// opened for every record and closed again before returning, so nothing is
// held open between loop iterations and a crash loses at most the record
// being written.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/banshee-data/multimeter/internal/fsutil"
)

// ErrPersistence wraps every failure to append a record.
var ErrPersistence = errors.New("log append failed")

// fileTimeLayout names log files after the session start, to the second.
const fileTimeLayout = "20060102_150405"

// FileName returns the log file name for a session started at start on the
// given channel, for example "multimeter_20250314_093000_ch1.csv".
func FileName(start time.Time, channel int) string {
	return fmt.Sprintf("multimeter_%s_ch%d.csv", start.Format(fileTimeLayout), channel)
}

// ShouldLog reports whether a parsed value is written to the log. A zero
// reading means "no measurement" and is skipped.
func ShouldLog(value float32) bool {
	return value != 0
}

// FormatValue renders value in the shortest decimal form that round-trips
// through float32.
func FormatValue(value float32) string {
	return strconv.FormatFloat(float64(value), 'f', -1, 32)
}

// Log appends one record to path, creating the file if needed.
func Log(fs fsutil.FileSystem, path string, timestampMs int64, value float32) (err error) {
	f, err := fs.OpenAppend(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrPersistence, path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	w.UseCRLF = runtime.GOOS == "windows"
	if err := w.Write([]string{strconv.FormatInt(timestampMs, 10), FormatValue(value)}); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush %s: %w", ErrPersistence, path, err)
	}
	return nil
}

// Appender is bound to one session's log file.
type Appender struct {
	fs   fsutil.FileSystem
	Dir  string
	Path string
}

// NewAppender creates dir if needed and returns an Appender writing to the
// file named by FileName(start, channel) inside it.
func NewAppender(fs fsutil.FileSystem, dir string, start time.Time, channel int) (*Appender, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return &Appender{
		fs:   fs,
		Dir:  dir,
		Path: filepath.Join(dir, FileName(start, channel)),
	}, nil
}

// Append writes one record at time t.
func (a *Appender) Append(t time.Time, value float32) error {
	return Log(a.fs, a.Path, t.UnixMilli(), value)
}
