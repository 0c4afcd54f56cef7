// Package datalog writes the session's event log and raw sample logs.
package datalog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// ErrInvalidSubject is returned when a subject name cannot be part of a file name.
var ErrInvalidSubject = errors.New("subject name must not contain path separators")

// fileStamp is the timestamp layout of log file names.
const fileStamp = "01 02 2006 15 04 05"

// LogName returns the event log file name for subject at t.
func LogName(subject string, t time.Time) string {
	return "adapt_log_" + subject + "_" + t.Format(fileStamp) + ".txt"
}

// DataName returns the sample log file name for subject at t.
func DataName(subject string, t time.Time) string {
	return "adapt_data_" + subject + "_" + t.Format(fileStamp) + ".csv"
}

// Files is the text event log plus the CSV sample log of one session.
// It is safe for concurrent use.
type Files struct {
	mu       sync.Mutex
	logFile  *os.File
	dataFile *os.File
	log      *bufio.Writer
	data     *bufio.Writer
	logger   *zap.Logger
	closed   bool
}

// Open creates both files under dir, which is created if missing.
func Open(dir, subject string, now time.Time, logger *zap.Logger) (*Files, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.ContainsAny(subject, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output folder: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(dir, LogName(subject, now)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating event log: %w", err)
	}
	dataFile, err := os.OpenFile(filepath.Join(dir, DataName(subject, now)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("creating sample log: %w", err)
	}

	return &Files{
		logFile:  logFile,
		dataFile: dataFile,
		log:      bufio.NewWriter(logFile),
		data:     bufio.NewWriter(dataFile),
		logger:   logger.Named("datalog"),
	}, nil
}

// LogPath returns the event log path.
func (f *Files) LogPath() string { return f.logFile.Name() }

// DataPath returns the sample log path.
func (f *Files) DataPath() string { return f.dataFile.Name() }

// Event appends a line to the event log. Embedded newlines are written
// escaped so one event stays on one line.
func (f *Files) Event(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if _, err := f.log.WriteString(strings.ReplaceAll(line, "\n", `\n`) + "\n"); err != nil {
		f.logger.Warn("writing event failed", zap.Error(err))
	}
}

// TrialSamples appends a scored trial's samples tagged with the item index.
func (f *Files) TrialSamples(entries []sensor.Entry, sourceIndex int) error {
	suffix := ", " + strconv.Itoa(sourceIndex)
	return f.writeEntries(entries, suffix)
}

// TrainingSamples appends a training trial's samples.
func (f *Files) TrainingSamples(entries []sensor.Entry) error {
	return f.writeEntries(entries, "")
}

func (f *Files) writeEntries(entries []sensor.Entry, suffix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}
	for _, e := range entries {
		if _, err := f.data.WriteString(e.CSV() + suffix + "\n"); err != nil {
			return fmt.Errorf("writing samples: %w", err)
		}
	}
	return nil
}

// Flush writes buffered lines to disk.
func (f *Files) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	return errors.Join(f.log.Flush(), f.data.Flush())
}

// Close flushes and closes both files.
func (f *Files) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return errors.Join(
		f.log.Flush(),
		f.data.Flush(),
		f.logFile.Close(),
		f.dataFile.Close(),
	)
}
