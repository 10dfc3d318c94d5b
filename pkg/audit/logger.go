package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/panflow-net/panflow/pkg/util"
)

// Filter narrows a Query to the criteria the audit command exposes.
// Zero fields match everything.
type Filter struct {
	Config      string
	User        string
	Kind        string
	Since       time.Time
	FailureOnly bool
	// Limit caps the result to the most recent matches.
	Limit int
}

func (f Filter) matches(e *Event) bool {
	if f.Config != "" && e.Config != f.Config {
		return false
	}
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.FailureOnly && e.Success {
		return false
	}
	return true
}

// RotationConfig bounds the journal file.
type RotationConfig struct {
	MaxSize    int64 // bytes before the live file is rotated aside
	MaxBackups int   // rotated files to keep
}

// FileLogger appends events to a JSON-lines journal with size-based
// rotation. It is not safe for concurrent use; the CLI writes events
// from a single goroutine.
type FileLogger struct {
	path     string
	file     *os.File
	enc      *json.Encoder
	rotation RotationConfig
}

// NewFileLogger opens the journal at path, creating parent directories
// as needed.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	file, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &FileLogger{
		path:     path,
		file:     file,
		enc:      json.NewEncoder(file),
		rotation: rotation,
	}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Log appends one event, rotating first when the live file has reached
// its size bound.
func (l *FileLogger) Log(event *Event) error {
	if l.rotation.MaxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.rotation.MaxSize {
			if err := l.rotate(); err != nil {
				return fmt.Errorf("rotating audit log: %w", err)
			}
		}
	}
	return l.enc.Encode(event)
}

// Query returns the journaled events matching filter, oldest first.
// Malformed lines are skipped with a warning. A missing journal is an
// empty result, not an error.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []*Event
	sc := bufio.NewScanner(file)
	line := 0
	for sc.Scan() {
		line++
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			util.Warnf("audit: skipping malformed log entry at line %d: %v", line, err)
			continue
		}
		if filter.matches(&e) {
			events = append(events, &e)
		}
	}
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, sc.Err()
}

// Close closes the journal file.
func (l *FileLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// rotate moves the live file aside under a timestamp suffix and starts
// a fresh one.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	rotated := l.path + "." + time.Now().Format("20060102-150405")
	if err := os.Rename(l.path, rotated); err != nil {
		return err
	}
	file, err := openAppend(l.path)
	if err != nil {
		return err
	}
	l.file = file
	l.enc = json.NewEncoder(file)
	if l.rotation.MaxBackups > 0 {
		l.pruneBackups()
	}
	return nil
}

// pruneBackups deletes the oldest rotated files beyond MaxBackups. The
// timestamp suffixes sort chronologically.
func (l *FileLogger) pruneBackups() {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil || len(matches) <= l.rotation.MaxBackups {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-l.rotation.MaxBackups] {
		os.Remove(old)
	}
}

// defaultLogger is the journal the CLI wires at startup. A nil journal
// makes Log and Query no-ops, so library use stays silent.
var defaultLogger *FileLogger

// SetDefaultLogger installs the journal used by Log and Query.
func SetDefaultLogger(l *FileLogger) { defaultLogger = l }

// Log appends an event to the default journal.
func Log(event *Event) error {
	if defaultLogger == nil {
		return nil
	}
	return defaultLogger.Log(event)
}

// Query reads events from the default journal.
func Query(filter Filter) ([]*Event, error) {
	if defaultLogger == nil {
		return nil, nil
	}
	return defaultLogger.Query(filter)
}
