// Package logging opens the log sink of a run.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Sink is where a run writes its log lines.
type Sink struct {
	Logger *log.Logger
	// Writer is the raw destination, also used for FTP debug output.
	Writer io.Writer
	Path   string
	RunID  string
	file   *os.File
}

// Open returns a sink writing to fallback, or to a daily file
// specdl-YYYY-MM-DD.log under logDir when logDir is set.
func Open(logDir string, fallback io.Writer, now time.Time) (*Sink, error) {
	s := &Sink{Writer: fallback, RunID: uuid.NewString()[:8]}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		s.Path = filepath.Join(logDir, fmt.Sprintf("specdl-%s.log", now.Format("2006-01-02")))
		file, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		s.file = file
		s.Writer = file
	}
	if s.Writer == nil {
		s.Writer = io.Discard
	}

	s.Logger = log.New(s.Writer, "["+s.RunID+"] ", log.LstdFlags)
	if s.Path != "" {
		s.Logger.Printf("Logging to %s", s.Path)
	}
	return s, nil
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
