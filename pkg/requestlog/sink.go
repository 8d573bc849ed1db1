package requestlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends entries to a file as JSON lines.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
	log  *slog.Logger
}

// OpenFile opens (or creates) path for appending.
func OpenFile(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open request log: %w", err)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f), path: path}, nil
}

// SetLogger sets the logger used to report write failures.
func (s *FileSink) SetLogger(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
}

// Path returns the file path.
func (s *FileSink) Path() string {
	return s.path
}

// Log writes entry as one JSON line.
func (s *FileSink) Log(entry *Entry) {
	if entry == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return
	}
	if err := s.enc.Encode(entry); err != nil && s.log != nil {
		s.log.Error("failed to write request log entry", "path", s.path, "error", err)
	}
}

// Close closes the file. Safe to call multiple times.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// SlogSink writes a one-line summary of each entry to an operational logger:
//
//	GET /users/42 200 3ms (shop/users/get-user/ok)
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a SlogSink.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

// Log implements Logger.
func (s *SlogSink) Log(entry *Entry) {
	if entry == nil || s.log == nil {
		return
	}
	s.log.Info(Summary(entry),
		"status", entry.StatusCode,
		"matched", entry.Matched,
		"durationMs", entry.DurationMs,
	)
}

// Summary renders the one-line description used by SlogSink.
func Summary(e *Entry) string {
	match := "unmatched"
	if e.Matched {
		match = fmt.Sprintf("%s/%s/%s/%s", e.Project, e.Service, e.APIName, e.ProviderName)
	}
	return fmt.Sprintf("%s %s %d %dms (%s)", e.Method, e.URL, e.StatusCode, e.DurationMs, match)
}
