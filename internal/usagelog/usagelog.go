// Package usagelog appends one token-usage record per model invocation to a
// configured sink. Logging is best-effort: sink failures are reported
// through slog and never fail the invocation that produced the record.
package usagelog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnvLogPath overrides the default usage log destination.
const EnvLogPath = "LLMPARSE_USAGE_LOG"

// DefaultPath is used when no destination is configured anywhere.
const DefaultPath = "llm_usage.log"

// Record is one usage log line. Append-only; never mutated after write.
type Record struct {
	Timestamp        time.Time `json:"ts"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
}

// Sink receives usage records.
type Sink interface {
	Append(rec Record) error
	Close() error
}

// ResolvePath picks the usage log destination: explicit path, then the
// environment override, then the default.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvLogPath); env != "" {
		return env
	}
	return DefaultPath
}

// FileSink writes one JSON line per record, creating parent directories on
// first open. Writes are serialized so concurrent invocations sharing a
// destination cannot interleave partial lines.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	log  *slog.Logger
}

func NewFileSink(path string, logger *slog.Logger) (*FileSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create usage log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open usage log: %w", err)
	}
	return &FileSink{path: path, f: f, log: logger}, nil
}

func (s *FileSink) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Log appends a record to a sink, swallowing and reporting any failure.
// This is the only entry point invocations use: a broken log destination
// must never fail a call that already consumed tokens.
func Log(sink Sink, rec Record, logger *slog.Logger) {
	if sink == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := sink.Append(rec); err != nil {
		logger.Warn("usage log append failed",
			"error", err,
			"model", rec.Model,
			"total_tokens", rec.TotalTokens,
		)
	}
}
