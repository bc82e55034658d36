package usagelog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileSinkAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.log")
	sink, err := NewFileSink(path, nil)
	if err != nil {
		t.Fatalf("NewFileSink() error: %v", err)
	}
	defer sink.Close()

	for i := 0; i < 3; i++ {
		rec := Record{
			Timestamp:        time.Now(),
			Model:            "gpt-4o",
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		}
		if err := sink.Append(rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		if rec.Model != "gpt-4o" || rec.TotalTokens != 15 {
			t.Errorf("line %d: unexpected record %+v", lines, rec)
		}
		lines++
	}
	if lines != 3 {
		t.Fatalf("got %d lines, want 3", lines)
	}
}

func TestFileSinkCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dirs", "usage.log")
	sink, err := NewFileSink(path, nil)
	if err != nil {
		t.Fatalf("NewFileSink() error: %v", err)
	}
	defer sink.Close()

	if err := sink.Append(Record{Timestamp: time.Now(), Model: "m"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestFileSinkConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.log")
	sink, err := NewFileSink(path, nil)
	if err != nil {
		t.Fatalf("NewFileSink() error: %v", err)
	}
	defer sink.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Append(Record{Timestamp: time.Now(), Model: "m", TotalTokens: 1})
		}()
	}
	wg.Wait()

	f, _ := os.Open(path)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("corrupted line after concurrent writes: %v", err)
		}
		lines++
	}
	if lines != 50 {
		t.Fatalf("got %d lines, want 50", lines)
	}
}

type failingSink struct{}

func (failingSink) Append(Record) error { return errors.New("sink broken") }
func (failingSink) Close() error        { return nil }

func TestLogSwallowsSinkErrors(t *testing.T) {
	// Must not panic or propagate.
	Log(failingSink{}, Record{Model: "m"}, nil)
	Log(nil, Record{Model: "m"}, nil)
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/tmp/x.log"); got != "/tmp/x.log" {
		t.Errorf("explicit path: got %q", got)
	}
	t.Setenv(EnvLogPath, "/tmp/env.log")
	if got := ResolvePath(""); got != "/tmp/env.log" {
		t.Errorf("env path: got %q", got)
	}
	t.Setenv(EnvLogPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("default path: got %q", got)
	}
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	sink, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink() error: %v", err)
	}
	defer sink.Close()

	rec := Record{
		Timestamp:        time.Now(),
		Model:            "claude-sonnet-4-5",
		PromptTokens:     100,
		CompletionTokens: 20,
		TotalTokens:      120,
	}
	if err := sink.Append(rec); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	var count int
	if err := sink.db.QueryRow("SELECT COUNT(*) FROM usage_records").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	var model string
	var total int
	if err := sink.db.QueryRow("SELECT model, total_tokens FROM usage_records").Scan(&model, &total); err != nil {
		t.Fatalf("select query: %v", err)
	}
	if model != "claude-sonnet-4-5" || total != 120 {
		t.Errorf("stored record = %s/%d", model, total)
	}
}
