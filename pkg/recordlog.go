// Package pkg is a package that provides utilities for shmorph.
package pkg

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// RecordLog is a generic append-only log of items of type T, persisted as
// one JSON document per line. Appends are serialized, so a single log can
// be shared by concurrent writers.
type RecordLog[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	AppendBatch(items []T) error
	Range(f func(index uint64, item T) error) error
	Close() error
}

type recordLogImpl[T any] struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	length  uint64
}

// Append implements RecordLog.
func (l *recordLogImpl[T]) Append(item T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(item); err != nil {
		slog.Error("failed to encode record", "path", l.path, "index", l.length, "error", err)
		return fmt.Errorf("failed to encode record: %w", err)
	}

	l.length++
	slog.Debug("appended record", "path", l.path, "index", l.length-1)

	return nil
}

// AppendBatch implements RecordLog.
func (l *recordLogImpl[T]) AppendBatch(items []T) error {
	for _, item := range items {
		if err := l.Append(item); err != nil {
			return err
		}
	}

	return nil
}

// Path implements RecordLog.
func (l *recordLogImpl[T]) Path() string {
	return l.path
}

// Len implements RecordLog.
func (l *recordLogImpl[T]) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.length
}

// Range implements RecordLog. It reads the log back from disk, so records
// appended by earlier runs are visible too.
func (l *recordLogImpl[T]) Range(fn func(index uint64, item T) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		slog.Error("failed to open log for range", "path", l.path, "error", err)
		return fmt.Errorf("failed to open log: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close log", "path", l.path, "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var index uint64

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var item T

		if err := json.Unmarshal(line, &item); err != nil {
			slog.Error("failed to decode record during range", "path", l.path, "index", index, "error", err)
			return fmt.Errorf("failed to decode record at index %d: %w", index, err)
		}

		if err := fn(index, item); err != nil {
			slog.Warn("range callback error", "path", l.path, "index", index, "error", err)
			return err
		}

		index++
	}

	if err := scanner.Err(); err != nil {
		slog.Error("failed to scan log", "path", l.path, "error", err)
		return fmt.Errorf("failed to scan log: %w", err)
	}

	slog.Debug("range completed", "path", l.path, "count", index)

	return nil
}

// Close implements RecordLog.
func (l *recordLogImpl[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			slog.Error("failed to close log", "path", l.path, "error", err)
			return err
		}

		slog.Debug("closed recordlog", "path", l.path, "length", l.length)
	}

	return nil
}

// NewRecordLog opens (or creates) an append-only JSONL log at path. Existing
// records are preserved and counted so Len reflects the whole file.
func NewRecordLog[T any](path string) (RecordLog[T], error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		slog.Error("failed to open log file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	length, err := countLines(path)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	slog.Debug("opened recordlog", "path", path, "length", length)

	return &recordLogImpl[T]{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
		length:  length,
	}, nil
}

func countLines(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close log", "path", path, "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var count uint64

	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan log file: %w", err)
	}

	return count, nil
}
