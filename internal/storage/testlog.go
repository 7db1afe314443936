package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// TestRecordLog is the per-site list of doctypes whose test records exist.
// It is read once and rewritten on every addition.
type TestRecordLog struct {
	path string

	mu     sync.Mutex
	loaded bool
	items  []string
}

// NewTestRecordLog creates a log backed by path
func NewTestRecordLog(path string) *TestRecordLog {
	return &TestRecordLog{path: path}
}

// Path returns the log file
func (l *TestRecordLog) Path() string {
	return l.path
}

// Get returns the logged doctypes in insertion order
func (l *TestRecordLog) Get() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(); err != nil {
		return nil, err
	}
	return append([]string(nil), l.items...), nil
}

// Contains reports whether doctype is logged
func (l *TestRecordLog) Contains(doctype string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(); err != nil {
		return false, err
	}
	return lo.Contains(l.items, doctype), nil
}

// Add logs doctype; adding a logged doctype is a no-op
func (l *TestRecordLog) Add(doctype string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(); err != nil {
		return err
	}
	if doctype == "" || lo.Contains(l.items, doctype) {
		return nil
	}
	l.items = append(l.items, doctype)
	return l.write()
}

// Clear empties the log
func (l *TestRecordLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
	l.loaded = true
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear test record log: %w", err)
	}
	return nil
}

func (l *TestRecordLog) load() error {
	if l.loaded {
		return nil
	}
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read test record log: %w", err)
	default:
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				l.items = append(l.items, line)
			}
		}
	}
	l.loaded = true
	return nil
}

func (l *TestRecordLog) write() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create site dir: %w", err)
	}
	if err := os.WriteFile(l.path, []byte(strings.Join(l.items, "\n")), 0644); err != nil {
		return fmt.Errorf("write test record log: %w", err)
	}
	return nil
}
