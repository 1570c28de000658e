package main

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/swarmcp/swarmcp/internal/op"
)

// manifestWriter records COPY operations as length-prefixed encoded
// items. Records arrive from every queue worker, so writes are
// serialized under a mutex.
type manifestWriter struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func newManifestWriter(path string) (*manifestWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create manifest: %w", err)
	}
	return &manifestWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Record appends one operation to the manifest.
func (m *manifestWriter) Record(o op.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("manifest: already closed")
	}
	return op.WriteOperation(m.w, o)
}

// Close flushes and closes the manifest. Safe to call more than once.
func (m *manifestWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.w.Flush(); err != nil {
		m.f.Close()
		return fmt.Errorf("flush manifest: %w", err)
	}
	if err := m.f.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	return nil
}
