// Package memory contains an in-memory archiver for tests.
package memory

import (
	"context"
	"io"
	"sync"
)

// Archiver keeps written blobs in a map for inspection.
type Archiver struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New returns an empty Archiver.
func New() *Archiver {
	return &Archiver{blobs: make(map[string][]byte)}
}

// Put records the blob and returns a mem:// URI.
func (a *Archiver) Put(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[path] = data
	return "mem://" + path, nil
}

// Blob returns a stored blob and whether it exists.
func (a *Archiver) Blob(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.blobs[path]
	return data, ok
}

// Len returns the number of stored blobs.
func (a *Archiver) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blobs)
}
