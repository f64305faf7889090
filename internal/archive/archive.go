// Package archive defines the blob destination for raw provider reports.
// Each ingested day's four dimension reports are kept verbatim so a bad
// normalization or summary bug can be replayed without re-spending provider
// quota.
package archive

import (
	"context"
	"io"
)

// Archiver writes one raw report blob and returns its URI.
type Archiver interface {
	Put(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// NoOp discards blobs. Used when archiving is disabled.
type NoOp struct{}

// Put for NoOp drains the reader and reports a sentinel URI.
func (NoOp) Put(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return "noop://" + path, nil
}
