package storage

import (
	"context"
	"time"
)

// ObjectStore keeps uploaded documents. The rental core only persists the
// returned keys, never the bytes.
type ObjectStore interface {
	// Store uploads data under logicalPath and returns the object key.
	Store(ctx context.Context, data []byte, contentType, logicalPath string) (string, error)
	// Resolve returns a temporary URL for key.
	Resolve(ctx context.Context, key string) (string, error)
	// Delete removes key; used to clean up after a failed transition.
	Delete(ctx context.Context, key string) error
}

// Document is an upload received from a caller.
type Document struct {
	Data        []byte
	ContentType string
	Filename    string
}

// withTimeout bounds a storage call; zero means no deadline.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
