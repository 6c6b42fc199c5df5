// Package docstore is a small path-addressed document store. Paths look like
// "orders/PM123" or "users/u1/cart/p9"; values are JSON documents.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("docstore: document not found")

type Entry struct {
	Path string
	Data []byte
}

// UpdateFunc receives the current document and returns the next one.
// Returning nil leaves the document as it is.
type UpdateFunc func(cur []byte) ([]byte, error)

type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Set(ctx context.Context, path string, data []byte) error
	// Create writes only if nothing is stored at path.
	Create(ctx context.Context, path string, data []byte) (bool, error)
	// Update runs fn against the stored document atomically and returns what is stored afterwards.
	Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error)
	Delete(ctx context.Context, path string) error
	// List returns every document whose path starts with prefix, ordered by path.
	List(ctx context.Context, prefix string) ([]Entry, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// Watcher is implemented by stores that push change notifications.
// The channel receives a value after writes under prefix and is closed by stop.
type Watcher interface {
	Watch(ctx context.Context, prefix string) (<-chan struct{}, func(), error)
}

// Path joins segments with '/'. Segments must not contain '/'.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// Base returns the last segment of p.
func Base(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
