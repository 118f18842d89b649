// Package blobstore persists binary payloads, addressed by opaque storage keys.
// Payloads travel as base64 data URLs so callers never handle raw bytes.
package blobstore

import (
	"context"
	"errors"
)

// Kind namespaces the keys of a store.
type Kind string

const (
	// KindResponse is used for media produced by a model response.
	KindResponse Kind = "response"
	// KindReference is used for media supplied as input to a request.
	KindReference Kind = "reference"
)

// ErrNotFound is returned by Load for unknown keys.
var ErrNotFound = errors.New("blob not found")

// Store saves data URLs and returns the storage key they can be loaded with.
type Store interface {
	Save(ctx context.Context, kind Kind, dataURL string) (string, error)
	Load(ctx context.Context, key string) (string, error)
}
