package blobstore

import (
	"context"
	"fmt"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/weave/pkg/uuidx"
)

// Memory keeps blobs in a concurrent in-process map.
type Memory struct {
	blobs *haxmap.Map[string, string]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: haxmap.New[string, string]()}
}

func (m *Memory) Save(ctx context.Context, kind Kind, dataURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := uuidx.Key(string(kind))
	m.blobs.Set(key, dataURL)
	return key, nil
}

func (m *Memory) Load(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := m.blobs.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	return int(m.blobs.Len())
}
