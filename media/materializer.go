// Package media turns generated media payloads into storage keys.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/pkg/dataurl"
)

// ErrEmptyPayload is returned when there is nothing to store.
var ErrEmptyPayload = errors.New("media payload is empty")

// Materializer persists base64 media through a blob store.
type Materializer struct {
	Store blobstore.Store
}

// Materialize stores the payload as data:<mediaType>;base64,<payload> and
// returns the storage key. The payload must be valid base64.
func (m Materializer) Materialize(ctx context.Context, mediaType, payload string) (string, error) {
	if m.Store == nil {
		return "", errors.New("no blob store configured")
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", ErrEmptyPayload
	}
	if _, err := dataurl.Decode(payload); err != nil {
		return "", fmt.Errorf("failed to decode %s payload: %w", mediaType, err)
	}
	key, err := m.Store.Save(ctx, blobstore.KindResponse, dataurl.Format(mediaType, payload))
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", mediaType, err)
	}
	return key, nil
}

// IsImage reports whether mediaType is an image type.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}
