package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/casualjim/weave/pkg/dataurl"
	"github.com/casualjim/weave/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

const headerContentType = "Content-Type"

// NATSObjectStore keeps blobs as objects in a JetStream object store bucket.
// Objects hold the decoded bytes with the media type as a header.
type NATSObjectStore struct {
	obs nats.ObjectStore
}

// NewNATSObjectStore wraps an existing object store bucket.
func NewNATSObjectStore(obs nats.ObjectStore) *NATSObjectStore {
	return &NATSObjectStore{obs: obs}
}

// OpenNATSObjectStore binds to bucket, creating it when it does not exist.
func OpenNATSObjectStore(js nats.JetStreamContext, bucket string) (*NATSObjectStore, error) {
	obs, err := js.ObjectStore(bucket)
	if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrBucketNotFound) {
		obs, err = js.CreateObjectStore(&nats.ObjectStoreConfig{Bucket: bucket})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object store %s: %w", bucket, err)
	}
	return NewNATSObjectStore(obs), nil
}

func (s *NATSObjectStore) Save(ctx context.Context, kind Kind, dataURL string) (string, error) {
	mediaType, data, err := dataurl.Parse(dataURL)
	if err != nil {
		return "", err
	}
	key := uuidx.Key(string(kind))
	meta := &nats.ObjectMeta{
		Name:    key,
		Headers: nats.Header{headerContentType: []string{mediaType}},
	}
	if _, err := s.obs.Put(meta, bytes.NewReader(data), nats.Context(ctx)); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	return key, nil
}

func (s *NATSObjectStore) Load(ctx context.Context, key string) (string, error) {
	res, err := s.obs.Get(key, nats.Context(ctx))
	if errors.Is(err, nats.ErrObjectNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	defer res.Close()

	info, err := res.Info()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(res)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	mediaType := info.Headers.Get(headerContentType)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return dataurl.Encode(mediaType, data), nil
}
