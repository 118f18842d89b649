package weave

import (
	"context"
	"errors"
	"testing"

	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type painter struct {
	batchProvider
	images []provider.GeneratedImage
	err    error
	got    provider.ImageRequest
}

func (p *painter) GenerateImages(_ context.Context, req provider.ImageRequest) ([]provider.GeneratedImage, error) {
	p.got = req
	return p.images, p.err
}

func TestGenerateImages(t *testing.T) {
	store := blobstore.NewMemory()
	p := &painter{images: []provider.GeneratedImage{
		{MediaType: "image/png", Base64: "iVBORw0KGgo="},
		{MediaType: "image/jpeg", Base64: "/9j/4AAQ"},
	}}
	e, err := NewBatch(p, WithBlobStore(store))
	require.NoError(t, err)

	var ready []string
	keys, err := e.GenerateImages(context.Background(), ImageRequest{Prompt: "a cat"}, func(key string) {
		ready = append(ready, key)
	})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, keys, ready)
	assert.Equal(t, 1, p.got.Count)
	assert.Equal(t, 2, store.Len())

	dataURL, err := store.Load(context.Background(), keys[1])
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,/9j/4AAQ", dataURL)
}

func TestGenerateImages_Unsupported(t *testing.T) {
	e := newEngine(t, &mockProvider{})
	_, err := e.GenerateImages(context.Background(), ImageRequest{Prompt: "a cat", Count: 1}, nil)

	var apiErr *llmerr.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, ErrImagesUnsupported)
}

func TestGenerateImages_ProviderFailure(t *testing.T) {
	p := &painter{err: errors.New("content policy violation")}
	e, err := NewBatch(p)
	require.NoError(t, err)

	_, err = e.GenerateImages(context.Background(), ImageRequest{Prompt: "x", Count: 2}, nil)
	var unclassified *llmerr.UnclassifiedError
	require.ErrorAs(t, err, &unclassified)
	assert.Equal(t, 2, p.got.Count)
}

func TestGenerateImages_StoreFailureKeepsEarlierKeys(t *testing.T) {
	p := &painter{images: []provider.GeneratedImage{
		{MediaType: "image/png", Base64: "iVBORw0KGgo="},
		{MediaType: "image/png", Base64: "%%%not base64"},
	}}
	e, err := NewBatch(p)
	require.NoError(t, err)

	var ready []string
	keys, err := e.GenerateImages(context.Background(), ImageRequest{Prompt: "x", Count: 2}, func(k string) { ready = append(ready, k) })
	require.Error(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, keys, ready)
}
