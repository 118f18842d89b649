package media

import (
	"context"
	"errors"
	"testing"

	"github.com/casualjim/weave/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ blobstore.Store }

func (failingStore) Save(context.Context, blobstore.Kind, string) (string, error) {
	return "", errors.New("disk full")
}

func TestMaterializer_Materialize(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	m := Materializer{Store: store}

	key, err := m.Materialize(ctx, "image/png", "iVBORw0KGgo=")
	require.NoError(t, err)

	got, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", got)
}

func TestMaterializer_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Materializer{Store: blobstore.NewMemory()}.Materialize(ctx, "image/png", "  ")
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Materializer{Store: blobstore.NewMemory()}.Materialize(ctx, "image/png", "not base64!")
	assert.ErrorContains(t, err, "failed to decode image/png payload")

	_, err = Materializer{Store: failingStore{}}.Materialize(ctx, "image/png", "iVBORw0KGgo=")
	assert.ErrorContains(t, err, "disk full")

	_, err = Materializer{}.Materialize(ctx, "image/png", "iVBORw0KGgo=")
	assert.Error(t, err)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/webp"))
	assert.False(t, IsImage("application/pdf"))
	assert.False(t, IsImage(""))
}
