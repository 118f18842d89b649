package remoteconfig

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	nats.KeyValueEntry
	value []byte
	op    nats.KeyValueOp
}

func (e *fakeEntry) Value() []byte              { return e.value }
func (e *fakeEntry) Operation() nats.KeyValueOp { return e.op }

type fakeWatcher struct {
	nats.KeyWatcher
	updates chan nats.KeyValueEntry
	stopped bool
}

func (w *fakeWatcher) Updates() <-chan nats.KeyValueEntry { return w.updates }
func (w *fakeWatcher) Stop() error {
	if !w.stopped {
		w.stopped = true
		close(w.updates)
	}
	return nil
}

type fakeKV struct {
	nats.KeyValue
	watcher *fakeWatcher
	key     string
}

func (kv *fakeKV) Watch(key string, _ ...nats.WatchOpt) (nats.KeyWatcher, error) {
	kv.key = key
	return kv.watcher, nil
}

func put(v string) nats.KeyValueEntry {
	return &fakeEntry{value: []byte(v), op: nats.KeyValuePut}
}

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).Enabled(context.Background()))
	assert.False(t, Static(false).Enabled(context.Background()))
	assert.False(t, Enabled(context.Background(), nil))
	assert.True(t, Enabled(context.Background(), Static(true)))
}

func TestWatchKV(t *testing.T) {
	w := &fakeWatcher{updates: make(chan nats.KeyValueEntry, 4)}
	kv := &fakeKV{watcher: w}
	w.updates <- put("true")
	w.updates <- nil

	f, err := WatchKV(context.Background(), kv, "vision_first", false, nil)
	require.NoError(t, err)
	defer f.Stop()

	assert.Equal(t, "vision_first", kv.key)
	assert.True(t, f.Enabled(context.Background()))

	w.updates <- put("not a bool")
	assert.Eventually(t, func() bool { return !f.Enabled(context.Background()) }, time.Second, 5*time.Millisecond)

	w.updates <- put(" 1 ")
	assert.Eventually(t, func() bool { return f.Enabled(context.Background()) }, time.Second, 5*time.Millisecond)

	w.updates <- &fakeEntry{op: nats.KeyValueDelete}
	assert.Eventually(t, func() bool { return !f.Enabled(context.Background()) }, time.Second, 5*time.Millisecond)
}

func TestWatchKV_MissingKeyUsesDefault(t *testing.T) {
	w := &fakeWatcher{updates: make(chan nats.KeyValueEntry, 1)}
	w.updates <- nil

	f, err := WatchKV(context.Background(), &fakeKV{watcher: w}, "missing", true, nil)
	require.NoError(t, err)
	assert.True(t, f.Enabled(context.Background()))

	f.Stop()
	f.Stop()
	assert.True(t, w.stopped)
}

func TestWatchKV_ContextDone(t *testing.T) {
	w := &fakeWatcher{updates: make(chan nats.KeyValueEntry)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WatchKV(ctx, &fakeKV{watcher: w}, "slow", false, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, w.stopped)
}
