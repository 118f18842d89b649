// Package remoteconfig provides boolean feature flags whose value is owned by
// something outside the process.
package remoteconfig

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/casualjim/weave/pkg/slogx"
	"github.com/nats-io/nats.go"
)

// Flag is a boolean switch read at decision time.
type Flag interface {
	Enabled(ctx context.Context) bool
}

// Static is a flag with a fixed value.
type Static bool

func (s Static) Enabled(context.Context) bool { return bool(s) }

// Enabled reads f and treats a nil flag as off.
func Enabled(ctx context.Context, f Flag) bool {
	if f == nil {
		return false
	}
	return f.Enabled(ctx)
}

// KVFlag mirrors one key of a NATS key-value bucket. The value is parsed with
// strconv.ParseBool; a missing, deleted or unparsable value reads as the
// default.
type KVFlag struct {
	key      string
	def      bool
	value    atomic.Bool
	watcher  nats.KeyWatcher
	logger   *slog.Logger
	stopOnce sync.Once
}

// WatchKV starts watching key in kv. The initial value is loaded before
// WatchKV returns. Call Stop to release the watcher.
func WatchKV(ctx context.Context, kv nats.KeyValue, key string, def bool, logger *slog.Logger) (*KVFlag, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := kv.Watch(key, nats.Context(ctx))
	if err != nil {
		return nil, err
	}

	f := &KVFlag{
		key:     key,
		def:     def,
		watcher: w,
		logger:  logger.With(slogx.LoggerName("remoteconfig"), slog.String("key", key)),
	}
	f.value.Store(def)

	initial := make(chan struct{})
	go f.run(initial)
	select {
	case <-initial:
	case <-ctx.Done():
		f.Stop()
		return nil, ctx.Err()
	}
	return f, nil
}

func (f *KVFlag) run(initial chan<- struct{}) {
	var loaded bool
	for entry := range f.watcher.Updates() {
		if entry == nil {
			// end of the initial values
			if !loaded {
				loaded = true
				close(initial)
			}
			continue
		}
		f.apply(entry)
	}
	if !loaded {
		close(initial)
	}
}

func (f *KVFlag) apply(entry nats.KeyValueEntry) {
	if entry.Operation() != nats.KeyValuePut {
		f.value.Store(f.def)
		return
	}
	v, err := strconv.ParseBool(strings.TrimSpace(string(entry.Value())))
	if err != nil {
		f.logger.Warn("ignoring unparsable flag value", slogx.ByteString("value", entry.Value()), slogx.Error(err))
		f.value.Store(f.def)
		return
	}
	f.value.Store(v)
}

// Enabled returns the last observed value.
func (f *KVFlag) Enabled(context.Context) bool {
	return f.value.Load()
}

// Stop ends the watch. It is safe to call more than once.
func (f *KVFlag) Stop() {
	f.stopOnce.Do(func() {
		if err := f.watcher.Stop(); err != nil {
			f.logger.Debug("stopping flag watcher", slogx.Error(err))
		}
	})
}
