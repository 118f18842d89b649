package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/casualjim/weave"
	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/diagnostics"
	"github.com/casualjim/weave/internal/broker"
	"github.com/casualjim/weave/pkg/natsx"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/provider/breaker"
	"github.com/casualjim/weave/provider/openai"
	"github.com/casualjim/weave/remoteconfig"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/option"
)

const (
	defaultBlobBucket = "weave-blobs"
	defaultFlagBucket = "weave-flags"
	imageFlagKey      = "capability.recommend_vision_model"
)

// infra is the storage, remote config and diagnostics a command runs with.
// Without NATS_URL everything stays in process.
type infra struct {
	store  blobstore.Store
	flag   remoteconfig.Flag
	sink   diagnostics.Sink
	broker broker.Broker
	remote bool
	close  func()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func connectInfra(ctx context.Context, logger *slog.Logger) (*infra, error) {
	nc, js, err := natsx.JetStream()
	if errors.Is(err, natsx.ErrNoURL) {
		logger.Debug("NATS_URL is not set, using in-memory storage")
		return &infra{
			store:  blobstore.NewMemory(),
			flag:   remoteconfig.Static(false),
			sink:   diagnostics.LogSink{Logger: logger},
			broker: broker.Local(),
			close:  func() {},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	store, err := blobstore.OpenNATSObjectStore(js, envOr("WEAVE_BLOB_BUCKET", defaultBlobBucket))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open blob bucket: %w", err)
	}

	var flag remoteconfig.Flag = remoteconfig.Static(false)
	var stopFlag func()
	if kv, err := keyValue(js, envOr("WEAVE_FLAG_BUCKET", defaultFlagBucket)); err != nil {
		logger.Warn("remote config is unavailable, using defaults", slogx.Error(err))
	} else if kvFlag, err := remoteconfig.WatchKV(ctx, kv, imageFlagKey, false, logger); err != nil {
		logger.Warn("failed to watch remote config", slogx.Error(err))
	} else {
		flag = kvFlag
		stopFlag = kvFlag.Stop
	}

	sink := diagnostics.NewAsync(diagnostics.NATSSink{Conn: nc}, 64, logger)
	return &infra{
		store:  store,
		flag:   flag,
		sink:   sink,
		broker: broker.NATS(nc),
		remote: true,
		close: func() {
			sink.Close()
			if stopFlag != nil {
				stopFlag()
			}
			if err := nc.Drain(); err != nil {
				logger.Warn("failed to drain nats connection", slogx.Error(err))
			}
		},
	}, nil
}

func keyValue(js nats.JetStreamContext, bucket string) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		return js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}
	return kv, err
}

// openAIProvider builds the OpenAI backend guarded by a circuit breaker.
func openAIProvider(model string, logger *slog.Logger) provider.Provider {
	var options []option.RequestOption
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		options = append(options, option.WithBaseURL(base))
	}
	return breaker.Wrap(openai.New(model, options...), breaker.Config{}, logger)
}

func newEngine(p provider.Provider, inf *infra, streaming bool, logger *slog.Logger) (*weave.Engine, error) {
	return weave.New(p,
		weave.WithBlobStore(inf.store),
		weave.WithFlag(inf.flag),
		weave.WithSink(inf.sink),
		weave.WithLogger(logger),
		weave.WithStreaming(streaming),
	)
}
