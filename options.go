package weave

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/diagnostics"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/remoteconfig"
	"github.com/casualjim/weave/tool"
	"github.com/fogfish/opts"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine.
type Option = opts.Option[Engine]

// WithBlobStore sets where generated images are stored.
var WithBlobStore = opts.ForName[Engine, blobstore.Store]("store")

// WithFlag sets the remote-config flag that picks the variant of capability
// errors.
var WithFlag = opts.ForName[Engine, remoteconfig.Flag]("flag")

// WithSink sets where unexpected failures are reported.
var WithSink = opts.ForName[Engine, diagnostics.Sink]("sink")

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return opts.Type[Engine](func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("logger can not be nil")
		}
		e.logger = logger
		return nil
	})
}

// WithTracer sets the tracer runs are recorded with.
func WithTracer(tracer trace.Tracer) Option {
	return opts.Type[Engine](func(e *Engine) error {
		if tracer == nil {
			return fmt.Errorf("tracer can not be nil")
		}
		e.tracer = tracer
		return nil
	})
}

// WithClock replaces time.Now for reasoning timing.
func WithClock(now func() time.Time) Option {
	return opts.Type[Engine](func(e *Engine) error {
		if now == nil {
			return fmt.Errorf("clock can not be nil")
		}
		e.clock = now
		return nil
	})
}

// WithStreaming picks between streamed and whole completions. Whole
// completions require the provider to implement provider.Batcher; their
// response is replayed as a stream.
func WithStreaming(enabled bool) Option {
	return opts.Type[Engine](func(e *Engine) error {
		e.streaming = enabled
		return nil
	})
}

// RunOption configures a single run.
type RunOption = opts.Option[RunOptions]

// RunOptions holds the settings of one run.
type RunOptions struct {
	MaxSteps        int
	Tools           []tool.Definition
	OnContentChange func(Update)
	CallSettings    provider.CallSettings
}

// MaxSteps bounds the number of provider round trips of a run with tools.
var MaxSteps = opts.ForName[RunOptions, int]("MaxSteps")

// OnContentChange registers a callback that receives a snapshot of the entries
// after every change. The last call of a completed run carries the usage.
var OnContentChange = opts.ForName[RunOptions, func(Update)]("OnContentChange")

// CallSettings sets sampling parameters forwarded to the provider.
var CallSettings = opts.ForName[RunOptions, provider.CallSettings]("CallSettings")

// Tools sets the tools the model may call. Tools with a function are executed
// by the run; declared tools are left for the caller to answer.
func Tools(tools ...tool.Definition) RunOption {
	return opts.Type[RunOptions](func(o *RunOptions) error {
		o.Tools = append(o.Tools, tools...)
		return nil
	})
}
