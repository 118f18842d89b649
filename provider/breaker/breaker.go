// Package breaker guards a provider with a circuit breaker. After repeated
// failures the circuit opens and requests fail fast until a probe succeeds.
//
// Only the start of a request goes through the breaker: a stream that opened
// successfully counts as a success even if it later delivers an error event.
// Client errors (4xx other than 408, 409 and 429) and cancellation never trip
// the circuit.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxFailures uint32 = 5
	defaultTimeout            = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

// Config tunes the circuit. Zero values pick the defaults.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32 `json:"max_failures"`
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration `json:"timeout"`
	// Interval clears the failure counts while the circuit is closed.
	Interval time.Duration `json:"interval"`
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.Batcher        = (*Provider)(nil)
	_ provider.ImageGenerator = (*Provider)(nil)
)

// Provider wraps another provider. Complete and GenerateImages are forwarded
// when the wrapped value supports them and fail with an unsupported error
// otherwise.
type Provider struct {
	inner  provider.Provider
	batch  provider.Batcher
	cb     *gobreaker.CircuitBreaker[struct{}]
	logger *slog.Logger
}

// Wrap guards a streaming provider.
func Wrap(inner provider.Provider, cfg Config, logger *slog.Logger) *Provider {
	b, _ := inner.(provider.Batcher)
	return newProvider(inner, b, cfg, logger)
}

// WrapBatcher guards a provider that only produces whole completions. Stream
// replays the completion.
func WrapBatcher(inner provider.Batcher, cfg Config, logger *slog.Logger) *Provider {
	return newProvider(provider.SimulateStreaming(inner), inner, cfg, logger)
}

func newProvider(inner provider.Provider, batch provider.Batcher, cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	logger = logger.With(slogx.LoggerName("breaker"), slogx.Provider(inner.Name()))
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "provider:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})

	return &Provider{inner: inner, batch: batch, cb: cb, logger: logger}
}

// isSuccessful decides what counts against the circuit. Only failures that
// say something about the health of the backend do.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, errors.ErrUnsupported) || errors.Is(err, provider.ErrImagesUnsupported) {
		return true
	}
	var capErr *llmerr.CapabilityError
	if errors.As(err, &capErr) {
		return true
	}
	var apiErr *llmerr.APICallError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return !apiErr.IsRetryable()
	}
	return false
}

func (p *Provider) Name() string                        { return p.inner.Name() }
func (p *Provider) Capabilities() provider.Capabilities { return p.inner.Capabilities() }

// State returns the current state of the circuit.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

// Counts returns the failure and success counts of the current generation.
func (p *Provider) Counts() gobreaker.Counts { return p.cb.Counts() }

// Stream opens a stream through the breaker.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	var events <-chan provider.StreamEvent
	err := p.execute(func() (err error) {
		events, err = p.inner.Stream(ctx, req)
		return err
	})
	return events, err
}

// Complete runs a whole completion through the breaker.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if p.batch == nil {
		return nil, fmt.Errorf("provider %q does not support whole completions: %w", p.Name(), errors.ErrUnsupported)
	}
	var resp *provider.Response
	err := p.execute(func() (err error) {
		resp, err = p.batch.Complete(ctx, req)
		return err
	})
	return resp, err
}

// GenerateImages forwards image generation through the breaker.
func (p *Provider) GenerateImages(ctx context.Context, req provider.ImageRequest) ([]provider.GeneratedImage, error) {
	gen, ok := p.imageGenerator()
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", p.Name(), provider.ErrImagesUnsupported)
	}
	var images []provider.GeneratedImage
	err := p.execute(func() (err error) {
		images, err = gen.GenerateImages(ctx, req)
		return err
	})
	return images, err
}

func (p *Provider) imageGenerator() (provider.ImageGenerator, bool) {
	if gen, ok := p.inner.(provider.ImageGenerator); ok {
		return gen, true
	}
	gen, ok := p.batch.(provider.ImageGenerator)
	return gen, ok
}

func (p *Provider) execute(fn func() error) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.logger.Debug("request rejected", slogx.Error(err))
		return &llmerr.APICallError{
			Provider: p.Name(),
			Message:  "circuit open",
			Cause:    err,
		}
	}
	return err
}
