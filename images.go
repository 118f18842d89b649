package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/media"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrImagesUnsupported is wrapped by the error GenerateImages returns when the
// provider can not create images.
var ErrImagesUnsupported = provider.ErrImagesUnsupported

// ImageRequest asks for Count images from Prompt. References are input image
// URLs; data URLs are allowed.
type ImageRequest = provider.ImageRequest

// GenerateImages creates images and stores each one in the blob store. onReady
// is called with the storage key of every image as soon as it is stored. The
// keys are returned in the order the provider produced the images.
func (e *Engine) GenerateImages(ctx context.Context, req ImageRequest, onReady func(key string)) ([]string, error) {
	name := e.provider.Name()
	ctx, span := e.tracer.Start(ctx, "weave.GenerateImages", trace.WithAttributes(
		attribute.String("weave.provider", name),
		attribute.Int("weave.images.requested", req.Count),
	))
	defer span.End()

	gen, ok := imageGenerator(e.provider)
	if !ok {
		err := unsupported(name)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	images, err := gen.GenerateImages(ctx, req)
	if errors.Is(err, ErrImagesUnsupported) {
		err := unsupported(name)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err != nil {
		classified := llmerr.Classifier{Provider: name, Flag: e.flag}.Classify(ctx, err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		return nil, classified
	}

	m := media.Materializer{Store: e.store}
	keys := make([]string, 0, len(images))
	for i, img := range images {
		key, err := m.Materialize(ctx, img.MediaType, img.Base64)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return keys, fmt.Errorf("failed to store image %d: %w", i, err)
		}
		keys = append(keys, key)
		if onReady != nil {
			onReady(key)
		}
	}
	e.logger.Debug("generated images", slogx.Provider(name), slog.Int("count", len(keys)))
	span.SetAttributes(attribute.Int("weave.images.generated", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

func unsupported(name string) error {
	return &llmerr.APICallError{Provider: name, Message: ErrImagesUnsupported.Error(), Cause: ErrImagesUnsupported}
}

// imageGenerator finds the image capability, looking through the simulated
// streaming adapter.
func imageGenerator(p provider.Provider) (provider.ImageGenerator, bool) {
	if gen, ok := p.(provider.ImageGenerator); ok {
		return gen, true
	}
	if u, ok := p.(interface{ Unwrap() provider.Batcher }); ok {
		gen, ok := u.Unwrap().(provider.ImageGenerator)
		return gen, ok
	}
	return nil, false
}
