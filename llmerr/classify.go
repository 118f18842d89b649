package llmerr

import (
	"context"
	"errors"
	"strings"

	"github.com/casualjim/weave/remoteconfig"
)

// imageUnsupportedMessage is what vendors answer when a model without vision
// receives an image part.
const imageUnsupportedMessage = "Invalid content type. image_url is only supported by certain models."

type statusCoder interface {
	StatusCode() int
}

// Classifier maps raw failures of one provider to the taxonomy. Flag picks the
// variant of capability errors.
type Classifier struct {
	Provider string
	Flag     remoteconfig.Flag
}

// Classify returns err mapped onto the taxonomy. Errors that are already
// classified and context cancellation pass through unchanged.
func (c Classifier) Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		capErr   *CapabilityError
		toolErr  *ToolExecutionError
		unclsErr *UnclassifiedError
	)
	if errors.As(err, &capErr) || errors.As(err, &toolErr) || errors.As(err, &unclsErr) {
		return err
	}

	if strings.Contains(err.Error(), imageUnsupportedMessage) {
		variant := VariantModelNotSupportImage2
		if remoteconfig.Enabled(ctx, c.Flag) {
			variant = VariantModelNotSupportImage
		}
		return NewCapabilityError(CodeModelNotSupportImage, variant, err)
	}

	var apiErr *APICallError
	if errors.As(err, &apiErr) {
		return err
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return &APICallError{Provider: c.Provider, StatusCode: sc.StatusCode(), Cause: err}
	}

	return &UnclassifiedError{Provider: c.Provider, Cause: err}
}

// ClassifyStream classifies a failure the provider reported inside its event
// stream. The provider already attributed it to the API call, so causes that
// Classify can not place become an APICallError instead of an
// UnclassifiedError.
func (c Classifier) ClassifyStream(ctx context.Context, err error) error {
	var unclsErr *UnclassifiedError
	if errors.As(err, &unclsErr) {
		return err
	}
	classified := c.Classify(ctx, err)
	if _, ok := classified.(*UnclassifiedError); ok {
		return &APICallError{Provider: c.Provider, Cause: err}
	}
	return classified
}

// IsUnexpected reports whether err should be sent to the diagnostics sink.
// Cancellation and capability errors are expected outcomes; everything else,
// provider failures included, is reported.
func IsUnexpected(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var capErr *CapabilityError
	return !errors.As(err, &capErr)
}
