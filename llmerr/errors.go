// Package llmerr classifies failures of completion requests into a small
// taxonomy callers can branch on with errors.As.
package llmerr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/casualjim/weave/content"
	"github.com/casualjim/weave/pkg/jsonx"
	"github.com/casualjim/weave/provider"
	json "github.com/goccy/go-json"
)

// APICallError is a failure reported by the provider's API or transport.
type APICallError struct {
	Provider   string
	Message    string
	StatusCode int
	Body       string
	Cause      error
}

func (e *APICallError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Error from " + e.Provider
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	switch {
	case e.Body != "":
		return msg + ": " + e.Body
	case e.Cause != nil:
		return msg + ": " + e.Cause.Error()
	default:
		return msg
	}
}

func (e *APICallError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the status code suggests a retry could succeed.
// The engine itself never retries.
func (e *APICallError) IsRetryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

const (
	// CodeModelNotSupportImage is the code of a CapabilityError raised when the
	// model rejects image input.
	CodeModelNotSupportImage = "model_not_support_image"

	// VariantModelNotSupportImage suggests switching to a recommended model.
	VariantModelNotSupportImage = "model_not_support_image"
	// VariantModelNotSupportImage2 asks the user to pick another model or drop
	// the images.
	VariantModelNotSupportImage2 = "model_not_support_image_2"
)

var capabilityMessages = map[string]string{
	VariantModelNotSupportImage:  "The current model does not support image input. Switch to a recommended vision model to continue.",
	VariantModelNotSupportImage2: "The current model does not support image input. Choose a model with vision support or remove the images from the conversation.",
}

// CapabilityError means the request asked the model for something it cannot do.
type CapabilityError struct {
	Code    string
	Variant string
	Message string
	Cause   error
}

// NewCapabilityError builds the error for code with the pre-written message of
// variant.
func NewCapabilityError(code, variant string, cause error) *CapabilityError {
	return &CapabilityError{Code: code, Variant: variant, Message: capabilityMessages[variant], Cause: cause}
}

func (e *CapabilityError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *CapabilityError) Unwrap() error { return e.Cause }

// ToolExecutionError describes a failed tool call. It is recorded on the tool
// call entry and never ends a run.
type ToolExecutionError struct {
	ToolCallID string
	ToolName   string
	Cause      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (%s) failed: %v", e.ToolName, e.ToolCallID, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// Payload is the JSON recorded as the result of the failed call:
// {"error":{"name","message","stack"},"input":<args>,"toolName":<name>}.
func (e *ToolExecutionError) Payload(input json.RawMessage) (json.RawMessage, error) {
	failure := provider.FailureOf(e.Cause)
	if failure == nil {
		failure = &provider.ToolFailure{Name: "Error", Message: "Unknown tool error"}
	}
	return jsonx.NewObject([]byte(`{}`)).
		Set("error", failure).
		SetRaw("input", jsonx.RawOrNull(input)).
		Set("toolName", e.ToolName).
		Bytes()
}

// UnclassifiedError wraps any failure that does not fit another category.
type UnclassifiedError struct {
	Provider string
	Cause    error
}

func (e *UnclassifiedError) Error() string {
	return fmt.Sprintf("Error from %s: %v", e.Provider, e.Cause)
}

func (e *UnclassifiedError) Unwrap() error { return e.Cause }

// PartialResultError carries the entries assembled before a run failed.
type PartialResultError struct {
	Err     error
	Entries content.List
}

func (e *PartialResultError) Error() string { return e.Err.Error() }

func (e *PartialResultError) Unwrap() error { return e.Err }

// Entries returns the partial entries carried by err, if any.
func Entries(err error) (content.List, bool) {
	var pe *PartialResultError
	if !errors.As(err, &pe) {
		return nil, false
	}
	return pe.Entries, true
}
