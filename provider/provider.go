package provider

import (
	"context"
	"errors"

	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/tool"
)

// Capabilities describes what a model accepts and produces.
type Capabilities struct {
	Vision        bool `json:"vision"`
	ToolUse       bool `json:"tool_use"`
	Reasoning     bool `json:"reasoning"`
	SystemMessage bool `json:"system_message"`
}

// Provider streams completions.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// Batcher produces whole completions. Wrap it with SimulateStreaming to use it
// where a Provider is expected.
type Batcher interface {
	Name() string
	Capabilities() Capabilities
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ErrImagesUnsupported is returned, possibly wrapped, when a backend can not
// create images.
var ErrImagesUnsupported = errors.New("provider does not support image generation")

// ImageGenerator is implemented by providers that can create images from a prompt.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)
}

// CallSettings are the sampling knobs forwarded to the backend. Nil means the
// backend default.
type CallSettings struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxOutputTokens *int64   `json:"max_output_tokens,omitempty"`
}

// Request is one completion request.
type Request struct {
	Messages []messages.Message `json:"messages"`
	Tools    []tool.Definition  `json:"-"`
	Settings CallSettings       `json:"settings"`
}

// Response is a whole, non-streamed completion.
type Response struct {
	Text         string
	Reasoning    string
	ToolCalls    []ToolCall
	Files        []File
	Usage        Usage
	FinishReason FinishReason
}

// ImageRequest asks for Count images. References are image URLs (data URLs
// allowed) the model may use as input.
type ImageRequest struct {
	Prompt     string
	References []string
	Count      int
}

// GeneratedImage is one generated image, base64 encoded.
type GeneratedImage struct {
	MediaType string
	Base64    string
}

// FinishReason tells why the model stopped generating.
type FinishReason string

const (
	// FinishReasonStop means the model ended its answer.
	FinishReasonStop FinishReason = "stop"
	// FinishReasonLength means the output token limit was reached.
	FinishReasonLength FinishReason = "length"
	// FinishReasonContentFilter means the provider's filter cut the output.
	FinishReasonContentFilter FinishReason = "content-filter"
	// FinishReasonToolCalls means the model waits for tool results.
	FinishReasonToolCalls FinishReason = "tool-calls"
	// FinishReasonError means generation failed on the provider side.
	FinishReasonError FinishReason = "error"
	// FinishReasonOther covers vendor reasons without a mapping.
	FinishReasonOther FinishReason = "other"
	// FinishReasonUnknown is used when the provider gave no reason.
	FinishReasonUnknown FinishReason = "unknown"
)

// Usage counts tokens.
type Usage struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens,omitempty"`
	TotalTokens     int64 `json:"total_tokens"`
}

// Add accumulates other into u. A zero total is derived from input and output.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.ReasoningTokens += other.ReasoningTokens
	total := other.TotalTokens
	if total == 0 {
		total = other.InputTokens + other.OutputTokens
	}
	u.TotalTokens += total
}

// Send delivers ev on events unless ctx is done first. Producers use it so a
// cancelled consumer never leaves them blocked.
func Send(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		return true
	}
}
