package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/provider/models"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// Name is the provider name used in errors and diagnostics.
const Name = "openai"

// Chat models with known capabilities.
const (
	ChatModelGPT4o     = "gpt-4o"
	ChatModelGPT4oMini = "gpt-4o-mini"
	ChatModelO1        = "o1"
	ChatModelO3Mini    = "o3-mini"
)

// defaultCapabilities is assumed for models the registry does not know.
var defaultCapabilities = provider.Capabilities{ToolUse: true, SystemMessage: true}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.Batcher        = (*Provider)(nil)
	_ provider.ImageGenerator = (*Provider)(nil)
)

// Provider talks to one chat model.
type Provider struct {
	client     *openai.Client
	model      string
	imageModel openai.ImageModel
	caps       provider.Capabilities
	logger     *slog.Logger
}

// New creates a provider for model. The client options configure the API key,
// base URL and transport.
func New(model string, options ...option.RequestOption) *Provider {
	return &Provider{
		client:     openai.NewClient(options...),
		model:      model,
		imageModel: openai.ImageModelDallE3,
		caps:       models.Global.Capabilities(model, defaultCapabilities),
		logger:     slog.Default().With(slogx.LoggerName("openai"), slog.String("model", model)),
	}
}

// GPT4oMini is a provider for gpt-4o-mini.
func GPT4oMini(options ...option.RequestOption) *Provider {
	return New(ChatModelGPT4oMini, options...)
}

// GPT4o is a provider for gpt-4o.
func GPT4o(options ...option.RequestOption) *Provider {
	return New(ChatModelGPT4o, options...)
}

// WithCapabilities overrides the capabilities looked up for the model.
func (p *Provider) WithCapabilities(caps provider.Capabilities) *Provider {
	c := *p
	c.caps = caps
	return &c
}

// WithImageModel sets the model used by GenerateImages.
func (p *Provider) WithImageModel(model string) *Provider {
	c := *p
	c.imageModel = openai.ImageModel(model)
	return &c
}

func (p *Provider) Name() string                        { return Name }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }

// Model returns the chat model name.
func (p *Provider) Model() string { return p.model }

func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	params, err := p.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	params.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	})

	strm := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := strm.Err(); err != nil {
		strm.Close()
		return nil, p.mapError(err)
	}

	events := make(chan provider.StreamEvent, 16)
	go func() {
		defer close(events)
		defer strm.Close()

		var (
			acc    openai.ChatCompletionAccumulator
			usage  provider.Usage
			reason = provider.FinishReasonUnknown
		)
		for strm.Next() {
			chunk := strm.Current()
			if !acc.AddChunk(chunk) {
				p.logger.Debug("chunk did not accumulate", slog.String("id", chunk.ID))
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = usageOf(chunk.Usage)
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if text := reasoningOf(gjson.Parse(chunk.JSON.RawJSON()).Get("choices.0.delta")); text != "" {
				if !provider.Send(ctx, events, provider.ReasoningDelta{Text: text}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				if !provider.Send(ctx, events, provider.TextDelta{Text: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason != "" {
				reason = finishReason(string(choice.FinishReason))
			}
		}
		if err := strm.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			provider.Send(ctx, events, provider.Error{Err: p.mapError(err), Timestamp: strfmt.DateTime(time.Now())})
			return
		}

		if len(acc.Choices) > 0 {
			for _, tc := range acc.Choices[0].Message.ToolCalls {
				if !provider.Send(ctx, events, toolCall(tc)) {
					return
				}
			}
		}
		provider.Send(ctx, events, provider.Finish{
			FinishReason: reason,
			Usage:        usage,
			Timestamp:    strfmt.DateTime(time.Now()),
		})
	}()
	return events, nil
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params, err := p.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.mapError(err)
	}

	resp := &provider.Response{
		Usage:        usageOf(chat.Usage),
		FinishReason: provider.FinishReasonUnknown,
	}
	if len(chat.Choices) == 0 {
		return resp, nil
	}
	choice := chat.Choices[0]
	resp.Text = choice.Message.Content
	resp.Reasoning = reasoningOf(gjson.Parse(chat.JSON.RawJSON()).Get("choices.0.message"))
	resp.FinishReason = finishReason(string(choice.FinishReason))
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, toolCall(tc))
	}
	return resp, nil
}

// reasoningOf reads the reasoning text OpenAI compatible backends put next to
// the content of a message or delta.
func reasoningOf(msg gjson.Result) string {
	if v := msg.Get("reasoning_content"); v.Exists() {
		return v.String()
	}
	return msg.Get("reasoning").String()
}

func toolCall(tc openai.ChatCompletionMessageToolCall) provider.ToolCall {
	args := json.RawMessage(tc.Function.Arguments)
	if strings.TrimSpace(tc.Function.Arguments) == "" {
		args = json.RawMessage(`{}`)
	}
	return provider.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args}
}

func usageOf(u openai.CompletionUsage) provider.Usage {
	return provider.Usage{
		InputTokens:     u.PromptTokens,
		OutputTokens:    u.CompletionTokens,
		ReasoningTokens: u.CompletionTokensDetails.ReasoningTokens,
		TotalTokens:     u.TotalTokens,
	}
}

func finishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonContentFilter
	case "tool_calls", "function_call":
		return provider.FinishReasonToolCalls
	case "":
		return provider.FinishReasonUnknown
	default:
		return provider.FinishReasonOther
	}
}

// mapError turns SDK errors into APICallError so callers see status and body.
func (p *Provider) mapError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	body := apiErr.JSON.RawJSON()
	if strings.TrimSpace(body) == "" {
		body = apiErr.Message
	}
	return &llmerr.APICallError{
		Provider:   Name,
		StatusCode: apiErr.StatusCode,
		Body:       body,
		Cause:      err,
	}
}
