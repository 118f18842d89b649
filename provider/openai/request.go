package openai

import (
	"fmt"
	"strings"

	"github.com/casualjim/weave/pkg/jsonx"
	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/tool"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

func (p *Provider) buildRequest(req provider.Request) (openai.ChatCompletionNewParams, error) {
	msgs, err := p.messagesToOpenAI(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(msgs),
		Model:    openai.F(p.model),
		N:        openai.Int(1),
	}

	tools, err := toolsToOpenAI(req.Tools)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	if len(tools) > 0 {
		params.Tools = openai.F(tools)
		params.ParallelToolCalls = openai.Bool(true)
	}

	s := req.Settings
	if s.Temperature != nil {
		params.Temperature = openai.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = openai.Float(*s.TopP)
	}
	if s.MaxOutputTokens != nil {
		params.MaxCompletionTokens = openai.Int(*s.MaxOutputTokens)
	}
	return params, nil
}

func toolsToOpenAI(defs []tool.Definition) ([]openai.ChatCompletionToolParam, error) {
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, td := range defs {
		name, parameters := td.ToNameAndSchema()
		if name == "" {
			return nil, fmt.Errorf("tool without a name")
		}

		jv, err := jsonx.ToDynamicJSON(parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to convert schema of tool %s: %w", name, err)
		}

		def := openai.FunctionDefinitionParam{
			Name:       openai.String(name),
			Parameters: openai.F(shared.FunctionParameters(jv)),
		}
		if strings.TrimSpace(td.Description) != "" {
			def.Description = openai.String(td.Description)
		}

		tools = append(tools, openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		})
	}
	return tools, nil
}

// messagesToOpenAI converts the conversation. Models without system message
// support get system prompts as user messages.
func (p *Provider) messagesToOpenAI(msgs []messages.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case messages.RoleSystem:
			if p.caps.SystemMessage {
				result = append(result, openai.SystemMessage(msg.Content.Text()))
			} else {
				result = append(result, openai.UserMessage(msg.Content.Text()))
			}
		case messages.RoleUser:
			result = append(result, userMessage(msg.Content))
		case messages.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content.Text()))
				continue
			}
			tcd := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				tcd[j] = openai.ChatCompletionMessageToolCallParam{
					ID:   openai.String(tc.ID),
					Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
					Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      openai.String(tc.Name),
						Arguments: openai.String(string(tc.Arguments)),
					}),
				}
			}
			am := openai.ChatCompletionMessageParam{
				Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
				ToolCalls: openai.F[any](tcd),
			}
			if text := msg.Content.Text(); text != "" {
				am.Content = openai.F[any](text)
			}
			result = append(result, am)
		case messages.RoleTool:
			result = append(result, openai.ToolMessage(msg.ToolCallID, msg.Content.Text()))
		default:
			return nil, fmt.Errorf("message %d has an unknown role %q", i, msg.Role)
		}
	}
	return result, nil
}

func userMessage(content messages.ContentOrParts) openai.ChatCompletionMessageParamUnion {
	if len(content.Parts) == 0 {
		return openai.UserMessage(content.Content)
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(content.Parts))
	for _, part := range content.Parts {
		switch part := part.(type) {
		case messages.TextContentPart:
			parts = append(parts, openai.TextPart(part.Text))
		case messages.ImageContentPart:
			img := openai.ChatCompletionContentPartImageImageURLParam{
				URL: openai.String(part.URL),
			}
			if part.Detail != "" {
				img.Detail = openai.F(openai.ChatCompletionContentPartImageImageURLDetail(part.Detail))
			}
			parts = append(parts, openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.F(img),
				Type:     openai.F(openai.ChatCompletionContentPartImageTypeImageURL),
			})
		}
	}
	return openai.UserMessageParts(parts...)
}
