package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxOutputTokens = 4096

type anthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a Messages-API streaming adapter that maps
// content-block events onto the chat-completions fragment shape: the block
// index keys the fragments, id and name arrive on block start, argument JSON
// arrives as partial-json deltas.
func NewAnthropicProvider(apiKey, baseURL string) (ModelProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: anthropic api key is required")
	}
	opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, aoption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...)}, nil
}

func (p *anthropicProvider) StreamChat(ctx context.Context, req StreamRequest, onChunk func(DeltaChunk) error) error {
	if p == nil {
		return errors.New("nil provider")
	}
	if strings.TrimSpace(req.Model) == "" {
		return errors.New("missing model")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(strings.TrimSpace(req.Model)),
		MaxTokens: anthropicMaxOutputTokens,
		Messages:  buildAnthropicMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if system := collectSystemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildAnthropicTools(req.Tools)
		if choice := buildAnthropicToolChoice(req.ToolChoice); choice != nil {
			params.ToolChoice = *choice
		}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return err
		}

		out := DeltaChunk{}
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if variant.ContentBlock.Type != "tool_use" {
				continue
			}
			out.ToolCalls = []ToolCallFragment{{
				Index:        int(variant.Index),
				ID:           variant.ContentBlock.ID,
				FunctionName: variant.ContentBlock.Name,
			}}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text == "" {
					continue
				}
				out.Content = delta.Text
			case anthropic.InputJSONDelta:
				if delta.PartialJSON == "" {
					continue
				}
				out.ToolCalls = []ToolCallFragment{{
					Index:             int(variant.Index),
					ArgumentsFragment: delta.PartialJSON,
				}}
			default:
				continue
			}
		default:
			continue
		}
		if err := onChunk(out); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	return onChunk(DeltaChunk{
		HasUsage:    true,
		TotalTokens: msg.Usage.InputTokens + msg.Usage.OutputTokens,
	})
}

func buildAnthropicMessages(messages []ConversationMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: json.RawMessage(call.Arguments),
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			// tool results ride on a user-role message in the Messages API
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		}
	}
	if len(out) == 0 {
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("Continue.")))
	}
	return out
}

func buildAnthropicTools(schemas []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, schema := range schemas {
		schemaMap := map[string]any{}
		if len(schema.Parameters) > 0 {
			_ = json.Unmarshal(schema.Parameters, &schemaMap)
		}
		required, _ := schemaMap["required"].([]any)
		requiredNames := make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				requiredNames = append(requiredNames, s)
			}
		}
		param := anthropic.ToolParam{
			Name:        schema.Name,
			Description: anthropic.String(schema.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: schemaMap["properties"],
				Required:   requiredNames,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}

func buildAnthropicToolChoice(choice string) *anthropic.ToolChoiceUnionParam {
	choice = strings.TrimSpace(choice)
	switch choice {
	case "", ToolChoiceAuto, ToolChoiceNone:
		return nil
	default:
		return &anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: choice},
		}
	}
}

func collectSystemPrompt(messages []ConversationMessage) string {
	parts := make([]string, 0, 1)
	for _, msg := range messages {
		if msg.Role != RoleSystem {
			continue
		}
		if txt := strings.TrimSpace(msg.Content); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n\n")
}
