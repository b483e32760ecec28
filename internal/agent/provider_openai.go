package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oshared "github.com/openai/openai-go/shared"
)

type openAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider builds a chat-completions streaming adapter. baseURL is
// optional and serves OpenAI-compatible gateways.
func NewOpenAIProvider(apiKey, baseURL string) (ModelProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: openai api key is required")
	}
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &openAIProvider{client: openai.NewClient(opts...)}, nil
}

func (p *openAIProvider) StreamChat(ctx context.Context, req StreamRequest, onChunk func(DeltaChunk) error) error {
	if p == nil {
		return errors.New("nil provider")
	}
	if strings.TrimSpace(req.Model) == "" {
		return errors.New("missing model")
	}

	params := openai.ChatCompletionNewParams{
		Model:    oshared.ChatModel(strings.TrimSpace(req.Model)),
		Messages: buildOpenAIMessages(req.Messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildOpenAITools(req.Tools)
		params.ToolChoice = buildOpenAIToolChoice(req.ToolChoice)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		out := DeltaChunk{}
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta
			out.Content = delta.Content
			for _, tc := range delta.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, ToolCallFragment{
					Index:             int(tc.Index),
					ID:                tc.ID,
					FunctionName:      tc.Function.Name,
					ArgumentsFragment: tc.Function.Arguments,
				})
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			out.HasUsage = true
			out.TotalTokens = chunk.Usage.TotalTokens
		}
		if err := onChunk(out); err != nil {
			return err
		}
	}
	return stream.Err()
}

func buildOpenAIMessages(messages []ConversationMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if strings.TrimSpace(msg.Content) != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return out
}

func buildOpenAITools(schemas []ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(schemas))
	for _, schema := range schemas {
		def := oshared.FunctionDefinitionParam{Name: schema.Name}
		if strings.TrimSpace(schema.Description) != "" {
			def.Description = openai.String(schema.Description)
		}
		if len(schema.Parameters) > 0 {
			var params map[string]any
			if err := json.Unmarshal(schema.Parameters, &params); err == nil {
				def.Parameters = oshared.FunctionParameters(params)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{Function: def})
	}
	return out
}

func buildOpenAIToolChoice(choice string) openai.ChatCompletionToolChoiceOptionUnionParam {
	choice = strings.TrimSpace(choice)
	switch choice {
	case "", ToolChoiceAuto:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(ToolChoiceAuto)}
	case ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(ToolChoiceNone)}
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice},
			},
		}
	}
}
