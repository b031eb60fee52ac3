package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/taskpilot-ai/taskpilot/internal/consts"
	"github.com/taskpilot-ai/taskpilot/internal/logger"
)

// AnthropicClient implements Client using the official Anthropic SDK
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(apiKey, modelName string) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required for Anthropic provider")
	}

	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, fmt.Errorf("model name is required for Anthropic provider")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &client, model: model}, nil
}

func (c *AnthropicClient) GetModelName() string {
	return c.model
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{
			{Role: "user", Content: prompt},
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *AnthropicClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("anthropic completion request cannot be nil")
	}

	params, err := c.buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var content strings.Builder
	var toolCalls []map[string]interface{}
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   block.ID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      block.Name,
					"arguments": stringifyArguments(block.Input),
				},
			})
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		ToolCalls:  NormalizeToolCallIDs(toolCalls),
		StopReason: string(message.StopReason),
	}, nil
}

func (c *AnthropicClient) buildMessageParams(req *CompletionRequest) (anthropic.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = consts.DefaultMaxTokens
	}

	messages, err := convertMessagesToAnthropic(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("chat request requires at least one message")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: sys},
		}
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertAnthropicTools(req.Tools)
	}

	return params, nil
}

// convertMessagesToAnthropic maps the provider-neutral history onto the
// Anthropic message shape. Tool results become tool_result blocks on user
// messages, assistant tool calls become tool_use blocks.
func convertMessagesToAnthropic(messages []*Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg == nil {
			continue
		}

		switch normalizeRole(msg.Role) {
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				block, err := buildAnthropicToolUseBlock(tc)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, block)
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		case "tool":
			if strings.TrimSpace(msg.ToolID) == "" {
				return nil, fmt.Errorf("tool message is missing its tool call id")
			}
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolID, msg.Content, false)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result, nil
}

func buildAnthropicToolUseBlock(toolCall map[string]interface{}) (anthropic.ContentBlockParamUnion, error) {
	callID := firstNonEmptyString(toolCall["id"], toolCall["call_id"])
	fn, _ := toolCall["function"].(map[string]interface{})
	if fn == nil {
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool call is missing its function block")
	}

	name := toString(fn["name"])
	if name == "" {
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool call is missing its function name")
	}

	input := parseToolArguments(fn["arguments"])
	return anthropic.NewToolUseBlock(callID, input, name), nil
}

// parseToolArguments decodes the OpenAI-style arguments string back into a
// JSON object for the Anthropic tool_use block.
func parseToolArguments(raw interface{}) map[string]interface{} {
	switch value := raw.(type) {
	case map[string]interface{}:
		return value
	case string:
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			logger.Warn("Failed to parse tool call arguments: %v", err)
			return map[string]interface{}{}
		}
		return parsed
	default:
		return map[string]interface{}{}
	}
}

// convertAnthropicTools maps OpenAI-style tool definitions to Anthropic tool
// params. Malformed entries are skipped.
func convertAnthropicTools(tools []map[string]interface{}) []anthropic.ToolUnionParam {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		fn, _ := tool["function"].(map[string]interface{})
		if fn == nil {
			continue
		}
		name := toString(fn["name"])
		if name == "" {
			continue
		}

		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if params, ok := fn["parameters"].(map[string]interface{}); ok {
			if props, ok := params["properties"].(map[string]interface{}); ok {
				schema.Properties = props
			}
			schema.Required = extractStringSlice(params["required"])
		}

		toolParam := anthropic.ToolParam{
			Name:        name,
			InputSchema: schema,
			Type:        anthropic.ToolTypeCustom,
		}
		if desc := toString(fn["description"]); desc != "" {
			toolParam.Description = anthropic.String(desc)
		}

		result = append(result, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return result
}

func extractStringSlice(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var result []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
