package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/taskpilot-ai/taskpilot/internal/consts"
)

// OpenAICompatibleClient implements Client for OpenAI-style chat completion
// APIs. It speaks the same JSON payloads as OpenAI's /chat/completions
// endpoint and works against OpenAI itself as well as Groq, LocalAI, LM
// Studio, Ollama and similar servers. An empty API key sends requests
// without an Authorization header, which local servers accept.
type OpenAICompatibleClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompatibleClient constructs a client for an OpenAI-compatible API.
// baseURL must point to the API root (e.g. https://api.openai.com/v1).
func NewOpenAICompatibleClient(apiKey, baseURL, modelName string) (*OpenAICompatibleClient, error) {
	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, fmt.Errorf("model name is required for OpenAI-compatible provider")
	}

	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("base URL is required for OpenAI-compatible provider")
	}

	return &OpenAICompatibleClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: trimmedBase,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *OpenAICompatibleClient) GetModelName() string {
	return c.model
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, prompt string) (string, error) {
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

func (c *OpenAICompatibleClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("openai-compatible completion request cannot be nil")
	}

	payload, err := buildOpenAIChatRequest(req, c.model)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai-compatible completion failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai-compatible completion failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("openai-compatible completion failed: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return &CompletionResponse{StopReason: "stop"}, nil
	}

	first := chatResp.Choices[0]
	stopReason := first.FinishReason
	if strings.TrimSpace(stopReason) == "" {
		stopReason = "stop"
	}

	return &CompletionResponse{
		Content:    extractOpenAIText(first.Message.Content),
		ToolCalls:  NormalizeToolCallIDs(copyOpenAIToolCalls(first.Message.ToolCalls)),
		StopReason: stopReason,
	}, nil
}

// buildOpenAIChatRequest converts a provider-neutral request into the OpenAI
// chat completion payload, injecting the system prompt as the first message.
func buildOpenAIChatRequest(req *CompletionRequest, model string) (*openAIChatRequest, error) {
	messages := make([]openAIChatMessage, 0, len(req.Messages)+1)

	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: sys})
	}

	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}

		switch normalizeRole(msg.Role) {
		case "tool":
			messages = append(messages, openAIChatMessage{
				Role:       "tool",
				Content:    msg.Content,
				ToolCallID: msg.ToolID,
				Name:       msg.ToolName,
			})
		case "assistant":
			messages = append(messages, openAIChatMessage{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: msg.ToolCalls,
			})
		default:
			messages = append(messages, openAIChatMessage{
				Role:    normalizeRole(msg.Role),
				Content: msg.Content,
			})
		}
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("chat request requires at least one message")
	}

	payload := &openAIChatRequest{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		payload.Tools = req.Tools
	}

	return payload, nil
}

// copyOpenAIToolCalls deep-copies tool calls and forces the arguments field
// into string form, which some compatible servers return as raw JSON objects.
func copyOpenAIToolCalls(toolCalls []map[string]interface{}) []map[string]interface{} {
	if len(toolCalls) == 0 {
		return nil
	}

	result := make([]map[string]interface{}, 0, len(toolCalls))
	for _, tc := range toolCalls {
		if tc == nil {
			continue
		}

		out := make(map[string]interface{}, len(tc))
		for k, v := range tc {
			if k != "function" {
				out[k] = v
				continue
			}

			fn, _ := v.(map[string]interface{})
			if fn == nil {
				continue
			}
			fnCopy := make(map[string]interface{}, len(fn))
			for fk, fv := range fn {
				if fk == "arguments" {
					fnCopy[fk] = stringifyArguments(fv)
				} else {
					fnCopy[fk] = fv
				}
			}
			out[k] = fnCopy
		}
		result = append(result, out)
	}
	return result
}

func stringifyArguments(raw interface{}) string {
	switch value := raw.(type) {
	case nil:
		return "{}"
	case string:
		if strings.TrimSpace(value) == "" {
			return "{}"
		}
		return value
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "{}"
		}
		return string(data)
	}
}

func extractOpenAIText(content interface{}) string {
	switch value := content.(type) {
	case nil:
		return ""
	case string:
		return value
	case []interface{}:
		var sb strings.Builder
		for _, part := range value {
			sb.WriteString(extractOpenAIText(part))
		}
		return sb.String()
	case map[string]interface{}:
		if text, ok := value["text"].(string); ok {
			return text
		}
		if inner, ok := value["content"]; ok {
			return extractOpenAIText(inner)
		}
	}
	return ""
}

type openAIChatRequest struct {
	Model       string                   `json:"model"`
	Messages    []openAIChatMessage      `json:"messages"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	Temperature *float64                 `json:"temperature,omitempty"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role       string                   `json:"role"`
	Content    interface{}              `json:"content"`
	Name       string                   `json:"name,omitempty"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Created int64              `json:"created"`
	Choices []openAIChatChoice `json:"choices"`
}

type openAIChatChoice struct {
	Index        int                `json:"index"`
	FinishReason string             `json:"finish_reason"`
	Message      *openAIChatMessage `json:"message"`
}
