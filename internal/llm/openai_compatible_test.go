package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatibleCompleteWithRequest(t *testing.T) {
	var captured openAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"finish_reason": "tool_calls",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": "working on it",
						"tool_calls": []map[string]interface{}{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]interface{}{
									"name":      "create_task",
									"arguments": map[string]interface{}{"title": "buy milk"},
								},
							},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("test-key", server.URL, "test-model")
	require.NoError(t, err)

	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		SystemPrompt: "you manage tasks",
		Messages: []*Message{
			{Role: "user", Content: "add buy milk"},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "you manage tasks", captured.Messages[0].Content)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.7, *captured.Temperature, 0.001)
	assert.Equal(t, 256, captured.MaxTokens)

	assert.Equal(t, "working on it", resp.Content)
	assert.Equal(t, "tool_calls", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	fn := resp.ToolCalls[0]["function"].(map[string]interface{})
	assert.Equal(t, "create_task", fn["name"])
	// object-form arguments are flattened to a JSON string
	assert.JSONEq(t, `{"title":"buy milk"}`, fn["arguments"].(string))
}

func TestOpenAICompatibleToolMessagesRoundTrip(t *testing.T) {
	var captured openAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"finish_reason": "stop",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": "done",
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("", server.URL, "test-model")
	require.NoError(t, err)

	_, err = client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{
			{Role: "user", Content: "mark task 3 done"},
			{
				Role: "assistant",
				ToolCalls: []map[string]interface{}{
					{
						"id":   "call_1",
						"type": "function",
						"function": map[string]interface{}{
							"name":      "update_task",
							"arguments": `{"task_id":3,"status":"done"}`,
						},
					},
				},
			},
			{Role: "tool", Content: `{"success":true}`, ToolID: "call_1", ToolName: "update_task"},
		},
	})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	require.Len(t, captured.Messages[1].ToolCalls, 1)
	assert.Equal(t, "tool", captured.Messages[2].Role)
	assert.Equal(t, "call_1", captured.Messages[2].ToolCallID)
	assert.Equal(t, "update_task", captured.Messages[2].Name)
}

func TestOpenAICompatibleErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("key", server.URL, "test-model")
	require.NoError(t, err)

	_, err = client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestExtractOpenAIText(t *testing.T) {
	assert.Equal(t, "plain", extractOpenAIText("plain"))
	assert.Equal(t, "", extractOpenAIText(nil))
	assert.Equal(t, "ab", extractOpenAIText([]interface{}{
		map[string]interface{}{"type": "text", "text": "a"},
		map[string]interface{}{"type": "text", "text": "b"},
	}))
}

func TestNormalizeToolCallIDs(t *testing.T) {
	calls := []map[string]interface{}{
		{"function": map[string]interface{}{"name": "list_tasks"}},
		{"id": "call_abc", "function": map[string]interface{}{"name": "create_task"}},
		{},
	}

	normalized := NormalizeToolCallIDs(calls)

	assert.Equal(t, "call_list_tasks_1", normalized[0]["id"])
	assert.Equal(t, "call_abc", normalized[1]["id"])
	assert.Equal(t, "call_abc", normalized[1]["call_id"])
	assert.Equal(t, "call_3", normalized[2]["id"])
}
