package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot-ai/taskpilot/internal/llm"
	"github.com/taskpilot-ai/taskpilot/internal/session"
	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// scriptedClient replays a fixed sequence of completions and records every
// request it receives.
type scriptedClient struct {
	responses []*llm.CompletionResponse
	requests  []*llm.CompletionRequest
}

func (c *scriptedClient) CompleteWithRequest(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return &llm.CompletionResponse{Content: "done", StopReason: "stop"}, nil
	}
	next := c.responses[0]
	c.responses = c.responses[1:]
	return next, nil
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &llm.CompletionRequest{})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *scriptedClient) GetModelName() string { return "scripted" }

func textResponse(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: text, StopReason: "stop"}
}

func toolResponse(name string, args map[string]interface{}) *llm.CompletionResponse {
	arguments, _ := json.Marshal(args)
	return &llm.CompletionResponse{
		StopReason: "tool_calls",
		ToolCalls: []map[string]interface{}{
			{
				"id":   "call_1",
				"type": "function",
				"function": map[string]interface{}{
					"name":      name,
					"arguments": string(arguments),
				},
			},
		},
	}
}

func newTestOrchestrator(store task.Store, client llm.Client) (*Orchestrator, *session.Manager) {
	sessions := session.NewManager(20, 0)
	return New(client, NewTaskRegistry(store), sessions, nil), sessions
}

func TestOrchestratorCreateTaskScenario(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("create_task", map[string]interface{}{
			"title":    "review code",
			"priority": "high",
		}),
		textResponse(`I created "review code" with high priority.`),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(context.Background(), "", "Create a high priority task to review code")
	require.NoError(t, err)

	assert.NotEmpty(t, reply.SessionID)
	assert.Contains(t, reply.Text, "review code")
	require.Len(t, reply.Tasks, 1)
	assert.Equal(t, task.StatusTodo, reply.Tasks[0].Status)
	assert.Equal(t, task.PriorityHigh, reply.Tasks[0].Priority)

	// the tool result was fed back before the final reply
	require.Len(t, client.requests, 2)
	last := client.requests[1].Messages
	require.NotEmpty(t, last)
	assert.Equal(t, "tool", last[len(last)-1].Role)
	assert.Contains(t, last[len(last)-1].Content, `"success":true`)
}

func TestOrchestratorUpdateByTitleScenario(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Review code", "Buy groceries")

	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("update_task", map[string]interface{}{
			"reference": "code review",
			"status":    "done",
		}),
		textResponse("Marked it as done."),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(context.Background(), "", "Mark the code review task as done")
	require.NoError(t, err)

	require.Len(t, reply.Tasks, 1)
	assert.Equal(t, task.StatusDone, reply.Tasks[0].Status)
	assert.Equal(t, "Review code", reply.Tasks[0].Title)
}

func TestOrchestratorFilterScenario(t *testing.T) {
	store := task.NewMemoryStore()
	ctx := context.Background()
	high1, err := store.Create(ctx, task.CreateFields{Title: "a", Priority: task.PriorityHigh})
	require.NoError(t, err)
	_, err = store.Create(ctx, task.CreateFields{Title: "b", Priority: task.PriorityMedium})
	require.NoError(t, err)
	high2, err := store.Create(ctx, task.CreateFields{Title: "c", Priority: task.PriorityHigh})
	require.NoError(t, err)

	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("filter_tasks", map[string]interface{}{"priority": "high"}),
		textResponse("You have two high priority tasks."),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(ctx, "", "Show me all high priority tasks")
	require.NoError(t, err)

	require.Len(t, reply.Tasks, 2)
	assert.Equal(t, high1.ID, reply.Tasks[0].ID)
	assert.Equal(t, high2.ID, reply.Tasks[1].ID)
}

func TestOrchestratorAmbiguousReferenceAsksForClarification(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Review code", "Review code changes")

	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("update_task", map[string]interface{}{
			"reference": "review code",
			"status":    "done",
		}),
		textResponse(`Did you mean "Review code" or "Review code changes"?`),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(context.Background(), "", "Mark review code as done")
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "Did you mean")
	assert.Empty(t, reply.Tasks)

	tasks, err := store.List(context.Background())
	require.NoError(t, err)
	for _, tk := range tasks {
		assert.Equal(t, task.StatusTodo, tk.Status)
	}

	// the failure observation reached the model
	last := client.requests[1].Messages
	assert.Contains(t, last[len(last)-1].Content, "ambiguous")
}

func TestOrchestratorPlainConversationSkipsTools(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		textResponse("Hello! Ask me about your tasks."),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(context.Background(), "", "hi there")
	require.NoError(t, err)

	assert.Equal(t, "Hello! Ask me about your tasks.", reply.Text)
	assert.Empty(t, reply.Tasks)
}

func TestOrchestratorIterationLimit(t *testing.T) {
	store := task.NewMemoryStore()
	// the model keeps asking for tools and never produces a reply
	var responses []*llm.CompletionResponse
	for i := 0; i < 20; i++ {
		responses = append(responses, toolResponse("list_tasks", map[string]interface{}{}))
	}
	client := &scriptedClient{responses: responses}

	sessions := session.NewManager(20, 0)
	defer sessions.Close()
	o := New(client, NewTaskRegistry(store), sessions, &Options{MaxIterations: 3})

	reply, err := o.HandleMessage(context.Background(), "", "do something forever")
	require.NoError(t, err)

	assert.Equal(t, fallbackReply, reply.Text)
	assert.Len(t, client.requests, 3)
}

func TestOrchestratorUnknownToolBecomesObservation(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("drop_database", map[string]interface{}{}),
		textResponse("Sorry, I cannot do that."),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(context.Background(), "", "drop the database")
	require.NoError(t, err)

	assert.Equal(t, "Sorry, I cannot do that.", reply.Text)
	last := client.requests[1].Messages
	assert.Contains(t, last[len(last)-1].Content, "unknown tool")
}

func TestOrchestratorSessionContinuity(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		textResponse("first reply"),
		textResponse("second reply"),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	first, err := o.HandleMessage(context.Background(), "", "first message")
	require.NoError(t, err)

	second, err := o.HandleMessage(context.Background(), first.SessionID, "second message")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	// the second request carries the first exchange as context
	messages := client.requests[1].Messages
	require.Len(t, messages, 3)
	assert.Equal(t, "first message", messages[0].Content)
	assert.Equal(t, "first reply", messages[1].Content)
	assert.Equal(t, "second message", messages[2].Content)
}

func TestOrchestratorSendsToolCatalogue(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{textResponse("ok")}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	_, err := o.HandleMessage(context.Background(), "", "hello")
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	assert.Len(t, client.requests[0].Tools, 5)
	assert.NotEmpty(t, client.requests[0].SystemPrompt)
}

func TestOrchestratorRejectsEmptyMessage(t *testing.T) {
	store := task.NewMemoryStore()
	o, sessions := newTestOrchestrator(store, &scriptedClient{})
	defer sessions.Close()

	_, err := o.HandleMessage(context.Background(), "", "   ")
	assert.Error(t, err)
}

func TestOrchestratorFollowUpReferenceResolvesLastTask(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("create_task", map[string]interface{}{"title": "Buy milk"}),
		textResponse("Created it."),
		toolResponse("update_task", map[string]interface{}{
			"reference": "it",
			"status":    "done",
		}),
		textResponse("Marked it done."),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	first, err := o.HandleMessage(context.Background(), "", "add buy milk")
	require.NoError(t, err)
	require.Len(t, first.Tasks, 1)

	second, err := o.HandleMessage(context.Background(), first.SessionID, "mark it done")
	require.NoError(t, err)

	require.Len(t, second.Tasks, 1)
	assert.Equal(t, first.Tasks[0].ID, second.Tasks[0].ID)
	assert.Equal(t, task.StatusDone, second.Tasks[0].Status)

	stored, err := store.Get(context.Background(), first.Tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, stored.Status)
}

func TestOrchestratorRemembersLastTask(t *testing.T) {
	store := task.NewMemoryStore()
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolResponse("create_task", map[string]interface{}{"title": "new thing"}),
		textResponse("created"),
	}}
	o, sessions := newTestOrchestrator(store, client)
	defer sessions.Close()

	reply, err := o.HandleMessage(context.Background(), "", "add new thing")
	require.NoError(t, err)

	s := sessions.Get(reply.SessionID)
	require.NotNil(t, s)
	assert.Equal(t, reply.Tasks[0].ID, s.LastTaskID())
}
