package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/consts"
	"github.com/taskpilot-ai/taskpilot/internal/llm"
	"github.com/taskpilot-ai/taskpilot/internal/logger"
	"github.com/taskpilot-ai/taskpilot/internal/session"
	"github.com/taskpilot-ai/taskpilot/internal/task"
)

const systemPromptTemplate = `You are TaskPilot, an assistant that manages the user's task list through the provided tools.

Guidelines:
- Use the tools for every read or change of the task list; never invent task data.
- Only confirm an action after the tool reported success. If a tool reports a failure, explain it and ask how to proceed.
- When a task reference is ambiguous, ask which task the user meant instead of guessing.
- Extract titles, priorities, statuses and due dates from the user's own words.
- For plain conversation that needs no task operation, just answer.
- Keep replies short and conversational.`

const fallbackReply = "I wasn't able to complete that request. Could you rephrase it or break it into smaller steps?"

// Options bundles the orchestrator's tuning knobs
type Options struct {
	Temperature   float64
	MaxTokens     int
	MaxIterations int
	LLMTimeout    time.Duration
	ToolTimeout   time.Duration
}

func (o *Options) withDefaults() Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	if opts.Temperature == 0 {
		opts.Temperature = consts.DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = consts.DefaultMaxTokens
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = consts.DefaultMaxToolIterations
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = consts.Timeout60Seconds
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = consts.Timeout10Seconds
	}
	return opts
}

// Reply is the user-facing outcome of one turn. Tasks holds the tasks
// touched or returned by this turn's tool calls, a change signal for the UI.
type Reply struct {
	Text      string       `json:"response"`
	SessionID string       `json:"session_id"`
	Tasks     []*task.Task `json:"tasks,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Orchestrator runs the dialogue loop: it feeds the utterance and bounded
// history to the model, executes requested tool calls, folds their results
// back into the reasoning context, and terminates in a user-facing reply.
type Orchestrator struct {
	client   llm.Client
	registry *Registry
	sessions *session.Manager
	opts     Options
}

// New creates an orchestrator
func New(client llm.Client, registry *Registry, sessions *session.Manager, opts *Options) *Orchestrator {
	return &Orchestrator{
		client:   client,
		registry: registry,
		sessions: sessions,
		opts:     opts.withDefaults(),
	}
}

// HandleMessage processes one user utterance and returns the reply. An empty
// sessionID starts a new session; the minted id is returned for reuse.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	s := o.sessions.GetOrCreate(sessionID)
	s.LockTurn()
	defer s.UnlockTurn()

	working := append(s.History(), &llm.Message{Role: "user", Content: message})
	touched := newTaskSet()

	replyText := ""
	completed := false
	for iteration := 0; iteration < o.opts.MaxIterations; iteration++ {
		resp, err := o.complete(ctx, working)
		if err != nil {
			return nil, fmt.Errorf("reasoning step failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			replyText = strings.TrimSpace(resp.Content)
			completed = true
			break
		}

		working = append(working, &llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, toolCall := range resp.ToolCalls {
			callID, name, args := parseToolCall(toolCall)
			result := o.executeTool(WithLastTask(ctx, s.LastTaskID()), name, args)

			if result.Success {
				touched.add(result.Tasks...)
				o.rememberLastTask(s, name, result)
			}

			working = append(working, &llm.Message{
				Role:     "tool",
				Content:  result.JSON(),
				ToolID:   callID,
				ToolName: name,
			})
		}
	}

	if !completed {
		logger.Warn("Session %s hit the tool iteration limit (%d)", s.ID, o.opts.MaxIterations)
		replyText = fallbackReply
	}
	if replyText == "" {
		replyText = fallbackReply
	}

	s.Append(
		&llm.Message{Role: "user", Content: message},
		&llm.Message{Role: "assistant", Content: replyText},
	)

	return &Reply{
		Text:      replyText,
		SessionID: s.ID,
		Tasks:     touched.ordered(),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) complete(ctx context.Context, messages []*llm.Message) (*llm.CompletionResponse, error) {
	llmCtx, cancel := context.WithTimeout(ctx, o.opts.LLMTimeout)
	defer cancel()

	return o.client.CompleteWithRequest(llmCtx, &llm.CompletionRequest{
		Messages:     messages,
		Tools:        o.registry.ToJSONSchema(),
		Temperature:  o.opts.Temperature,
		MaxTokens:    o.opts.MaxTokens,
		SystemPrompt: systemPromptTemplate,
	})
}

// executeTool dispatches one tool call. Every failure mode, including an
// unknown tool name or a timeout, becomes a structured observation so the
// reasoning loop can recover instead of the turn crashing.
func (o *Orchestrator) executeTool(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	tool, err := o.registry.Get(name)
	if err != nil {
		logger.Warn("Model requested unknown tool %q", name)
		return failureResult("unknown tool %q; available tools are %s",
			name, strings.Join(o.registry.Names(), ", "))
	}

	// detach from the transport context so a closed channel mid-turn does
	// not abort a store mutation halfway through
	toolCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.ToolTimeout)
	defer cancel()

	logger.Debug("Executing tool %s with args %v", name, args)
	result, err := tool.Execute(toolCtx, args)
	if err != nil {
		logger.Error("Tool %s failed: %v", name, err)
		return failureResult("tool %s failed: %v", name, err)
	}
	return result
}

// rememberLastTask keeps a weak reference to the most recently mutated task
// so follow-up turns can refer back to it.
func (o *Orchestrator) rememberLastTask(s *session.Session, toolName string, result *ToolResult) {
	switch toolName {
	case "create_task", "update_task":
		if len(result.Tasks) == 1 {
			s.SetLastTaskID(result.Tasks[0].ID)
		}
	case "delete_task":
		if len(result.Tasks) == 1 && result.Tasks[0].ID == s.LastTaskID() {
			s.SetLastTaskID(0)
		}
	}
}

func parseToolCall(toolCall map[string]interface{}) (callID, name string, args map[string]interface{}) {
	callID, _ = toolCall["id"].(string)

	fn, _ := toolCall["function"].(map[string]interface{})
	if fn == nil {
		return callID, "", map[string]interface{}{}
	}
	name, _ = fn["name"].(string)

	switch raw := fn["arguments"].(type) {
	case map[string]interface{}:
		args = raw
	case string:
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			logger.Warn("Tool call %s has malformed arguments: %v", name, err)
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return callID, name, args
}

// taskSet accumulates touched tasks, deduplicated by id, keeping the most
// recent version of each and the order in which they were first seen.
type taskSet struct {
	order []int64
	byID  map[int64]*task.Task
}

func newTaskSet() *taskSet {
	return &taskSet{byID: make(map[int64]*task.Task)}
}

func (s *taskSet) add(tasks ...*task.Task) {
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if _, seen := s.byID[t.ID]; !seen {
			s.order = append(s.order, t.ID)
		}
		s.byID[t.ID] = t
	}
}

func (s *taskSet) ordered() []*task.Task {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]*task.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
