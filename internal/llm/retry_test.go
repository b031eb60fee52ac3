package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (c *flakyClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.err
	}
	return &CompletionResponse{Content: "ok", StopReason: "stop"}, nil
}

func (c *flakyClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *flakyClient) GetModelName() string { return "flaky" }

func TestRetryingClientRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("connection reset")}
	client := NewRetryingClient(inner)

	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingClientGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("connection reset")}
	client := NewRetryingClient(inner)

	_, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, maxCompletionAttempts, inner.calls)
}

func TestRetryingClientDoesNotRetryWrappedCancellation(t *testing.T) {
	inner := &flakyClient{failures: 10, err: fmt.Errorf("anthropic completion failed: %w", context.Canceled)}
	client := NewRetryingClient(inner)

	_, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingClientDoesNotRetryClientErrors(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("completion failed: status 401: bad key")}
	client := NewRetryingClient(inner)

	_, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
