package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/taskpilot-ai/taskpilot/internal/logger"
)

const maxCompletionAttempts = 3

// RetryingClient wraps another Client and retries transient failures with
// exponential backoff. Context cancellation and client-side errors (bad
// requests, invalid keys) are not retried.
type RetryingClient struct {
	inner Client
}

// NewRetryingClient wraps client with retry behaviour
func NewRetryingClient(client Client) *RetryingClient {
	return &RetryingClient{inner: client}
}

func (c *RetryingClient) GetModelName() string {
	return c.inner.GetModelName()
}

func (c *RetryingClient) Complete(ctx context.Context, prompt string) (string, error) {
	var result string
	err := c.retry(ctx, func() error {
		var err error
		result, err = c.inner.Complete(ctx, prompt)
		return err
	})
	return result, err
}

func (c *RetryingClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var result *CompletionResponse
	err := c.retry(ctx, func() error {
		var err error
		result, err = c.inner.CompleteWithRequest(ctx, req)
		return err
	})
	return result, err
}

func (c *RetryingClient) retry(ctx context.Context, operation func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(5*time.Second),
		), maxCompletionAttempts-1), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("Completion attempt %d/%d failed: %v", attempt, maxCompletionAttempts, err)
		return err
	}, policy)
}

// isRetryable reports whether the error looks like a transient provider or
// network failure rather than a malformed request.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"status 400", "status 401", "status 403", "status 404", "invalid"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}
