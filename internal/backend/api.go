package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
)

const (
	defaultAPIModel  = "claude-sonnet-4-20250514"
	apiMaxRetries    = 3
	apiInitialBackoff = 1 * time.Second
	apiMaxTokens     = 4096
)

// ErrAPIKeyRequired is returned when no API key is available.
var ErrAPIKeyRequired = errors.New("backend: ANTHROPIC_API_KEY required for the api backend")

// APIBackend calls the Anthropic API directly instead of spawning the
// claude CLI subprocess. Its retry/backoff loop is ported line-for-line
// in structure from the teacher's internal/compact.HaikuClient, which is
// the only place in the pack that calls anthropic-sdk-go with retries.
type APIBackend struct {
	client         anthropic.Client
	maxRetries     int
	initialBackoff time.Duration
}

// NewAPIBackend builds an APIBackend. The ANTHROPIC_API_KEY environment
// variable takes precedence over an explicitly supplied key.
func NewAPIBackend(apiKey string) (*APIBackend, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	return &APIBackend{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxRetries:     apiMaxRetries,
		initialBackoff: apiInitialBackoff,
	}, nil
}

func (b *APIBackend) Kind() Kind { return KindAPI }

func (b *APIBackend) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	model := inv.Model
	if model == "" {
		model = defaultAPIModel
	}

	requestID := uuid.NewString()
	text, tokensIn, tokensOut, timedOut, fallbackWarn, err := b.callWithRetry(ctx, anthropic.Model(model), string(inv.Prompt))
	if timedOut {
		return &Result{
			TimedOut:  true,
			RequestID: requestID,
			Warnings:  []string{"api invocation timed out"},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backend: api invoke: %w", err)
	}

	result := &Result{
		ExitCode:      0,
		AssembledText: text,
		TokensIn:      tokensIn,
		TokensOut:     tokensOut,
		RunnerMode:    "api",
		RequestID:     requestID,
	}
	if fallbackWarn != "" {
		result.Warnings = append(result.Warnings, fallbackWarn)
	}
	return result, nil
}

func (b *APIBackend) callWithRetry(ctx context.Context, model anthropic.Model, prompt string) (text string, tokensIn, tokensOut int64, timedOut bool, warning string, err error) {
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: apiMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := b.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", 0, 0, true, "", ctx.Err()
			}
		}

		message, callErr := b.client.Messages.New(ctx, params)
		if callErr == nil {
			tokensIn = message.Usage.InputTokens
			tokensOut = message.Usage.OutputTokens
			if len(message.Content) == 0 {
				return "", tokensIn, tokensOut, false, "", fmt.Errorf("unexpected response: no content blocks")
			}
			block := message.Content[0]
			if block.Type != "text" {
				return "", tokensIn, tokensOut, false, "", fmt.Errorf("unexpected response: not a text block (type=%s)", block.Type)
			}
			return block.Text, tokensIn, tokensOut, false, "", nil
		}

		lastErr = callErr
		if ctx.Err() != nil {
			return "", 0, 0, true, "", ctx.Err()
		}
		if !isRetryable(callErr) {
			return "", 0, 0, false, "", fmt.Errorf("non-retryable error: %w", callErr)
		}
	}

	return "", 0, 0, false, "", fmt.Errorf("failed after %d retries: %w", b.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}
