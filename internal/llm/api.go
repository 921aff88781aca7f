package llm

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
)

const (
	apiModel = "claude-3-5-haiku-20241022"
	// Rerank sits inside a search request, so the retry budget is tight
	// compared to offline summarization work.
	apiMaxRetries     = 2
	apiInitialBackoff = 500 * time.Millisecond
)

// ErrAPIKeyRequired is returned when an API key is needed but not provided.
var ErrAPIKeyRequired = errors.New("API key required")

// APIReranker scores candidates through the Anthropic API instead of a
// local CLI. It answers the same prompt and speaks the same array format,
// so parsing is shared with CLIReranker.
type APIReranker struct {
	client         anthropic.Client
	model          anthropic.Model
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
}

// NewAPIReranker creates the API-backed reranker. Env var ANTHROPIC_API_KEY
// takes precedence over the explicit apiKey.
func NewAPIReranker(apiKey string, timeout time.Duration) (*APIReranker, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable", ErrAPIKeyRequired)
	}

	return &APIReranker{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          apiModel,
		timeout:        timeout,
		maxRetries:     apiMaxRetries,
		initialBackoff: apiInitialBackoff,
	}, nil
}

// Rerank implements Reranker.
func (r *APIReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Score, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.callWithRetry(ctx, rerankPrompt(query, candidates))
	if err != nil {
		return nil, err
	}
	return parseScores(text)
}

func (r *APIReranker) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := r.client.Messages.New(ctx, params)

		if err == nil {
			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", r.maxRetries+1, lastErr)
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
		statusCode := apiErr.StatusCode
		if statusCode == 429 || statusCode >= 500 {
			return true
		}
		return false
	}

	return false
}
