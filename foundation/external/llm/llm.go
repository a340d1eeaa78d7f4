// Package llm wraps the OpenAI Responses API for analyzers that require
// structured JSON output conforming to a schema.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	MaxOutputTokens int64
}

// Request describes one structured completion: the instructions and input
// text, plus the JSON schema the model output must conform to.
type Request struct {
	SchemaName        string
	SchemaDescription string
	Schema            map[string]any
	Instructions      string
	Input             string
}

type Client struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

func New(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)

	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2500
	}

	return &Client{
		client:    &client,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Complete runs one schema-constrained completion and returns the raw model
// output text. Callers decode it with Decode.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        req.SchemaName,
			Schema:      req.Schema,
			Strict:      openai.Bool(true),
			Description: openai.String(req.SchemaDescription),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxTokens),
		Instructions:    openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := c.callWithRetry(ctx, params)
	if err != nil {
		return "", err
	}

	return resp.OutputText(), nil
}

// callWithRetry retries transient rate-limit and server errors with short
// waits. Callers run under per-task deadlines.
func (c *Client) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}
	serverErrorWaitTimes := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := c.client.Responses.New(ctx, params)
		if err != nil {
			var wait time.Duration
			switch {
			case isRateLimitError(err):
				wait = rateLimitWaitTimes[attempt]
			case isServerError(err):
				wait = serverErrorWaitTimes[attempt]
			default:
				return nil, err
			}

			if attempt < maxRetries-1 {
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, err
		}
		return resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts due to provider issues", maxRetries)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// Decode unmarshals JSON from a model response, with a small amount of
// robustness for cases where the model wraps the JSON in extra text or
// returns leading/trailing whitespace.
func Decode(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	// Fast path: valid JSON as-is.
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	// Fallback: attempt to extract the first top-level JSON object.
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}

	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}
