package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint. All
// debate traffic routes through one proxy base URL; the proxy dispatches to
// the right provider based on the model id and runs its own security scan,
// whose rejections surface here as security-blocked failures.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewOpenAIClient creates a client for the given proxy base URL.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name identifies the adapter in logs.
func (c *OpenAIClient) Name() string { return "openai-compatible" }

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message     string  `json:"message"`
	Type        string  `json:"type"`
	ThreatLevel string  `json:"threat_level"`
	ThreatScore float64 `json:"threat_score"`
}

// StreamComplete streams token deltas from the chat completions endpoint.
func (c *OpenAIClient) StreamComplete(ctx context.Context, req Request) iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		body := chatRequest{
			Model:         req.Params.Model,
			Messages:      req.Messages,
			Stream:        true,
			StreamOptions: &streamOptions{IncludeUsage: true},
			Temperature:   req.Params.Temperature,
			MaxTokens:     req.Params.MaxTokens,
		}
		resp, err := c.post(ctx, body, req.Meta)
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			yield(nil, c.classifyResponse(resp))
			return
		}

		var tokens int
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}

			var chunk chatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Warn("skipping malformed stream chunk", "error", err, "model", req.Params.Model)
				continue
			}
			if chunk.Error != nil {
				yield(nil, classifyAPIError(0, chunk.Error))
				return
			}
			if chunk.Usage != nil {
				tokens = chunk.Usage.TotalTokens
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !yield(&Chunk{Delta: chunk.Choices[0].Delta.Content}, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, c.classifyTransport(ctx, err))
			return
		}

		yield(&Chunk{Done: true, Tokens: tokens}, nil)
	}
}

// Complete issues a single non-streaming call. Used by the judge.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	body := chatRequest{
		Model:       req.Params.Model,
		Messages:    req.Messages,
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
	}
	resp, err := c.post(ctx, body, req.Meta)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, c.classifyResponse(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransport(ctx, err)
	}
	var parsed chatChunk
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, FatalFailure("malformed completion response: %v", err)
	}
	if parsed.Error != nil {
		return nil, classifyAPIError(0, parsed.Error)
	}
	if len(parsed.Choices) == 0 {
		return nil, FatalFailure("completion response has no choices")
	}
	out := &Completion{Content: parsed.Choices[0].Message.Content}
	if parsed.Usage != nil {
		out.Tokens = parsed.Usage.TotalTokens
	}
	return out, nil
}

func (c *OpenAIClient) post(ctx context.Context, body chatRequest, meta CallMeta) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, FatalFailure("encode request: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, FatalFailure("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if metaJSON, err := json.Marshal(meta); err == nil {
		httpReq.Header.Set("X-Prysm-Metadata", string(metaJSON))
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransport(ctx, err)
	}
	return resp, nil
}

// classifyTransport maps connection-level errors. Caller cancellation is not
// a backend failure and passes through as the context error.
func (c *OpenAIClient) classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return TransientFailure("transport: %v", err)
}

func (c *OpenAIClient) classifyResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var parsed struct {
		Error *apiError `json:"error"`
	}
	_ = json.Unmarshal(raw, &parsed)
	if parsed.Error != nil {
		return classifyAPIError(resp.StatusCode, parsed.Error)
	}
	return classifyStatus(resp.StatusCode, fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
}

func classifyAPIError(status int, apiErr *apiError) *Failure {
	if apiErr.Type == "security_blocked" || apiErr.ThreatLevel != "" {
		return SecurityFailure(apiErr.Message, apiErr.ThreatLevel, apiErr.ThreatScore)
	}
	return classifyStatus(status, apiErr.Message)
}

func classifyStatus(status int, message string) *Failure {
	switch {
	case status == http.StatusUnavailableForLegalReasons:
		return SecurityFailure(message, "", 0)
	case status == 0, // provider error mid-stream, no HTTP status to go on
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return TransientFailure("%s", message)
	default:
		return FatalFailure("%s", message)
	}
}
