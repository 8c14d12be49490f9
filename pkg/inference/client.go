package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/reachy-voice/internal/httpc"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

type options struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at another OpenAI-compatible server,
// e.g. "http://localhost:11434/v1" for Ollama.
func WithBaseURL(url string) Option { return func(o *options) { o.baseURL = url } }

// WithAPIKey sets the bearer token. Local servers usually need none.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

func WithModel(model string) Option { return func(o *options) { o.model = model } }

// WithMaxTokens caps reply length. Spoken replies should stay short.
func WithMaxTokens(n int) Option { return func(o *options) { o.maxTokens = n } }

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithRetry retries 429 and 5xx answers up to n times, waiting backoff
// multiplied by the attempt number between tries.
func WithRetry(n int, backoff time.Duration) Option {
	return func(o *options) {
		o.retries = n
		o.backoff = backoff
	}
}

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Client talks to /chat/completions.
type Client struct {
	opts   options
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a client. Only the model is mandatory.
func NewClient(opts ...Option) (*Client, error) {
	o := options{
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		maxTokens:   300,
		temperature: 0.7,
		timeout:     30 * time.Second,
		retries:     2,
		backoff:     200 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.model == "" {
		return nil, ErrNoModel
	}
	o.baseURL = strings.TrimSuffix(o.baseURL, "/")

	return &Client{
		opts:   o,
		http:   httpc.NewClient(o.timeout),
		logger: o.logger.With("component", "inference"),
	}, nil
}

type completionBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type completionAnswer struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends req and returns the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (Reply, error) {
	body := completionBody{
		Model:       c.opts.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.opts.maxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = c.opts.temperature
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Reply{}, fmt.Errorf("inference: encode request: %w", err)
	}

	start := time.Now()
	var answer completionAnswer
	if err := c.post(ctx, "/chat/completions", payload, &answer); err != nil {
		return Reply{}, err
	}
	if len(answer.Choices) == 0 {
		return Reply{}, ErrNoChoices
	}

	reply := Reply{
		Text:         answer.Choices[0].Message.Content,
		FinishReason: answer.Choices[0].FinishReason,
		Model:        answer.Model,
		TotalTokens:  answer.Usage.TotalTokens,
		Latency:      time.Since(start),
	}
	c.logger.Debug("completion", "model", reply.Model, "tokens", reply.TotalTokens, "latency", reply.Latency)
	return reply, nil
}

// Close drops idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.opts.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.backoff * time.Duration(attempt)):
			}
			c.logger.Warn("retrying completion", "attempt", attempt, "error", lastErr)
		}

		err := c.once(ctx, path, payload, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if se, ok := err.(*StatusError); ok && !se.Temporary() {
			return err
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inference: decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		se.Message = body.Error.Message
		se.Code = body.Error.Code
	}
	return se
}

var _ Provider = (*Client)(nil)
