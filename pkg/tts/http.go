package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/reachy-voice/internal/httpc"
)

// httpProvider holds the request plumbing shared by the HTTP providers.
type httpProvider struct {
	name   string
	cfg    *Config
	client *http.Client
	logger *slog.Logger
}

func newHTTPProvider(name string, cfg *Config) httpProvider {
	return httpProvider{
		name:   name,
		cfg:    cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "tts."+name),
	}
}

// post sends payload as JSON and returns the response body, retrying rate
// limits and server errors.
func (h httpProvider) post(ctx context.Context, url string, header http.Header, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(h.name, fmt.Errorf("marshal payload: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(h.name, fmt.Errorf("create request: %w", err))
		}
		req.Header = header.Clone()
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = WrapError(h.name, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			apiErr := h.apiError(resp.StatusCode, data)
			if !apiErr.IsRetryable() {
				return nil, apiErr
			}
			h.logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
			lastErr = apiErr
			continue
		}
		if readErr != nil {
			return nil, WrapError(h.name, fmt.Errorf("read response: %w", readErr))
		}
		return data, nil
	}
	return nil, lastErr
}

func (h httpProvider) get(ctx context.Context, url string, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(h.name, err)
	}
	req.Header = header.Clone()

	resp, err := h.client.Do(req)
	if err != nil {
		return WrapError(h.name, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return h.apiError(resp.StatusCode, data)
	}
	return nil
}

// apiError extracts a message from the common JSON error shapes.
func (h httpProvider) apiError(status int, body []byte) *APIError {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		ErrMsg  string          `json:"err_msg"`
		Message string          `json:"message"`
	}
	msg := string(body)
	if json.Unmarshal(body, &parsed) == nil {
		var nested struct {
			Message string `json:"message"`
		}
		switch {
		case parsed.ErrMsg != "":
			msg = parsed.ErrMsg
		case len(parsed.Error) > 0 && json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "":
			msg = nested.Message
		case parsed.Message != "":
			msg = parsed.Message
		}
	}
	return &APIError{StatusCode: status, Message: msg, Provider: h.name}
}
