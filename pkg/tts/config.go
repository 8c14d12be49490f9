package tts

import (
	"log/slog"
	"time"
)

// Config holds provider settings. Use the With options to change them.
type Config struct {
	APIKey  string
	BaseURL string
	Voice   string
	Model   string

	// SampleRate requested for linear16 output.
	SampleRate int

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// Option setters.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }
func WithVoice(voice string) Option { return func(c *Config) { c.Voice = voice } }
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }
func WithSampleRate(rate int) Option { return func(c *Config) { c.SampleRate = rate } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry sets how often retryable failures are retried and the base
// delay, which grows linearly per attempt.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// DefaultConfig returns shared defaults. Providers fill in their own voice.
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 24000,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
