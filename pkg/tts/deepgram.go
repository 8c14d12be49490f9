package tts

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	deepgramSpeakURL  = "https://api.deepgram.com/v1/speak"
	deepgramHealthURL = "https://api.deepgram.com/v1/projects"
	providerDeepgram  = "deepgram"

	// VoiceAsteria is a warm, friendly Aura voice.
	VoiceAsteria = "aura-asteria-en"
)

// Deepgram synthesizes speech with Deepgram Aura.
type Deepgram struct {
	httpProvider
	baseURL string
}

var _ Provider = (*Deepgram)(nil)

// NewDeepgram creates an Aura provider returning linear16 audio.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Voice = VoiceAsteria
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Voice == "" {
		cfg.Voice = VoiceAsteria
	}
	base := cfg.BaseURL
	if base == "" {
		base = deepgramSpeakURL
	}
	return &Deepgram{
		httpProvider: newHTTPProvider(providerDeepgram, cfg),
		baseURL:      base,
	}, nil
}

// Synthesize renders text as mono PCM16 at the configured sample rate.
func (d *Deepgram) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, WrapError(providerDeepgram, err)
	}
	q := u.Query()
	q.Set("model", d.cfg.Voice)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("container", "none")
	u.RawQuery = q.Encode()

	audio, err := d.post(ctx, u.String(), d.header(), map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	d.logger.Debug("synthesized audio", "chars", len(text), "bytes", len(audio), "latency_ms", latency, "voice", d.cfg.Voice)
	return &AudioResult{
		Audio:     audio,
		Format:    PCM16(d.cfg.SampleRate),
		Duration:  pcmDuration(len(audio), d.cfg.SampleRate),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health checks that the API key is accepted.
func (d *Deepgram) Health(ctx context.Context) error {
	return d.get(ctx, deepgramHealthURL, d.header())
}

// Close releases idle connections.
func (d *Deepgram) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// Voice returns the configured voice model.
func (d *Deepgram) Voice() string { return d.cfg.Voice }

func (d *Deepgram) header() http.Header {
	return http.Header{"Authorization": {"Token " + d.cfg.APIKey}}
}
