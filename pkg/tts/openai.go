package tts

import (
	"context"
	"net/http"
	"time"
)

const (
	openAITTSURL    = "https://api.openai.com/v1/audio/speech"
	openAIModelsURL = "https://api.openai.com/v1/models"
	providerOpenAI  = "openai"

	// OpenAI PCM output is fixed at 24 kHz.
	openAIPCMRate = 24000
)

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAI synthesizes speech with the OpenAI audio API. It serves as the
// fallback behind Deepgram.
type OpenAI struct {
	httpProvider
	baseURL string
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI provider returning 24 kHz PCM16.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = "tts-1"
	cfg.Voice = VoiceShimmer
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SampleRate = openAIPCMRate
	base := cfg.BaseURL
	if base == "" {
		base = openAITTSURL
	}
	return &OpenAI{
		httpProvider: newHTTPProvider(providerOpenAI, cfg),
		baseURL:      base,
	}, nil
}

// Synthesize renders text as mono PCM16 at 24 kHz.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	audio, err := o.post(ctx, o.baseURL, o.header(), map[string]string{
		"model":           o.cfg.Model,
		"voice":           o.cfg.Voice,
		"input":           text,
		"response_format": "pcm",
	})
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	o.logger.Debug("synthesized audio", "chars", len(text), "bytes", len(audio), "latency_ms", latency)
	return &AudioResult{
		Audio:     audio,
		Format:    PCM16(openAIPCMRate),
		Duration:  pcmDuration(len(audio), openAIPCMRate),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health lists models to verify the key.
func (o *OpenAI) Health(ctx context.Context) error {
	return o.get(ctx, openAIModelsURL, o.header())
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OpenAI) header() http.Header {
	return http.Header{"Authorization": {"Bearer " + o.cfg.APIKey}}
}
