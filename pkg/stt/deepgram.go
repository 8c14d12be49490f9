package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
)

// DefaultEndpoint is Deepgram's live transcription socket.
const DefaultEndpoint = "wss://api.deepgram.com/v1/listen"

// Config configures the Deepgram live client.
type Config struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`

	// SampleRate of the linear16 mono audio passed to SendAudio.
	SampleRate int `yaml:"sample_rate"`

	// UtteranceEndMs is the silence gap that closes an utterance.
	UtteranceEndMs int `yaml:"utterance_end_ms"`

	// KeepAlive interval while the socket is idle.
	KeepAlive time.Duration `yaml:"keep_alive"`
}

// DefaultConfig returns settings for 16 kHz mono speech.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Model:          "nova-2",
		Language:       "en-US",
		SampleRate:     16000,
		UtteranceEndMs: 1000,
		KeepAlive:      5 * time.Second,
	}
}

// Deepgram streams audio to Deepgram's live API over a WebSocket.
type Deepgram struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer
	cbs    *callbacks

	mu        sync.Mutex
	conn      *websocket.Conn
	listening bool
	stopping  bool
	cancel    context.CancelFunc
	done      chan struct{}

	// connMu serializes writes on conn.
	connMu sync.Mutex
}

var _ Transcriber = (*Deepgram)(nil)

// NewDeepgram creates a client. Zero fields in cfg take their defaults.
func NewDeepgram(cfg Config, logger *slog.Logger) *Deepgram {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.UtteranceEndMs == 0 {
		cfg.UtteranceEndMs = def.UtteranceEndMs
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deepgram{
		cfg:    cfg,
		logger: logger.With("component", "stt"),
		dialer: websocket.DefaultDialer,
		cbs:    newCallbacks(),
	}
}

// Configured reports whether an API key is set.
func (d *Deepgram) Configured() bool {
	return d.cfg.APIKey != ""
}

// Listening reports whether the stream is open.
func (d *Deepgram) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

// OnTranscript registers fn for every non-empty transcript.
func (d *Deepgram) OnTranscript(fn TranscriptFunc) func() {
	return d.cbs.onTranscript(fn)
}

// OnError registers fn for stream failures.
func (d *Deepgram) OnError(fn func(error)) func() {
	return d.cbs.onError(fn)
}

// Status returns a snapshot.
func (d *Deepgram) Status() Status {
	return Status{
		Configured:    d.Configured(),
		Listening:     d.Listening(),
		CallbackCount: d.cbs.count(),
	}
}

// Start opens the live stream. It is a no-op when already listening.
func (d *Deepgram) Start(ctx context.Context) error {
	if !d.Configured() {
		return ErrNotConfigured
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listening {
		return nil
	}

	u, err := d.listenURL()
	if err != nil {
		return err
	}
	conn, _, err := d.dialer.DialContext(ctx, u, http.Header{"Authorization": {"Token " + d.cfg.APIKey}})
	if err != nil {
		return fmt.Errorf("stt: connect to deepgram: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.conn = conn
	d.listening = true
	d.stopping = false
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.readLoop(conn, d.done)
	go d.keepAlive(runCtx)

	d.logger.Info("deepgram stream started", "model", d.cfg.Model)
	return nil
}

// Stop asks Deepgram to flush, closes the socket and waits for the reader to
// exit. It is a no-op when not listening.
func (d *Deepgram) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.listening {
		d.mu.Unlock()
		return nil
	}
	d.stopping = true
	conn, cancel, done := d.conn, d.cancel, d.done
	d.mu.Unlock()

	cancel()

	d.connMu.Lock()
	err := conn.WriteJSON(controlMessage{Type: string(api.TypeCloseStreamResponse)})
	d.connMu.Unlock()
	if err != nil {
		d.logger.Debug("close stream message failed", "error", err)
	}

	// Give the server a moment to flush final results before closing.
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}
	_ = conn.Close()
	<-done

	d.mu.Lock()
	d.conn = nil
	d.listening = false
	d.mu.Unlock()

	d.logger.Info("deepgram stream stopped")
	return nil
}

// SendAudio forwards one linear16 frame.
func (d *Deepgram) SendAudio(pcm []byte) error {
	d.mu.Lock()
	conn, ok := d.conn, d.listening && !d.stopping
	d.mu.Unlock()
	if !ok {
		return ErrNotListening
	}

	d.connMu.Lock()
	defer d.connMu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("stt: send audio: %w", err)
	}
	return nil
}

type controlMessage struct {
	Type string `json:"type"`
}

func (d *Deepgram) listenURL() (string, error) {
	u, err := url.Parse(d.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("stt: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("model", d.cfg.Model)
	q.Set("language", d.cfg.Language)
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", strconv.Itoa(d.cfg.UtteranceEndMs))
	q.Set("vad_events", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *Deepgram) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			conn := d.conn
			d.mu.Unlock()
			if conn == nil {
				return
			}
			d.connMu.Lock()
			err := conn.WriteJSON(controlMessage{Type: "KeepAlive"})
			d.connMu.Unlock()
			if err != nil {
				d.logger.Debug("keepalive failed", "error", err)
			}
		}
	}
}

// readLoop delivers transcripts in arrival order until the socket closes.
func (d *Deepgram) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			d.mu.Lock()
			stopping := d.stopping
			if !stopping {
				d.listening = false
				d.conn = nil
				d.cancel()
			}
			d.mu.Unlock()
			if stopping {
				return
			}
			_ = conn.Close()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				d.logger.Error("deepgram stream closed", "error", err)
				d.cbs.error(fmt.Errorf("stt: stream: %w", err))
			}
			return
		}
		if msgType == websocket.TextMessage {
			d.handle(msg)
		}
	}
}

func (d *Deepgram) handle(msg []byte) {
	var head controlMessage
	if err := json.Unmarshal(msg, &head); err != nil {
		d.logger.Warn("unparseable deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(head.Type) {
	case api.TypeMessageResponse:
		var res api.MessageResponse
		if err := json.Unmarshal(msg, &res); err != nil {
			d.logger.Warn("unparseable transcript", "error", err)
			return
		}
		if len(res.Channel.Alternatives) == 0 {
			return
		}
		text := strings.TrimSpace(res.Channel.Alternatives[0].Transcript)
		if text == "" {
			return
		}
		d.logger.Debug("transcript", "text", text, "final", res.IsFinal)
		d.cbs.transcript(text, res.IsFinal, func(r any) {
			d.logger.Error("transcript callback panicked", "panic", r)
		})
	case api.TypeSpeechStartedResponse, api.TypeUtteranceEndResponse:
		d.logger.Debug("vad event", "type", head.Type)
	default:
		d.logger.Debug("ignored deepgram message", "type", head.Type)
	}
}
