package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/tts"
)

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello [waves] there", "Hello there"},
		{"*smiles* Sure thing", "Sure thing"},
		{"  lots   of\n space  ", "lots of space"},
		{"[nods]", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := tts.CleanForSpeech(tt.in); got != tt.want {
				t.Errorf("CleanForSpeech(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeepgram(t *testing.T) {
	var gotAuth, gotModel, gotEncoding, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotModel = r.URL.Query().Get("model")
		gotEncoding = r.URL.Query().Get("encoding")
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotText = body.Text
		_, _ = w.Write(make([]byte, 48000)) // 1s at 24 kHz
	}))
	defer srv.Close()

	p, err := tts.NewDeepgram(tts.WithAPIKey("dg-key"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewDeepgram: %v", err)
	}
	defer p.Close()

	res, err := p.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotAuth != "Token dg-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotModel != tts.VoiceAsteria {
		t.Errorf("model = %q", gotModel)
	}
	if gotEncoding != "linear16" {
		t.Errorf("encoding = %q", gotEncoding)
	}
	if gotText != "Hello" {
		t.Errorf("text = %q", gotText)
	}
	if res.Format.Encoding != tts.EncodingLinear16 || res.Format.SampleRate != 24000 {
		t.Errorf("format = %+v", res.Format)
	}
	if res.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", res.Duration)
	}
}

func TestDeepgram_RequiresKey(t *testing.T) {
	if _, err := tts.NewDeepgram(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream"}}`))
			return
		}
		_, _ = w.Write([]byte{1, 2, 3, 4})
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(tts.WithAPIKey("sk"), tts.WithBaseURL(srv.URL), tts.WithRetry(2, time.Millisecond))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	res, err := p.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(res.Audio) != 4 {
		t.Errorf("audio len = %d", len(res.Audio))
	}
}

func TestOpenAI_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	p, _ := tts.NewOpenAI(tts.WithAPIKey("sk"), tts.WithBaseURL(srv.URL), tts.WithRetry(3, time.Millisecond))
	_, err := p.Synthesize(context.Background(), "hi")

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.StatusCode != 401 || apiErr.Message != "bad key" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("falls back", func(t *testing.T) {
		second := tts.NewMock()
		chain, err := tts.NewChain(nil, tts.WithError(boom), second)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := chain.Synthesize(ctx, "hello"); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if got := second.Texts(); len(got) != 1 || got[0] != "hello" {
			t.Errorf("second provider texts = %v", got)
		}
	})

	t.Run("all fail", func(t *testing.T) {
		chain, _ := tts.NewChain(nil, tts.WithError(boom), tts.WithError(boom))
		_, err := chain.Synthesize(ctx, "hello")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) || len(chainErr.Errors) != 2 {
			t.Fatalf("err = %v", err)
		}
		if !errors.Is(err, boom) {
			t.Error("expected errors.Is to find provider error")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := tts.NewChain(nil); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("err = %v", err)
		}
	})
}

type recordingPlayer struct {
	played []*tts.AudioResult
	err    error
}

func (p *recordingPlayer) Play(_ context.Context, a *tts.AudioResult) error {
	p.played = append(p.played, a)
	return p.err
}

func TestSpeaker(t *testing.T) {
	ctx := context.Background()

	t.Run("speaks cleaned text", func(t *testing.T) {
		mock := tts.NewMock()
		player := &recordingPlayer{}
		s := tts.NewSpeaker(mock, player, nil)

		if err := s.Speak(ctx, "*grins* All done [bows]"); err != nil {
			t.Fatalf("Speak: %v", err)
		}
		if got := mock.Texts(); len(got) != 1 || got[0] != "All done" {
			t.Errorf("synthesized %v", got)
		}
		if len(player.played) != 1 {
			t.Errorf("played %d clips", len(player.played))
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		s := tts.NewSpeaker(nil, &recordingPlayer{}, nil)
		if s.Configured() {
			t.Error("expected unconfigured")
		}
		if err := s.Speak(ctx, "hi"); !errors.Is(err, tts.ErrNotConfigured) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("empty after cleaning", func(t *testing.T) {
		s := tts.NewSpeaker(tts.NewMock(), &recordingPlayer{}, nil)
		if err := s.Speak(ctx, "[silence]"); !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("player failure surfaces", func(t *testing.T) {
		s := tts.NewSpeaker(tts.NewMock(), &recordingPlayer{err: errors.New("ssh down")}, nil)
		if err := s.Speak(ctx, "hello"); err == nil {
			t.Error("expected error")
		}
	})
}
