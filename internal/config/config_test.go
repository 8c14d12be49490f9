package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))

	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.False(t, cfg.Server.AutoStart)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://reachy-mini.local:8000", cfg.Robot.APIURL())
	assert.Equal(t, "ws://reachy-mini.local:8443", cfg.Robot.SignallingURL())
	assert.Equal(t, "nova-2", cfg.STT.Model)
	assert.Equal(t, "aura-asteria-en", cfg.TTS.DeepgramVoice)
	assert.Equal(t, "claude", cfg.Executor.Binary)
	assert.Equal(t, 10*time.Second, cfg.Voice.ListeningTimeout)
	assert.Contains(t, cfg.Vocabulary.WakePhrases, "hey claude")
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
server:
  port: 9000
  auto_start: true
robot:
  host: 192.168.1.20
voice:
  listening_timeout: 4s
vocabulary:
  wake_phrases: ["hey robot"]
  min_command_words: 2
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.AutoStart)
	assert.Equal(t, "http://192.168.1.20:8000", cfg.Robot.APIURL())
	assert.Equal(t, 4*time.Second, cfg.Voice.ListeningTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Voice.ChunkInterval, "unset fields keep defaults")
	assert.Equal(t, []string{"hey robot"}, cfg.Vocabulary.WakePhrases)
	assert.Equal(t, 2, cfg.Vocabulary.MinCommandWords)
	assert.NotEmpty(t, cfg.Vocabulary.IntentKeywords)
}

func TestLoadFromReader_Empty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  prot: 9000\n"))
	assert.ErrorContains(t, err, "prot")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Server.LogLevel = "loud"
	cfg.Vocabulary.WakePhrases = nil
	cfg.Executor.Binary = ""

	err := Validate(&cfg)
	require.Error(t, err)
	for _, want := range []string{"server.port", "server.log_level", "wake_phrases", "executor.binary"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DEEPGRAM_API_KEY":                "dg-key",
		"OPENAI_API_KEY":                  "oa-key",
		"ROBOT_IP":                        "10.0.0.5",
		"SSH_USER":                        "reachy",
		"SSH_PASS":                        "secret",
		"VOICE_WAKE_WORDS":                "Hey Robot, robot",
		"VOICE_CONTROL_PORT":              "9100",
		"VOICE_CONTROL_AUTO_START":        "true",
		"VOICE_CONTROL_LISTENING_TIMEOUT": "2.5",
		"LOG_LEVEL":                       "debug",
	}
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, func(k string) string { return env[k] }))

	assert.Equal(t, "dg-key", cfg.STT.APIKey)
	assert.Equal(t, "dg-key", cfg.TTS.DeepgramAPIKey)
	assert.Equal(t, "oa-key", cfg.Chat.APIKey)
	assert.Equal(t, "oa-key", cfg.TTS.OpenAIAPIKey)
	assert.Equal(t, "10.0.0.5", cfg.Robot.Host)
	assert.Equal(t, "reachy", cfg.Robot.SSHUser)
	assert.Equal(t, "secret", cfg.Robot.SSHPass)
	assert.Equal(t, []string{"hey robot", "robot"}, cfg.Vocabulary.WakePhrases)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Server.AutoStart)
	assert.Equal(t, 2500*time.Millisecond, cfg.Voice.ListeningTimeout)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestApplyEnv_Invalid(t *testing.T) {
	env := map[string]string{
		"VOICE_CONTROL_PORT":       "eighty",
		"VOICE_CONTROL_AUTO_START": "maybe",
	}
	cfg := Default()
	err := ApplyEnv(&cfg, func(k string) string { return env[k] })
	require.Error(t, err)
	assert.ErrorContains(t, err, "VOICE_CONTROL_PORT")
	assert.ErrorContains(t, err, "VOICE_CONTROL_AUTO_START")
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))
	t.Setenv("VOICE_CONTROL_PORT", "9200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port, "environment wins over the file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vocabulary:\n  wake_phrases: [\"hey claude\"]\n"), 0o600))

	var (
		mu   sync.Mutex
		seen [][]string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			mu.Lock()
			seen = append(seen, cfg.Vocabulary.WakePhrases)
			mu.Unlock()
		}, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("vocabulary:\n  wake_phrases: [\"hey robot\"]\n"), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1][0] == "hey robot"
	}, 3*time.Second, 20*time.Millisecond)

	// An invalid file is skipped.
	require.NoError(t, os.WriteFile(path, []byte("vocabulary:\n  wake_phrase: oops\n"), 0o600))
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	assert.Equal(t, []string{"hey robot"}, last)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
