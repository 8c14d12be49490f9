// Package config loads voicectl configuration from a YAML file overlaid by
// environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/command"
	"github.com/teslashibe/reachy-voice/pkg/executor"
	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/voice"
)

// Defaults that have no home in a component package.
const (
	DefaultPort           = 8080
	DefaultRobotHost      = "reachy-mini.local"
	DefaultRobotAPIPort   = 8000
	DefaultSignallingPort = 8443
	DefaultSSHUser        = "pollen"
	DefaultSSHPass        = "root"
)

// Config is the complete voicectl configuration.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Robot      RobotConfig        `yaml:"robot"`
	STT        stt.Config         `yaml:"stt"`
	TTS        TTSConfig          `yaml:"tts"`
	Chat       ChatConfig         `yaml:"chat"`
	Executor   executor.Config    `yaml:"executor"`
	Voice      voice.Config       `yaml:"voice"`
	Vocabulary command.Vocabulary `yaml:"vocabulary"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`

	// AutoStart starts listening as soon as the server is up.
	AutoStart bool `yaml:"auto_start"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RobotConfig locates the Reachy Mini.
type RobotConfig struct {
	Host           string `yaml:"host"`
	APIPort        int    `yaml:"api_port"`
	SignallingPort int    `yaml:"signalling_port"`
	Producer       string `yaml:"producer"`
	SSHUser        string `yaml:"ssh_user"`
	SSHPass        string `yaml:"ssh_pass"`

	// ProbeInterval is how often daemon reachability is checked.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// APIURL is the daemon HTTP API base URL.
func (r RobotConfig) APIURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(r.Host, strconv.Itoa(r.APIPort)))
}

// SignallingURL is the WebRTC signalling endpoint.
func (r RobotConfig) SignallingURL() string {
	return fmt.Sprintf("ws://%s", net.JoinHostPort(r.Host, strconv.Itoa(r.SignallingPort)))
}

// TTSConfig selects the speech voices. Deepgram is tried first, OpenAI
// second; a provider without a key is skipped.
type TTSConfig struct {
	DeepgramAPIKey string `yaml:"deepgram_api_key"`
	DeepgramVoice  string `yaml:"deepgram_voice"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIVoice    string `yaml:"openai_voice"`
}

// ChatConfig configures the conversational fallback.
type ChatConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	HistoryTurns int    `yaml:"history_turns"`
}

// Default returns the configuration used when no file or environment
// overrides anything.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        DefaultPort,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			LogLevel:    "info",
		},
		Robot: RobotConfig{
			Host:           DefaultRobotHost,
			APIPort:        DefaultRobotAPIPort,
			SignallingPort: DefaultSignallingPort,
			SSHUser:        DefaultSSHUser,
			SSHPass:        DefaultSSHPass,
			ProbeInterval:  5 * time.Second,
		},
		STT: stt.DefaultConfig(),
		TTS: TTSConfig{
			DeepgramVoice: tts.VoiceAsteria,
			OpenAIVoice:   tts.VoiceNova,
		},
		Chat: ChatConfig{
			BaseURL:      inference.DefaultBaseURL,
			Model:        inference.DefaultModel,
			SystemPrompt: inference.DefaultSystemPrompt,
			HistoryTurns: inference.DefaultHistoryTurns,
		},
		Executor:   executor.DefaultConfig(),
		Voice:      voice.DefaultConfig(),
		Vocabulary: command.DefaultVocabulary(),
	}
}
