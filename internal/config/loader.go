package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/reachy-voice/internal/log"
)

// Load reads the YAML file at path over the defaults, applies the process
// environment and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if err := decode(f, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables read through getenv. Unset or
// empty variables leave the current value alone.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error

	if v := getenv("DEEPGRAM_API_KEY"); v != "" {
		cfg.STT.APIKey = v
		cfg.TTS.DeepgramAPIKey = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
		cfg.TTS.OpenAIAPIKey = v
	}
	if v := getenv("ROBOT_IP"); v != "" {
		cfg.Robot.Host = v
	}
	if v := getenv("SSH_USER"); v != "" {
		cfg.Robot.SSHUser = v
	}
	if v := getenv("SSH_PASS"); v != "" {
		cfg.Robot.SSHPass = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := getenv("VOICE_WAKE_WORDS"); v != "" {
		cfg.Vocabulary.WakePhrases = splitList(strings.ToLower(v))
	}
	if v := getenv("VOICE_CONTROL_STT_MODEL"); v != "" {
		cfg.STT.Model = v
	}
	if v := getenv("VOICE_CONTROL_TTS_VOICE"); v != "" {
		cfg.TTS.DeepgramVoice = v
	}
	if v := getenv("VOICE_CONTROL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VOICE_CONTROL_PORT %q: %w", v, err))
		} else {
			cfg.Server.Port = port
		}
	}
	if v := getenv("VOICE_CONTROL_AUTO_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VOICE_CONTROL_AUTO_START %q: %w", v, err))
		} else {
			cfg.Server.AutoStart = b
		}
	}
	if v := getenv("VOICE_CONTROL_LISTENING_TIMEOUT"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("VOICE_CONTROL_LISTENING_TIMEOUT %q: %w", v, err))
		} else {
			cfg.Voice.ListeningTimeout = time.Duration(secs * float64(time.Second))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", cfg.Server.Port))
	}
	if _, err := log.ParseLevel(cfg.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Robot.Host == "" {
		errs = append(errs, errors.New("robot.host is required"))
	}
	if len(cfg.Vocabulary.WakePhrases) == 0 {
		errs = append(errs, errors.New("vocabulary.wake_phrases must not be empty"))
	}
	if cfg.Vocabulary.MinCommandWords < 0 {
		errs = append(errs, errors.New("vocabulary.min_command_words must not be negative"))
	}
	if cfg.Executor.Binary == "" {
		errs = append(errs, errors.New("executor.binary is required"))
	}
	if cfg.Executor.GracePeriod < 0 {
		errs = append(errs, errors.New("executor.grace_period must not be negative"))
	}
	if err := cfg.Voice.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
