package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	CredentialSourceEnv = "env"
	CredentialSourceSSM = "ssm"
)

// Config holds all process configuration. It is read once at startup.
type Config struct {
	CredentialSource string `env:"CREDENTIAL_SOURCE" envDefault:"env"`
	// APIKeyVar names the variable holding the credential; the value itself is
	// read lazily so a missing key is a runtime condition, not a startup error.
	APIKeyVar   string `env:"API_KEY_VAR" envDefault:"API_KEY"`
	ParamPrefix string `env:"PARAM_PREFIX" envDefault:"/insight-agent"`

	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-3-flash-preview"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	SessionTable string        `env:"SESSION_TABLE"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"30s"`

	MaxWordLength int    `env:"MAX_WORD_LENGTH" envDefault:"200"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"*"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.CredentialSource {
	case CredentialSourceEnv:
		if strings.TrimSpace(c.APIKeyVar) == "" {
			return fmt.Errorf("config: API_KEY_VAR must not be empty")
		}
	case CredentialSourceSSM:
		if strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/") == "" {
			return fmt.Errorf("config: PARAM_PREFIX must not be empty when CREDENTIAL_SOURCE=ssm")
		}
	default:
		return fmt.Errorf("config: unknown CREDENTIAL_SOURCE %q", c.CredentialSource)
	}
	if strings.TrimSpace(c.GeminiModel) == "" {
		return fmt.Errorf("config: GEMINI_MODEL must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: HTTP_TIMEOUT must be positive")
	}
	// A marker must outlive the call it guards or a second request can take it over.
	if strings.TrimSpace(c.SessionTable) != "" && c.SessionTTL <= c.HTTPTimeout {
		return fmt.Errorf("config: SESSION_TTL (%s) must exceed HTTP_TIMEOUT (%s)", c.SessionTTL, c.HTTPTimeout)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
