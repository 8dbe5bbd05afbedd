// Package config maps environment variables into the bot's runtime settings.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MaxInlineResults is the Telegram limit on results per inline answer.
const MaxInlineResults = 50

type Config struct {
	Token        string        `env:"TELEGRAM_TOKEN,required,notEmpty"`
	DatabasePath string        `env:"DATABASE_PATH" envDefault:"tagged_stickers.db"`
	PollTimeout  time.Duration `env:"POLL_TIMEOUT" envDefault:"10s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	// Inline search
	InlinePageSize int     `env:"INLINE_PAGE_SIZE" envDefault:"50"`
	InlineRate     float64 `env:"INLINE_RATE" envDefault:"5"`
	InlineBurst    int     `env:"INLINE_BURST" envDefault:"10"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InlinePageSize < 1 || c.InlinePageSize > MaxInlineResults {
		return fmt.Errorf("config: INLINE_PAGE_SIZE must be between 1 and %d, got %d", MaxInlineResults, c.InlinePageSize)
	}
	if c.InlineRate <= 0 {
		return fmt.Errorf("config: INLINE_RATE must be positive, got %v", c.InlineRate)
	}
	if c.InlineBurst < 1 {
		return fmt.Errorf("config: INLINE_BURST must be at least 1, got %d", c.InlineBurst)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level resolves LogLevel to a slog level.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown LOG_LEVEL %q", c.LogLevel)
}
