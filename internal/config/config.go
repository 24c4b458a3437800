// Package config loads per-binary settings from the environment. There is
// deliberately no flag surface: every tool runs with no arguments, and an
// optional .env file covers local use.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Common is shared by every binary: client credentials, console logging and
// the optional remote log channel.
type Common struct {
	BotToken string `env:"BOT_TOKEN,notEmpty,required"`

	// LogChannel enables the remote log sink when set (numeric chat id or
	// @username). Leave empty for console-only runs.
	LogChannel string `env:"LOG_CHANNEL_ID"`
	// SinkRatePerSec bounds remote log traffic; excess events are dropped.
	SinkRatePerSec int `env:"LOG_SINK_RATE" envDefault:"5"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Relay configures cmd/relay: move a task file's ranges and messages from
// the source channel to the destination.
type Relay struct {
	Common

	SourceChannel      string `env:"SOURCE_CHANNEL,notEmpty,required"`
	DestinationChannel string `env:"DESTINATION_CHANNEL,notEmpty,required"`

	TaskFile string `env:"TASK_FILE" envDefault:"tasks.txt"`

	MinDelay       time.Duration `env:"MIN_DELAY" envDefault:"2s"`
	MaxDelay       time.Duration `env:"MAX_DELAY" envDefault:"5s"`
	BatchSize      int           `env:"BATCH_SIZE" envDefault:"100"`
	BatchPause     time.Duration `env:"BATCH_PAUSE" envDefault:"1s"`
	ThrottleMargin time.Duration `env:"THROTTLE_MARGIN" envDefault:"5s"`

	// PollsOnly relays only poll-type items from ranges.
	PollsOnly bool `env:"POLLS_ONLY" envDefault:"false"`
}

// BulkDelete configures cmd/bulkdelete: remove the task file's ranges from
// the target channel in batches.
type BulkDelete struct {
	Common

	TargetChannel string `env:"DESTINATION_CHANNEL,notEmpty,required"`

	TaskFile string `env:"TASK_FILE" envDefault:"delete_range.txt"`

	BatchSize      int           `env:"BATCH_SIZE" envDefault:"100"`
	BatchPause     time.Duration `env:"BATCH_PAUSE" envDefault:"2s"`
	ThrottleMargin time.Duration `env:"THROTTLE_MARGIN" envDefault:"5s"`
}

// SendQuiz configures cmd/sendquiz: publish a quiz deck to a chat.
type SendQuiz struct {
	Common

	ChatID string `env:"CHAT_ID,notEmpty,required"`

	// DeckFile points at the deck; empty means "first *.json / *.yaml in
	// the working directory".
	DeckFile string `env:"DECK_FILE"`

	// QuestionTag is prefixed to every quiz question, e.g. a channel brand.
	QuestionTag string `env:"QUESTION_TAG"`

	SendDelay      time.Duration `env:"SEND_DELAY" envDefault:"4s"`
	ThrottleMargin time.Duration `env:"THROTTLE_MARGIN" envDefault:"5s"`
}

// Probe configures cmd/probe; it only needs the common block.
type Probe struct {
	Common
}

// Load reads the optional .env file, then parses T from the environment.
// Missing required values surface here, before anything connects.
func Load[T any]() (T, error) {
	// Absent .env is fine; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[T]()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if v, ok := any(cfg).(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	return cfg, nil
}

func (c Relay) validate() error {
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("MIN_DELAY/MAX_DELAY window invalid: %v > %v", c.MinDelay, c.MaxDelay)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	return nil
}

func (c BulkDelete) validate() error {
	if c.BatchSize <= 0 || c.BatchSize > 100 {
		return fmt.Errorf("BATCH_SIZE must be in 1..100, got %d", c.BatchSize)
	}
	return nil
}
