package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the full bot configuration. File values load first, then
// environment overrides apply on top (see env.go), so a containerized
// deployment can run with no config file edits at all.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Registry RegistryConfig `json:"registry"`
	Forward  ForwardConfig  `json:"forward"`
}

type TelegramConfig struct {
	Token string `json:"token" env:"FORWARD_BOT_TOKEN"`

	// SourceChannel is the channel whose posts get fanned out. Channel ids
	// are negative and carry the -100 prefix.
	SourceChannel int64 `json:"source_channel" env:"MASTER_CHANNEL"`

	// AdminID is the only user allowed to run management commands. It also
	// receives failure-rate alerts. Zero disables both.
	AdminID int64 `json:"admin_id,omitempty" env:"ADMIN_ID"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type RegistryConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// ForwardConfig tunes the fan-out engine.
//
// Defaults (when fields are omitted/zero):
//   - batch_size: 20
//   - batch_delay: "1s"
//   - retry_max: 5
//   - rate_per_sec: 25
//   - alert_threshold: 0.30
type ForwardConfig struct {
	BatchSize int `json:"batch_size,omitempty" env:"BATCH_SIZE"`

	// BatchDelay is the pause between consecutive batches, not after the
	// last one.
	BatchDelay string `json:"batch_delay,omitempty"`

	RetryMax   int `json:"retry_max,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// AlertThreshold is the failure ratio (0..1) above which a run raises
	// an operator alert.
	AlertThreshold float64 `json:"alert_threshold,omitempty"`

	// ImportChannels seeds the registry at startup. Existing rows are
	// reactivated, never duplicated.
	ImportChannels []string `json:"import_channels,omitempty" env:"TARGET_CHANNELS" envSeparator:","`
}

// Validate rejects configs the bot cannot run with. Called before every
// commit so a broken reload never replaces a working config.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.SourceChannel >= 0 {
		return errors.New("telegram.source_channel must be a negative channel id")
	}
	if strings.TrimSpace(c.Registry.Path) == "" {
		return errors.New("registry.path is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("registry.busy_timeout", c.Registry.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("forward.batch_delay", c.Forward.BatchDelay); err != nil {
		return err
	}
	if c.Forward.BatchSize < 0 {
		return errors.New("forward.batch_size must be >= 0")
	}
	if c.Forward.AlertThreshold < 0 || c.Forward.AlertThreshold > 1 {
		return errors.New("forward.alert_threshold must be within [0, 1]")
	}
	for _, ch := range c.Forward.ImportChannels {
		if err := ValidateChannelID(ch); err != nil {
			return fmt.Errorf("forward.import_channels: %w", err)
		}
	}
	return nil
}

// ValidateChannelID checks the canonical Telegram channel id shape: a
// negative integer starting with -100.
func ValidateChannelID(id string) error {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "-100") {
		return fmt.Errorf("channel id %q must start with -100", id)
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return fmt.Errorf("channel id %q is not numeric", id)
	}
	return nil
}

// PollTimeoutOrDefault resolves the long-poll timeout.
func (c *Config) PollTimeoutOrDefault() time.Duration {
	d, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// BatchDelayOrDefault resolves the inter-batch pacing delay.
func (c *Config) BatchDelayOrDefault() time.Duration {
	d, err := ParseDurationField("forward.batch_delay", c.Forward.BatchDelay)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// BusyTimeoutOrDefault resolves the sqlite busy timeout.
func (c *Config) BusyTimeoutOrDefault() time.Duration {
	d, err := ParseDurationField("registry.busy_timeout", c.Registry.BusyTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// RetryMaxOrDefault resolves the per-destination attempt budget.
func (c *Config) RetryMaxOrDefault() int {
	if c.Forward.RetryMax <= 0 {
		return 5
	}
	return c.Forward.RetryMax
}

// RatePerSecOrDefault resolves the global send rate limit.
func (c *Config) RatePerSecOrDefault() int {
	if c.Forward.RatePerSec <= 0 {
		return 25
	}
	return c.Forward.RatePerSec
}

// AlertThresholdOrDefault resolves the failure-rate alert threshold.
func (c *Config) AlertThresholdOrDefault() float64 {
	if c.Forward.AlertThreshold <= 0 {
		return 0.30
	}
	return c.Forward.AlertThreshold
}
