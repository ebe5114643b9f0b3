package conversation

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Fixed guard contracts.
const (
	EmptyRecordingTimeout = 10 * time.Second
	SubmitTimeout         = 30 * time.Second
	TextRevealDelay       = 3 * time.Second
)

const (
	DefaultPlaybackSettleDelay = 500 * time.Millisecond
	DefaultStartTimeout        = 15 * time.Second
	DefaultSummaryTimeout      = 15 * time.Second
	defaultEventBuffer         = 128
)

// Config holds the tunable parts of the controller.
type Config struct {
	// StartTimeout bounds the start-session request.
	StartTimeout time.Duration
	// SummaryTimeout bounds the summary request.
	SummaryTimeout time.Duration
	// PlaybackSettleDelay is the pause before the first question's audio.
	// Zero selects the default; a negative value disables the pause.
	PlaybackSettleDelay time.Duration
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// DefaultConfig returns the defaults used by New.
func DefaultConfig() Config {
	return Config{
		StartTimeout:        DefaultStartTimeout,
		SummaryTimeout:      DefaultSummaryTimeout,
		PlaybackSettleDelay: DefaultPlaybackSettleDelay,
		EventBuffer:         defaultEventBuffer,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StartTimeout <= 0 {
		c.StartTimeout = d.StartTimeout
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = d.SummaryTimeout
	}
	switch {
	case c.PlaybackSettleDelay == 0:
		c.PlaybackSettleDelay = d.PlaybackSettleDelay
	case c.PlaybackSettleDelay < 0:
		c.PlaybackSettleDelay = 0
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig replaces the controller configuration.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg.withDefaults() }
}

// WithClock replaces the clock that drives watchdogs and delays.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}
