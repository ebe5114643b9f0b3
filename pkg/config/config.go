// Package config loads voicequiz settings from defaults, an optional file,
// BCLT_* environment variables and bound CLI flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/recorder"
)

// EnvPrefix prefixes every environment variable, e.g. BCLT_API_BASE_URL.
const EnvPrefix = "BCLT"

type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Recorder     RecorderConfig     `mapstructure:"recorder"`
	Player       PlayerConfig       `mapstructure:"player"`
	Log          LogConfig          `mapstructure:"log"`
	Serve        ServeConfig        `mapstructure:"serve"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Retries        int           `mapstructure:"retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type ConversationConfig struct {
	ThematicGroup int `mapstructure:"thematic_group"`
	// ChapterNumber 0 means no chapter filter.
	ChapterNumber       int           `mapstructure:"chapter_number"`
	StartTimeout        time.Duration `mapstructure:"start_timeout"`
	SummaryTimeout      time.Duration `mapstructure:"summary_timeout"`
	PlaybackSettleDelay time.Duration `mapstructure:"playback_settle_delay"`
}

type RecorderConfig struct {
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	InputFormat string        `mapstructure:"input_format"`
	Device      string        `mapstructure:"device"`
	Container   string        `mapstructure:"container"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type PlayerConfig struct {
	FFplayPath string `mapstructure:"ffplay_path"`
	Volume     int    `mapstructure:"volume"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type ServeConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.request_timeout", time.Minute)
	v.SetDefault("api.retries", 2)
	v.SetDefault("api.retry_backoff", 250*time.Millisecond)

	v.SetDefault("conversation.thematic_group", 1)
	v.SetDefault("conversation.chapter_number", 0)
	v.SetDefault("conversation.start_timeout", conversation.DefaultStartTimeout)
	v.SetDefault("conversation.summary_timeout", conversation.DefaultSummaryTimeout)
	v.SetDefault("conversation.playback_settle_delay", conversation.DefaultPlaybackSettleDelay)

	v.SetDefault("recorder.ffmpeg_path", "ffmpeg")
	v.SetDefault("recorder.input_format", "")
	v.SetDefault("recorder.device", "")
	v.SetDefault("recorder.container", string(recorder.ContainerWebM))
	v.SetDefault("recorder.max_duration", recorder.DefaultMaxDuration)

	v.SetDefault("player.ffplay_path", "ffplay")
	v.SetDefault("player.volume", 80)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("serve.addr", ":8090")
	v.SetDefault("serve.allowed_origins", []string{})
	v.SetDefault("serve.ping_interval", 20*time.Second)
	v.SetDefault("serve.write_timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the merged settings.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	cfg.Serve.AllowedOrigins = splitOrigins(cfg.Serve.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitOrigins accepts both list values and a comma separated env string.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be > 0")
	}
	if c.API.Retries < 0 {
		return fmt.Errorf("api.retries must be >= 0")
	}
	if c.API.RetryBackoff <= 0 {
		return fmt.Errorf("api.retry_backoff must be > 0")
	}
	if c.Conversation.ThematicGroup < 1 || c.Conversation.ThematicGroup > 6 {
		return fmt.Errorf("conversation.thematic_group must be between 1 and 6")
	}
	if c.Conversation.ChapterNumber < 0 {
		return fmt.Errorf("conversation.chapter_number must be >= 0")
	}
	if c.Conversation.StartTimeout <= 0 {
		return fmt.Errorf("conversation.start_timeout must be > 0")
	}
	if c.Conversation.SummaryTimeout <= 0 {
		return fmt.Errorf("conversation.summary_timeout must be > 0")
	}
	if c.Conversation.PlaybackSettleDelay < 0 {
		return fmt.Errorf("conversation.playback_settle_delay must be >= 0")
	}
	switch recorder.Container(c.Recorder.Container) {
	case recorder.ContainerWebM, recorder.ContainerOgg, recorder.ContainerMP4, recorder.ContainerWAV:
	default:
		return fmt.Errorf("recorder.container must be one of webm|ogg|mp4|wav")
	}
	if c.Recorder.MaxDuration <= 0 {
		return fmt.Errorf("recorder.max_duration must be > 0")
	}
	if c.Player.Volume < 0 || c.Player.Volume > 100 {
		return fmt.Errorf("player.volume must be between 0 and 100")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level must be one of trace|debug|info|warn|error")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be one of console|json")
	}
	if strings.TrimSpace(c.Serve.Addr) == "" {
		return fmt.Errorf("serve.addr must not be empty")
	}
	if c.Serve.PingInterval <= 0 {
		return fmt.Errorf("serve.ping_interval must be > 0")
	}
	if c.Serve.WriteTimeout <= 0 {
		return fmt.Errorf("serve.write_timeout must be > 0")
	}
	return nil
}

// Chapter returns the chapter filter, nil when unset.
func (c ConversationConfig) Chapter() *int {
	if c.ChapterNumber <= 0 {
		return nil
	}
	n := c.ChapterNumber
	return &n
}

// BeginOptions builds the options for the configured session.
func (c ConversationConfig) BeginOptions() conversation.BeginOptions {
	return conversation.BeginOptions{ThematicGroup: c.ThematicGroup, ChapterNumber: c.Chapter()}
}

// ControllerConfig maps the tunable controller settings.
func (c ConversationConfig) ControllerConfig() conversation.Config {
	return conversation.Config{
		StartTimeout:        c.StartTimeout,
		SummaryTimeout:      c.SummaryTimeout,
		PlaybackSettleDelay: c.PlaybackSettleDelay,
	}
}

// Capture maps the capture settings.
func (c RecorderConfig) Capture() recorder.Config {
	return recorder.Config{
		FFmpegPath:  c.FFmpegPath,
		InputFormat: c.InputFormat,
		Device:      c.Device,
		Container:   recorder.Container(c.Container),
		MaxDuration: c.MaxDuration,
	}
}
