package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/bclt-academy/voicequiz/pkg/config"
	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/player"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/recorder"
	"github.com/bclt-academy/voicequiz/pkg/metrics"
	bclt "github.com/bclt-academy/voicequiz/sdk"
)

// unavailableSink fails every clip so sequences skip straight to the user's
// turn when no playback binary is installed.
type unavailableSink struct{ err error }

func (s unavailableSink) Play(context.Context, []byte) error { return s.err }

type stack struct {
	client   *bclt.Client
	recorder *recorder.FFmpeg
	player   *player.Sequential
	ctrl     *conversation.Controller
}

func (s *stack) Close() {
	_ = s.ctrl.Close()
	s.player.Wait()
}

func newClient(cfg config.APIConfig) *bclt.Client {
	opts := []bclt.ClientOption{
		bclt.WithBaseURL(cfg.BaseURL),
		bclt.WithTimeout(cfg.RequestTimeout),
		bclt.WithRetries(cfg.Retries),
		bclt.WithRetryBackoff(cfg.RetryBackoff),
	}
	if cfg.Token != "" {
		opts = append(opts, bclt.WithToken(cfg.Token))
	}
	return bclt.NewClient(opts...)
}

func newSink(cfg config.PlayerConfig) player.Sink {
	sink, err := player.NewFFplay(cfg.FFplayPath, cfg.Volume)
	if err != nil {
		log.Warn().Str("component", "player").Err(err).Msg("playback disabled")
		return unavailableSink{err: err}
	}
	return sink
}

// buildStack wires the API client, capture, playback and controller. m may
// be nil.
func buildStack(cfg config.Config, m *metrics.Metrics) *stack {
	client := newClient(cfg.API)
	rec := recorder.NewFFmpeg(cfg.Recorder.Capture())
	if !rec.Supported() {
		log.Warn().Str("component", "recorder").Str("ffmpeg", cfg.Recorder.FFmpegPath).Msg("microphone capture unavailable")
	}
	p := player.NewSequential(newSink(cfg.Player), m.ClipObserver())

	opts := []conversation.Option{conversation.WithConfig(cfg.Conversation.ControllerConfig())}
	if m != nil {
		opts = append(opts, conversation.WithMetrics(m))
	}
	ctrl := conversation.New(client.VoiceQuiz, rec, p, opts...)

	log.Info().
		Str("api", client.BaseURL()).
		Bool("recorder_supported", rec.Supported()).
		Str("container", cfg.Recorder.Container).
		Msg("voicequiz ready")
	return &stack{client: client, recorder: rec, player: p, ctrl: ctrl}
}
