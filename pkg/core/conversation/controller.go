package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bclt-academy/voicequiz/pkg/core/types"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/player"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/recorder"
)

// Exchange is the remote voice quiz service.
type Exchange interface {
	StartSession(ctx context.Context, req *types.StartSessionRequest) (*types.StartSessionResponse, error)
	SubmitAnswer(ctx context.Context, req *types.SubmitAnswerRequest) (*types.TurnResult, error)
	GetSummary(ctx context.Context, sessionID string) (*types.SummaryResponse, error)
}

// Player plays one clip sequence at a time. Play and Stop must return
// without waiting for playback, and onComplete must never run inside them.
type Player interface {
	Play(clips []player.Clip, onComplete func())
	Stop()
}

// BeginOptions selects the content of a new session.
type BeginOptions struct {
	ThematicGroup int
	ChapterNumber *int
}

// Snapshot is a consistent copy of the controller's observable state.
type Snapshot struct {
	State     State           `json:"state"`
	SessionID string          `json:"session_id,omitempty"`
	Question  *types.Question `json:"question,omitempty"`
	Text      string          `json:"text"`
	Error     *Error          `json:"error,omitempty"`
	Summary   *Summary        `json:"summary,omitempty"`
	Busy      bool            `json:"busy"`
}

// Controller drives one learner through voice quiz sessions.
//
// Recorder Stop/Reset and Player Play/Stop are called with the controller
// lock held; both collaborators deliver their callbacks asynchronously.
type Controller struct {
	exchange Exchange
	recorder recorder.Recorder
	player   Player
	clock    clockwork.Clock
	cfg      Config
	metrics  Metrics

	mu        sync.Mutex
	state     State
	sessionID string
	question  *types.Question
	text      string
	lastErr   *Error
	summary   *Summary

	// busy is set while Begin or EndConversation waits on the network;
	// arming is set while the recorder acquires the device.
	busy   bool
	arming bool

	// epoch changes on every exit and every new session. attempt changes on
	// every processing entry. speakGen changes on every playback request.
	epoch    uint64
	attempt  uint64
	speakGen uint64

	captureID     recorder.CaptureID
	buffer        *recorder.Recording
	submitting    bool
	submitCancel  context.CancelFunc
	submitStarted time.Time

	emptyTimer  clockwork.Timer
	submitTimer clockwork.Timer
	settleTimer clockwork.Timer
	revealTimer clockwork.Timer

	events chan Event
	closed bool
}

// New builds a controller and registers itself as the recorder's callback target.
func New(exchange Exchange, rec recorder.Recorder, p Player, opts ...Option) *Controller {
	c := &Controller{
		exchange: exchange,
		recorder: rec,
		player:   p,
		clock:    clockwork.NewRealClock(),
		cfg:      DefaultConfig(),
		metrics:  nopMetrics{},
		state:    StateStart,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.events = make(chan Event, c.cfg.EventBuffer)
	rec.SetCallbacks(c.onRecording, c.onRecorderError)
	return c
}

// Events returns the event stream. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		Text:      c.text,
		Error:     c.lastErr,
		Busy:      c.busy || c.arming,
	}
	if c.question != nil {
		q := *c.question
		s.Question = &q
	}
	if c.summary != nil {
		sum := *c.summary
		s.Summary = &sum
	}
	return s
}

// RecorderSupported reports whether the begin affordance should be offered.
func (c *Controller) RecorderSupported() bool {
	return c.recorder.Supported() && c.recorder.PermissionStatus() != recorder.PermissionDenied
}

// Begin requests a new session and enters ai_speaking when the first
// question carries audio, or user_turn otherwise.
func (c *Controller) Begin(ctx context.Context, opts BeginOptions) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateStart {
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "begin from %s", c.state)
	}
	c.busy = true
	c.epoch++
	epoch := c.epoch
	c.lastErr = nil
	c.mu.Unlock()

	req := &types.StartSessionRequest{ThematicGroup: opts.ThematicGroup, ChapterNumber: opts.ChapterNumber}
	startCtx, cancel := context.WithTimeout(ctx, c.cfg.StartTimeout)
	resp, err := c.exchange.StartSession(startCtx, req)
	cancel()
	if err == nil && (resp == nil || resp.SessionID == "" || resp.Question == nil) {
		err = errors.New("start session: response has no session or question")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || epoch != c.epoch {
		return ErrSuperseded
	}
	c.busy = false
	c.metrics.ObserveSessionStart(err)
	if err != nil {
		e := newError(KindStart, err)
		c.reportLocked(e)
		return e
	}

	c.sessionID = resp.SessionID
	c.question = resp.Question
	c.summary = nil
	log.Info().Str("component", "conversation").Str("session_id", c.sessionID).Int("thematic_group", opts.ThematicGroup).Msg("session started")
	c.emitLocked(&SessionStartedEvent{SessionID: c.sessionID, Question: c.question})
	c.setTextLocked(c.question.Prompt())

	if c.question.HasAudio() {
		c.speakLocked([]player.Clip{player.NewBase64Clip("question", c.question.AudioBase64)}, c.cfg.PlaybackSettleDelay)
	} else {
		c.setStateLocked(StateUserTurn)
	}
	return nil
}

// MicPress starts a capture from user_turn or stops it from recording.
func (c *Controller) MicPress(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	switch c.state {
	case StateUserTurn:
		c.arming = true
		epoch := c.epoch
		c.mu.Unlock()
		return c.startCapture(ctx, epoch)
	case StateRecording:
		defer c.mu.Unlock()
		c.stopCaptureLocked()
		return nil
	default:
		state := c.state
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "mic press in %s", state)
	}
}

func (c *Controller) startCapture(ctx context.Context, epoch uint64) error {
	id, err := c.recorder.Start(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.arming = false
	if c.closed || epoch != c.epoch || c.state != StateUserTurn {
		if err == nil {
			c.recorder.Reset()
		}
		return ErrSuperseded
	}
	if err != nil {
		e := newError(KindCapture, err)
		c.metrics.ObserveTurn(TurnCaptureError, 0)
		c.reportLocked(e)
		return e
	}
	c.captureID = id
	c.buffer = nil
	c.lastErr = nil
	c.setStateLocked(StateRecording)
	return nil
}

// stopCaptureLocked enters processing and arms the empty-recording watchdog.
func (c *Controller) stopCaptureLocked() {
	attempt := c.enterProcessingLocked()
	c.emptyTimer = c.clock.AfterFunc(EmptyRecordingTimeout, func() { c.onEmptyRecordingTimeout(attempt) })

	if err := c.recorder.Stop(); err != nil && !errors.Is(err, recorder.ErrNotRecording) {
		c.failCaptureLocked(err)
	}
}

func (c *Controller) enterProcessingLocked() uint64 {
	c.attempt++
	c.buffer = nil
	stopTimer(&c.revealTimer)
	c.setStateLocked(StateProcessing)
	return c.attempt
}

func (c *Controller) onRecording(rec recorder.Recording) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || rec.CaptureID == 0 || rec.CaptureID != c.captureID {
		log.Debug().Str("component", "conversation").Uint64("capture_id", uint64(rec.CaptureID)).Msg("stale recording ignored")
		return
	}

	switch c.state {
	case StateRecording:
		// The recorder stopped itself at its maximum duration.
		c.enterProcessingLocked()
	case StateProcessing:
		if c.buffer != nil || c.submitting {
			return
		}
	default:
		log.Debug().Str("component", "conversation").Str("state", c.state.String()).Msg("recording outside processing ignored")
		return
	}

	stopTimer(&c.emptyTimer)
	c.captureID = 0
	r := rec
	c.buffer = &r
	c.submitLocked(c.attempt)
}

func (c *Controller) submitLocked(attempt uint64) {
	if c.sessionID == "" || c.question == nil {
		c.buffer = nil
		c.setStateLocked(StateUserTurn)
		return
	}
	req := &types.SubmitAnswerRequest{
		SessionID:   c.sessionID,
		QuestionID:  c.question.ID,
		Audio:       c.buffer.Data,
		AudioFormat: types.AudioFormatFromMIME(c.buffer.MIMEType),
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.submitting = true
	c.submitCancel = cancel
	c.submitStarted = c.clock.Now()
	c.submitTimer = c.clock.AfterFunc(SubmitTimeout, func() { c.onSubmitTimeout(attempt) })

	log.Debug().Str("component", "conversation").
		Uint64("attempt", attempt).
		Str("question_id", req.QuestionID.String()).
		Str("audio_format", string(req.AudioFormat)).
		Int("bytes", len(req.Audio)).
		Msg("submitting answer")

	go func() {
		res, err := c.exchange.SubmitAnswer(ctx, req)
		c.onSubmitResult(attempt, res, err)
	}()
}

func (c *Controller) onSubmitResult(attempt uint64, res *types.TurnResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || attempt != c.attempt || c.state != StateProcessing || !c.submitting {
		log.Debug().Str("component", "conversation").Uint64("attempt", attempt).Msg("late turn result ignored")
		return
	}
	elapsed := c.clock.Since(c.submitStarted)
	c.endSubmitLocked()

	if err == nil && res == nil {
		err = errors.New("submit answer: empty response")
	}
	if err != nil {
		c.metrics.ObserveTurn(TurnSubmitError, elapsed)
		c.reportLocked(newError(KindSubmit, err))
		c.setStateLocked(StateUserTurn)
		return
	}
	c.metrics.ObserveTurn(TurnAnswered, elapsed)
	c.applyTurnLocked(attempt, res)
}

func (c *Controller) applyTurnLocked(attempt uint64, res *types.TurnResult) {
	feedback := res.FeedbackComposite()

	if next := res.NextQuestion; next != nil {
		var clips []player.Clip
		if res.HasFeedbackAudio() {
			clips = append(clips, player.NewBase64Clip("feedback", res.FeedbackAudioBase64))
		}
		if next.HasAudio() {
			clips = append(clips, player.NewBase64Clip("question", next.AudioBase64))
		}
		c.question = next
		c.emitLocked(&QuestionChangedEvent{Question: next})
		c.setTextLocked(feedback)
		c.speakLocked(clips, 0)

		epoch := c.epoch
		c.revealTimer = c.clock.AfterFunc(TextRevealDelay, func() { c.revealQuestion(epoch, attempt, next) })
		return
	}

	if feedback != "" {
		c.setTextLocked(feedback)
	}
	if res.HasFeedbackAudio() {
		c.speakLocked([]player.Clip{player.NewBase64Clip("feedback", res.FeedbackAudioBase64)}, 0)
		return
	}
	c.setStateLocked(StateUserTurn)
}

func (c *Controller) revealQuestion(epoch, attempt uint64, q *types.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || epoch != c.epoch || attempt != c.attempt || c.question != q {
		return
	}
	c.setTextLocked(q.Prompt())
}

func (c *Controller) onEmptyRecordingTimeout(attempt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || attempt != c.attempt || c.state != StateProcessing || c.buffer != nil || c.submitting {
		return
	}
	log.Warn().Str("component", "conversation").Uint64("attempt", attempt).Msg("no recording delivered")
	c.emptyTimer = nil
	c.captureID = 0
	c.recorder.Reset()
	c.metrics.ObserveWatchdog(KindEmptyRecording)
	c.metrics.ObserveTurn(TurnEmptyRecording, 0)
	c.reportLocked(newError(KindEmptyRecording, errors.Errorf("no audio after %s", EmptyRecordingTimeout)))
	c.setStateLocked(StateUserTurn)
}

func (c *Controller) onSubmitTimeout(attempt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || attempt != c.attempt || c.state != StateProcessing || !c.submitting {
		return
	}
	log.Warn().Str("component", "conversation").Uint64("attempt", attempt).Msg("turn result timed out")
	c.submitTimer = nil
	c.endSubmitLocked()
	c.metrics.ObserveWatchdog(KindSlowResponse)
	c.metrics.ObserveTurn(TurnSlowResponse, SubmitTimeout)
	c.reportLocked(newError(KindSlowResponse, errors.Errorf("no response after %s", SubmitTimeout)))
	c.setStateLocked(StateUserTurn)
}

// endSubmitLocked settles the in-flight submission and drops the buffer.
func (c *Controller) endSubmitLocked() {
	stopTimer(&c.submitTimer)
	if c.submitCancel != nil {
		c.submitCancel()
		c.submitCancel = nil
	}
	c.submitting = false
	c.buffer = nil
}

func (c *Controller) onRecorderError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.failCaptureLocked(err)
}

// failCaptureLocked reports a recorder failure. Sessions fall back to
// user_turn; without a session only the error is surfaced.
func (c *Controller) failCaptureLocked(err error) {
	e := newError(KindCapture, err)
	c.metrics.ObserveTurn(TurnCaptureError, 0)
	if !c.state.Active() || c.sessionID == "" {
		c.reportLocked(e)
		return
	}
	c.attempt++
	c.speakGen++
	c.player.Stop()
	c.clearTimersLocked()
	c.endSubmitLocked()
	c.captureID = 0
	c.reportLocked(e)
	c.setStateLocked(StateUserTurn)
}

// speakLocked enters ai_speaking and plays clips after delay. Completion
// falls through to user_turn.
func (c *Controller) speakLocked(clips []player.Clip, delay time.Duration) {
	c.speakGen++
	gen := c.speakGen
	stopTimer(&c.settleTimer)
	c.setStateLocked(StateAISpeaking)
	if delay > 0 {
		c.settleTimer = c.clock.AfterFunc(delay, func() { c.startPlayback(gen, clips) })
		return
	}
	c.playLocked(gen, clips)
}

func (c *Controller) startPlayback(gen uint64, clips []player.Clip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.speakGen || c.state != StateAISpeaking {
		return
	}
	c.settleTimer = nil
	c.playLocked(gen, clips)
}

func (c *Controller) playLocked(gen uint64, clips []player.Clip) {
	c.player.Play(clips, func() { c.onPlaybackComplete(gen) })
}

func (c *Controller) onPlaybackComplete(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.speakGen || c.state != StateAISpeaking {
		return
	}
	c.setStateLocked(StateUserTurn)
}

// Exit abandons the session from any state and returns to start.
func (c *Controller) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.exitLocked()
}

func (c *Controller) exitLocked() {
	c.epoch++
	c.attempt++
	c.speakGen++
	c.player.Stop()
	c.recorder.Reset()
	c.clearTimersLocked()
	c.endSubmitLocked()
	c.busy = false
	c.arming = false
	c.captureID = 0
	if c.sessionID != "" {
		log.Info().Str("component", "conversation").Str("session_id", c.sessionID).Msg("session discarded")
		c.metrics.ObserveSessionEnd()
	}
	c.sessionID = ""
	c.question = nil
	c.summary = nil
	c.lastErr = nil
	c.setTextLocked("")
	c.setStateLocked(StateStart)
}

// EndConversation finalizes the session into a summary. When the summary
// cannot be fetched the controller exits instead.
func (c *Controller) EndConversation(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.state.Active() {
		state := c.state
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "end conversation from %s", state)
	}
	if c.sessionID == "" {
		c.exitLocked()
		c.mu.Unlock()
		return nil
	}
	c.attempt++
	c.speakGen++
	c.player.Stop()
	c.recorder.Reset()
	c.clearTimersLocked()
	c.endSubmitLocked()
	c.captureID = 0
	c.busy = true
	epoch := c.epoch
	sessionID := c.sessionID
	c.mu.Unlock()

	sumCtx, cancel := context.WithTimeout(ctx, c.cfg.SummaryTimeout)
	resp, err := c.exchange.GetSummary(sumCtx, sessionID)
	cancel()
	if err == nil && resp == nil {
		err = errors.New("get summary: empty response")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || epoch != c.epoch {
		return ErrSuperseded
	}
	c.busy = false
	c.metrics.ObserveSummary(err)
	if err != nil {
		e := newError(KindSummary, err)
		c.exitLocked()
		c.reportLocked(e)
		return e
	}

	s := NewSummary(resp)
	log.Info().Str("component", "conversation").Str("session_id", sessionID).Int("total", s.Total).Int("percent", s.Percent).Msg("session summarized")
	c.metrics.ObserveSessionEnd()
	c.sessionID = ""
	c.question = nil
	c.summary = &s
	c.emitLocked(&SummaryEvent{Summary: s})
	c.setStateLocked(StateSummary)
	return nil
}

// NewConversation leaves the summary and begins a fresh session.
func (c *Controller) NewConversation(ctx context.Context, opts BeginOptions) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateSummary {
		state := c.state
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "new conversation from %s", state)
	}
	c.summary = nil
	c.lastErr = nil
	c.setTextLocked("")
	c.setStateLocked(StateStart)
	c.mu.Unlock()
	return c.Begin(ctx, opts)
}

// Close exits and closes the event stream.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.exitLocked()
	c.closed = true
	close(c.events)
	return nil
}

func (c *Controller) guardLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.busy || c.arming {
		return ErrBusy
	}
	return nil
}

func (c *Controller) clearTimersLocked() {
	stopTimer(&c.emptyTimer)
	stopTimer(&c.submitTimer)
	stopTimer(&c.settleTimer)
	stopTimer(&c.revealTimer)
}

func (c *Controller) setStateLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	log.Debug().Str("component", "conversation").Str("from", from.String()).Str("to", to.String()).Msg("state changed")
	c.metrics.ObserveTransition(from, to)
	c.emitLocked(&StateChangedEvent{From: from, To: to})
}

func (c *Controller) setTextLocked(text string) {
	if c.text == text {
		return
	}
	c.text = text
	c.emitLocked(&TextChangedEvent{Text: text})
}

func (c *Controller) reportLocked(e *Error) {
	c.lastErr = e
	log.Warn().Err(e.Err).Str("component", "conversation").Str("kind", string(e.Kind)).Msg(e.Message)
	c.emitLocked(&ErrorEvent{Err: e})
}

func (c *Controller) emitLocked(event Event) {
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
		// Channel full, drop event
	}
}

func stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
