package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bclt-academy/voicequiz/pkg/core/types"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/player"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/recorder"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

type fakeExchange struct {
	mu       sync.Mutex
	starts   int
	startErr error
	question *types.Question
	submits  []*types.SubmitAnswerRequest
	submit   func(ctx context.Context, req *types.SubmitAnswerRequest) (*types.TurnResult, error)
	summary  *types.SummaryResponse
	sumErr   error
	sumIDs   []string
}

func (f *fakeExchange) StartSession(ctx context.Context, req *types.StartSessionRequest) (*types.StartSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts++
	q := f.question
	if q == nil {
		q = &types.Question{ID: "q1", Question: "Comment vous appelez-vous ?"}
	}
	qc := *q
	return &types.StartSessionResponse{SessionID: fmt.Sprintf("session-%d", f.starts), Question: &qc}, nil
}

func (f *fakeExchange) SubmitAnswer(ctx context.Context, req *types.SubmitAnswerRequest) (*types.TurnResult, error) {
	f.mu.Lock()
	f.submits = append(f.submits, req)
	fn := f.submit
	f.mu.Unlock()
	if fn == nil {
		return &types.TurnResult{TranscribedText: "je m'appelle Awa"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeExchange) GetSummary(ctx context.Context, sessionID string) (*types.SummaryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sumIDs = append(f.sumIDs, sessionID)
	if f.sumErr != nil {
		return nil, f.sumErr
	}
	return f.summary, nil
}

func (f *fakeExchange) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func (f *fakeExchange) lastSubmit() *types.SubmitAnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submits) == 0 {
		return nil
	}
	return f.submits[len(f.submits)-1]
}

type fakeRecorder struct {
	mu          sync.Mutex
	nextID      recorder.CaptureID
	startErr    error
	stopErr     error
	starts      int
	stops       int
	resets      int
	permission  recorder.PermissionStatus
	onRecording func(recorder.Recording)
	onError     func(error)
}

func (r *fakeRecorder) Start(ctx context.Context) (recorder.CaptureID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return 0, r.startErr
	}
	r.nextID++
	return r.nextID, nil
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return r.stopErr
}

func (r *fakeRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *fakeRecorder) SetCallbacks(onRecording func(recorder.Recording), onError func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecording = onRecording
	r.onError = onError
}

func (r *fakeRecorder) Supported() bool { return true }

func (r *fakeRecorder) PermissionStatus() recorder.PermissionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.permission == "" {
		return recorder.PermissionPrompt
	}
	return r.permission
}

func (r *fakeRecorder) lastID() recorder.CaptureID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextID
}

func (r *fakeRecorder) resetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

func (r *fakeRecorder) deliver(id recorder.CaptureID, mime string) {
	r.mu.Lock()
	fn := r.onRecording
	r.mu.Unlock()
	fn(recorder.Recording{CaptureID: id, Data: []byte("opus-bytes"), MIMEType: mime, Duration: 2 * time.Second})
}

func (r *fakeRecorder) fail(err error) {
	r.mu.Lock()
	fn := r.onError
	r.mu.Unlock()
	fn(err)
}

type fakePlayer struct {
	mu        sync.Mutex
	plays     [][]player.Clip
	completes []func()
	stops     int
}

func (p *fakePlayer) Play(clips []player.Clip, onComplete func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, clips)
	p.completes = append(p.completes, onComplete)
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakePlayer) lastClips() []player.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.plays) == 0 {
		return nil
	}
	return p.plays[len(p.plays)-1]
}

// finish runs the completion callback of the most recent sequence.
func (p *fakePlayer) finish() {
	p.mu.Lock()
	fn := p.completes[len(p.completes)-1]
	p.mu.Unlock()
	fn()
}

type harness struct {
	t     *testing.T
	clock *clockwork.FakeClock
	ex    *fakeExchange
	rec   *fakeRecorder
	pl    *fakePlayer
	ctrl  *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: clockwork.NewFakeClock(),
		ex:    &fakeExchange{},
		rec:   &fakeRecorder{},
		pl:    &fakePlayer{},
	}
	h.ctrl = New(h.ex, h.rec, h.pl, WithClock(h.clock), WithConfig(Config{EventBuffer: 1024}))
	t.Cleanup(func() { _ = h.ctrl.Close() })
	return h
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.ctrl.State() == want }, 2*time.Second, time.Millisecond,
		"state never became %s (now %s)", want, h.ctrl.State())
}

func (h *harness) begin() {
	h.t.Helper()
	require.NoError(h.t, h.ctrl.Begin(context.Background(), BeginOptions{ThematicGroup: 1}))
}

// toRecording drives a fresh controller into recording.
func (h *harness) toRecording() {
	h.t.Helper()
	h.begin()
	require.Equal(h.t, StateUserTurn, h.ctrl.State())
	require.NoError(h.t, h.ctrl.MicPress(context.Background()))
	require.Equal(h.t, StateRecording, h.ctrl.State())
}

// toProcessing drives a fresh controller into processing without a buffer.
func (h *harness) toProcessing() {
	h.t.Helper()
	h.toRecording()
	require.NoError(h.t, h.ctrl.MicPress(context.Background()))
	require.Equal(h.t, StateProcessing, h.ctrl.State())
}

// drain collects the events emitted so far.
func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-h.ctrl.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func errorKinds(events []Event) []ErrorKind {
	var kinds []ErrorKind
	for _, ev := range events {
		if e, ok := ev.(*ErrorEvent); ok {
			kinds = append(kinds, e.Err.Kind)
		}
	}
	return kinds
}

func intPtr(v int) *int { return &v }
