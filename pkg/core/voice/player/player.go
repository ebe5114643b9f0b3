// Package player plays ordered sequences of synthesized audio clips, one at
// a time, on an exclusive output sink.
package player

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrInterrupted is returned by a Sink when playback was cut short on
// purpose. It halts the sequence instead of skipping to the next clip.
var ErrInterrupted = errors.New("playback interrupted")

// Sink plays a single encoded clip and blocks until it ends, fails or ctx
// is cancelled.
type Sink interface {
	Play(ctx context.Context, audio []byte) error
}

// Clip is one entry of a sequence. Its payload is decoded lazily, right
// before it is handed to the sink.
type Clip struct {
	Label  string
	Base64 string
	Data   []byte
}

// NewBase64Clip returns a clip backed by a base64 payload.
func NewBase64Clip(label, payload string) Clip {
	return Clip{Label: label, Base64: payload}
}

// Bytes decodes the clip payload.
func (c Clip) Bytes() ([]byte, error) {
	if len(c.Data) > 0 {
		return c.Data, nil
	}
	payload := strings.TrimSpace(c.Base64)
	if payload == "" {
		return nil, errors.Errorf("clip %q is empty", c.Label)
	}
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "decode clip %q", c.Label)
	}
	return data, nil
}

// ClipResult describes how one clip finished.
type ClipResult string

const (
	ClipEnded       ClipResult = "ended"
	ClipError       ClipResult = "error"
	ClipInterrupted ClipResult = "interrupted"
)

// Observer is notified around each clip. Either field may be nil.
type Observer struct {
	OnClipStart func(index int, clip Clip)
	OnClipEnd   func(index int, clip Clip, result ClipResult, err error)
}

// Sequential owns the single active playback handle. Starting a new
// sequence stops the previous one before any of its clips reach the sink.
type Sequential struct {
	sink     Sink
	observer Observer

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSequential creates a player writing to sink.
func NewSequential(sink Sink, observer Observer) *Sequential {
	return &Sequential{sink: sink, observer: observer}
}

// Play starts clips in order and returns immediately. onComplete runs once
// the last clip reached a terminal event, unless the sequence was stopped or
// superseded first. An empty sequence completes right away. onComplete is
// always invoked from the player goroutine, never from Play itself.
func (p *Sequential) Play(clips []Clip, onComplete func()) {
	p.mu.Lock()
	p.seq++
	id := p.seq
	if p.cancel != nil {
		p.cancel()
	}
	prev := p.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	queued := append([]Clip(nil), clips...)
	go p.run(ctx, id, prev, done, queued, onComplete)
}

// Stop interrupts the active sequence. It does not wait for the sink to
// release the output.
func (p *Sequential) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Wait blocks until the most recent sequence goroutine has exited.
func (p *Sequential) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Sequential) current(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq == id
}

func (p *Sequential) run(ctx context.Context, id uint64, prev <-chan struct{}, done chan struct{}, clips []Clip, onComplete func()) {
	defer close(done)
	if prev != nil {
		<-prev
	}

	for i, clip := range clips {
		if ctx.Err() != nil {
			return
		}
		data, err := clip.Bytes()
		if err != nil {
			log.Debug().Err(err).Str("component", "player").Int("clip", i).Msg("skipping undecodable clip")
			p.clipEnd(i, clip, ClipError, err)
			continue
		}

		p.clipStart(i, clip)
		err = p.sink.Play(ctx, data)
		switch {
		case err == nil:
			p.clipEnd(i, clip, ClipEnded, nil)
		case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInterrupted):
			p.clipEnd(i, clip, ClipInterrupted, err)
			return
		default:
			log.Debug().Err(err).Str("component", "player").Int("clip", i).Msg("clip playback failed, advancing")
			p.clipEnd(i, clip, ClipError, err)
		}
	}

	if ctx.Err() != nil || !p.current(id) {
		return
	}
	if onComplete != nil {
		onComplete()
	}
}

func (p *Sequential) clipStart(i int, clip Clip) {
	if p.observer.OnClipStart != nil {
		p.observer.OnClipStart(i, clip)
	}
}

func (p *Sequential) clipEnd(i int, clip Clip, result ClipResult, err error) {
	if p.observer.OnClipEnd != nil {
		p.observer.OnClipEnd(i, clip, result, err)
	}
}
