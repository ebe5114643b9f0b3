package player

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedSink struct {
	mu       sync.Mutex
	active   int
	overlaps int
	played   []string
	outcome  map[string]error
	hold     map[string]chan struct{}
}

func newScriptedSink() *scriptedSink {
	return &scriptedSink{outcome: map[string]error{}, hold: map[string]chan struct{}{}}
}

func (s *scriptedSink) Play(ctx context.Context, audio []byte) error {
	name := string(audio)
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlaps++
	}
	s.played = append(s.played, name)
	hold := s.hold[name]
	outcome := s.outcome[name]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return outcome
}

func (s *scriptedSink) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...), s.overlaps
}

func clip(name string) Clip {
	return NewBase64Clip(name, base64.StdEncoding.EncodeToString([]byte(name)))
}

func TestSequential_AdvancesPastFailingClip(t *testing.T) {
	sink := newScriptedSink()
	sink.outcome["one"] = errors.New("decoder error")

	var mu sync.Mutex
	var events []string
	p := NewSequential(sink, Observer{
		OnClipStart: func(i int, c Clip) {
			mu.Lock()
			events = append(events, "start:"+c.Label)
			mu.Unlock()
		},
		OnClipEnd: func(i int, c Clip, result ClipResult, err error) {
			mu.Lock()
			events = append(events, string(result)+":"+c.Label)
			mu.Unlock()
		},
	})

	completed := make(chan struct{})
	p.Play([]Clip{clip("one"), clip("two"), clip("three")}, func() { close(completed) })

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("sequence did not complete")
	}

	played, overlaps := sink.snapshot()
	require.Equal(t, []string{"one", "two", "three"}, played)
	require.Zero(t, overlaps)

	mu.Lock()
	defer mu.Unlock()
	// every clip reaches a terminal event before the next one starts
	require.Equal(t, []string{
		"start:one", "error:one",
		"start:two", "ended:two",
		"start:three", "ended:three",
	}, events)
}

func TestSequential_EmptySequenceCompletesImmediately(t *testing.T) {
	p := NewSequential(newScriptedSink(), Observer{})
	completed := make(chan struct{})
	p.Play(nil, func() { close(completed) })
	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("empty sequence did not signal completion")
	}
}

func TestSequential_UndecodableClipIsSkipped(t *testing.T) {
	sink := newScriptedSink()
	p := NewSequential(sink, Observer{})
	completed := make(chan struct{})
	p.Play([]Clip{NewBase64Clip("bad", "%%%"), clip("good")}, func() { close(completed) })
	<-completed
	played, _ := sink.snapshot()
	require.Equal(t, []string{"good"}, played)
}

func TestSequential_NewSequenceStopsPrevious(t *testing.T) {
	sink := newScriptedSink()
	sink.hold["long"] = make(chan struct{})

	p := NewSequential(sink, Observer{})
	firstDone := make(chan struct{}, 1)
	p.Play([]Clip{clip("long"), clip("never")}, func() { firstDone <- struct{}{} })

	require.Eventually(t, func() bool {
		played, _ := sink.snapshot()
		return len(played) == 1
	}, time.Second, 5*time.Millisecond)

	secondDone := make(chan struct{})
	p.Play([]Clip{clip("next")}, func() { close(secondDone) })
	<-secondDone
	p.Wait()

	played, overlaps := sink.snapshot()
	require.Equal(t, []string{"long", "next"}, played)
	require.Zero(t, overlaps)
	require.Empty(t, firstDone, "superseded sequence must not report completion")
}

func TestSequential_StopSuppressesCompletion(t *testing.T) {
	sink := newScriptedSink()
	sink.hold["a"] = make(chan struct{})

	p := NewSequential(sink, Observer{})
	done := make(chan struct{}, 1)
	p.Play([]Clip{clip("a"), clip("b")}, func() { done <- struct{}{} })

	require.Eventually(t, func() bool {
		played, _ := sink.snapshot()
		return len(played) == 1
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Wait()

	played, _ := sink.snapshot()
	require.Equal(t, []string{"a"}, played)
	require.Empty(t, done)
}

func TestSequential_InterruptedSinkHaltsSequence(t *testing.T) {
	sink := newScriptedSink()
	sink.outcome["a"] = ErrInterrupted

	var results []ClipResult
	var mu sync.Mutex
	p := NewSequential(sink, Observer{OnClipEnd: func(_ int, _ Clip, r ClipResult, _ error) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}})
	p.Play([]Clip{clip("a"), clip("b")}, nil)
	p.Wait()

	played, _ := sink.snapshot()
	require.Equal(t, []string{"a"}, played)
	mu.Lock()
	require.Equal(t, []ClipResult{ClipInterrupted}, results)
	mu.Unlock()
}

func TestClip_BytesAcceptsDataURL(t *testing.T) {
	data, err := NewBase64Clip("q", "data:audio/mpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("mp3"))).Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte("mp3"), data)

	_, err = NewBase64Clip("empty", " ").Bytes()
	require.Error(t, err)
}

func TestFFplayArgs(t *testing.T) {
	f := &FFplay{path: "ffplay", volume: 55, logLevel: "error"}
	require.Equal(t, []string{"-nodisp", "-autoexit", "-loglevel", "error", "-volume", "55", "-i", "pipe:0"}, f.args())
}
