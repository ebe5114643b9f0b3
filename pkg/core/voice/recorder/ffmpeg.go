package recorder

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Container is the encoded format ffmpeg writes to stdout.
type Container string

const (
	ContainerWebM Container = "webm"
	ContainerOgg  Container = "ogg"
	ContainerMP4  Container = "mp4"
	ContainerWAV  Container = "wav"
)

const (
	DefaultMaxDuration  = 60 * time.Second
	DefaultStartupGrace = 300 * time.Millisecond
	finalizeTimeout     = 5 * time.Second
)

// MIMEType is the content type reported on recordings of this container.
func (c Container) MIMEType() string {
	switch c {
	case ContainerOgg:
		return "audio/ogg;codecs=opus"
	case ContainerMP4:
		return "audio/mp4"
	case ContainerWAV:
		return "audio/wav"
	default:
		return "audio/webm;codecs=opus"
	}
}

func (c Container) encoderArgs() []string {
	switch c {
	case ContainerOgg:
		return []string{"-c:a", "libopus", "-b:a", "32k", "-f", "ogg"}
	case ContainerMP4:
		return []string{"-c:a", "aac", "-b:a", "64k", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4"}
	case ContainerWAV:
		return []string{"-c:a", "pcm_s16le", "-ar", "16000", "-f", "wav"}
	default:
		return []string{"-c:a", "libopus", "-b:a", "32k", "-f", "webm"}
	}
}

// Config controls the ffmpeg capture. Zero values pick platform defaults.
type Config struct {
	FFmpegPath   string
	InputFormat  string
	Device       string
	Container    Container
	MaxDuration  time.Duration
	StartupGrace time.Duration
}

func (c Config) withDefaults(goos string) Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.InputFormat == "" {
		switch goos {
		case "darwin":
			c.InputFormat = "avfoundation"
		case "linux":
			c.InputFormat = "pulse"
		}
	}
	if c.Device == "" {
		if c.InputFormat == "avfoundation" {
			c.Device = ":0"
		} else {
			c.Device = "default"
		}
	}
	if c.Container == "" {
		c.Container = ContainerWebM
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = DefaultStartupGrace
	}
	return c
}

// Args returns the ffmpeg arguments for one capture.
func (c Config) Args() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", c.InputFormat, "-i", c.Device,
		"-ac", "1",
	}
	args = append(args, c.Container.encoderArgs()...)
	return append(args, "pipe:1")
}

type commandFunc func(name string, args ...string) *exec.Cmd

// FFmpeg captures the microphone with an ffmpeg subprocess per recording.
type FFmpeg struct {
	cfg       Config
	clock     clockwork.Clock
	command   commandFunc
	supported bool

	mu          sync.Mutex
	nextID      CaptureID
	active      *capture
	permission  PermissionStatus
	onRecording func(Recording)
	onError     func(error)
}

type capture struct {
	id       CaptureID
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	started  time.Time
	maxTimer clockwork.Timer
	exited   chan struct{}
	waitErr  error

	stopping  bool
	discarded bool
}

// Option customizes an FFmpeg recorder.
type Option func(*FFmpeg)

// WithClock replaces the clock used for the max-duration timer.
func WithClock(c clockwork.Clock) Option {
	return func(f *FFmpeg) {
		if c != nil {
			f.clock = c
		}
	}
}

func withCommand(fn commandFunc) Option {
	return func(f *FFmpeg) {
		f.command = fn
		f.supported = true
	}
}

// NewFFmpeg builds a recorder. A missing ffmpeg binary or an unknown
// platform yields a recorder that reports Supported() == false.
func NewFFmpeg(cfg Config, opts ...Option) *FFmpeg {
	cfg = cfg.withDefaults(runtime.GOOS)
	f := &FFmpeg{
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		command:    exec.Command,
		permission: PermissionPrompt,
	}
	if path, err := exec.LookPath(cfg.FFmpegPath); err == nil && cfg.InputFormat != "" {
		f.cfg.FFmpegPath = path
		f.supported = true
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if !f.supported {
		f.permission = PermissionUnknown
	}
	return f
}

func (f *FFmpeg) Supported() bool { return f.supported }

// Config returns the effective capture settings after platform defaults.
func (f *FFmpeg) Config() Config { return f.cfg }

func (f *FFmpeg) PermissionStatus() PermissionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

func (f *FFmpeg) SetCallbacks(onRecording func(Recording), onError func(error)) {
	f.mu.Lock()
	f.onRecording = onRecording
	f.onError = onError
	f.mu.Unlock()
}

// Start launches a capture. Any earlier capture still finalizing is
// discarded so its buffer is never delivered.
func (f *FFmpeg) Start(ctx context.Context) (CaptureID, error) {
	if !f.supported {
		return 0, &CaptureError{Kind: KindNoDevice, Err: ErrUnsupported}
	}
	f.mu.Lock()
	if f.active != nil {
		f.discardLocked(f.active)
	}
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	c := &capture{id: id, exited: make(chan struct{})}
	c.cmd = f.command(f.cfg.FFmpegPath, f.cfg.Args()...)
	c.cmd.Stdout = &c.stdout
	c.cmd.Stderr = &c.stderr
	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return 0, &CaptureError{Kind: KindCapture, Err: errors.Wrap(err, "open ffmpeg stdin")}
	}
	c.stdin = stdin
	if err := c.cmd.Start(); err != nil {
		return 0, &CaptureError{Kind: KindCapture, Err: errors.Wrap(err, "start ffmpeg capture")}
	}
	c.started = f.clock.Now()
	go func() {
		c.waitErr = c.cmd.Wait()
		close(c.exited)
	}()

	// Device acquisition failures surface as an early exit.
	select {
	case <-c.exited:
		cerr := classify(c.stderr.String(), c.waitErr)
		f.mu.Lock()
		if cerr.Kind == KindPermissionDenied {
			f.permission = PermissionDenied
		}
		f.mu.Unlock()
		return 0, cerr
	case <-ctx.Done():
		_ = c.cmd.Process.Kill()
		<-c.exited
		return 0, ctx.Err()
	case <-time.After(f.cfg.StartupGrace):
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextID != id {
		// A concurrent Start superseded this one.
		_ = c.cmd.Process.Kill()
		return 0, &CaptureError{Kind: KindCapture, Err: errors.New("capture superseded")}
	}
	f.permission = PermissionGranted
	f.active = c
	c.maxTimer = f.clock.AfterFunc(f.cfg.MaxDuration, func() {
		log.Debug().Str("component", "recorder").Uint64("capture_id", uint64(id)).Msg("max duration reached")
		f.stopCapture(c)
	})
	go f.watch(c)
	return id, nil
}

// Stop asks ffmpeg to finish the container. The Recording is delivered
// asynchronously.
func (f *FFmpeg) Stop() error {
	f.mu.Lock()
	c := f.active
	f.mu.Unlock()
	if c == nil {
		return ErrNotRecording
	}
	if !f.stopCapture(c) {
		return ErrNotRecording
	}
	return nil
}

func (f *FFmpeg) stopCapture(c *capture) bool {
	f.mu.Lock()
	if f.active != c || c.stopping || c.discarded {
		f.mu.Unlock()
		return false
	}
	c.stopping = true
	if c.maxTimer != nil {
		c.maxTimer.Stop()
	}
	f.mu.Unlock()

	// ffmpeg finalizes the output on "q".
	_, _ = io.WriteString(c.stdin, "q")
	_ = c.stdin.Close()
	go func() {
		select {
		case <-c.exited:
		case <-time.After(finalizeTimeout):
			_ = c.cmd.Process.Kill()
			<-c.exited
		}
	}()
	return true
}

// Reset kills any capture without delivering its buffer. A Start still
// acquiring the device is superseded as well.
func (f *FFmpeg) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if f.active != nil {
		f.discardLocked(f.active)
	}
}

func (f *FFmpeg) discardLocked(c *capture) {
	c.discarded = true
	if c.maxTimer != nil {
		c.maxTimer.Stop()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	if f.active == c {
		f.active = nil
	}
}

func (f *FFmpeg) watch(c *capture) {
	<-c.exited

	f.mu.Lock()
	if c.discarded || f.active != c {
		f.mu.Unlock()
		return
	}
	f.active = nil
	stopping := c.stopping
	if c.maxTimer != nil {
		c.maxTimer.Stop()
	}
	onRecording, onError := f.onRecording, f.onError
	f.mu.Unlock()

	if !stopping {
		cerr := classify(c.stderr.String(), c.waitErr)
		log.Warn().Err(cerr).Str("component", "recorder").Uint64("capture_id", uint64(c.id)).Msg("capture ended unexpectedly")
		if onError != nil {
			onError(cerr)
		}
		return
	}
	data := c.stdout.Bytes()
	if len(data) == 0 {
		cerr := &CaptureError{Kind: KindCapture, Err: errors.New("no audio captured")}
		if onError != nil {
			onError(cerr)
		}
		return
	}
	rec := Recording{
		CaptureID: c.id,
		Data:      append([]byte(nil), data...),
		MIMEType:  f.cfg.Container.MIMEType(),
		Duration:  f.clock.Since(c.started),
	}
	log.Debug().Str("component", "recorder").Uint64("capture_id", uint64(c.id)).Int("bytes", len(rec.Data)).Dur("duration", rec.Duration).Msg("recording finalized")
	if onRecording != nil {
		onRecording(rec)
	}
}

var (
	permissionMarkers = []string{"permission denied", "not authorized", "operation not permitted", "access denied"}
	noDeviceMarkers   = []string{"no such device", "no such file or directory", "connection refused", "unknown input format", "cannot open audio device", "input/output error", "no capture device"}
)

func classify(stderr string, waitErr error) *CaptureError {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	detail := errors.New(msg)
	if msg == "" {
		if waitErr == nil {
			waitErr = errors.New("ffmpeg exited")
		}
		detail = waitErr
	}
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			return &CaptureError{Kind: KindPermissionDenied, Err: detail}
		}
	}
	for _, m := range noDeviceMarkers {
		if strings.Contains(lower, m) {
			return &CaptureError{Kind: KindNoDevice, Err: detail}
		}
	}
	return &CaptureError{Kind: KindCapture, Err: detail}
}

// ListDevicesArgs returns the ffmpeg invocation that enumerates inputs.
func (c Config) ListDevicesArgs() []string {
	if c.InputFormat == "avfoundation" {
		return []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}
	}
	return []string{"-hide_banner", "-sources", c.InputFormat}
}

// ListDevices runs ffmpeg's device enumeration and returns its text output.
func (f *FFmpeg) ListDevices(ctx context.Context) (string, error) {
	if !f.supported {
		return "", ErrUnsupported
	}
	cmd := exec.CommandContext(ctx, f.cfg.FFmpegPath, f.cfg.ListDevicesArgs()...)
	out, err := cmd.CombinedOutput()
	// ffmpeg exits non-zero after printing device lists.
	if len(out) > 0 {
		return string(out), nil
	}
	if err != nil {
		return "", errors.Wrap(err, "list devices")
	}
	return "", nil
}

var _ Recorder = (*FFmpeg)(nil)
