package recorder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helperCommand(mode string) commandFunc {
	return func(name string, args ...string) *exec.Cmd {
		cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
}

// TestHelperProcess stands in for ffmpeg when launched by helperCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	waitForQuit := func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil || (n == 1 && buf[0] == 'q') {
				return
			}
		}
	}
	switch os.Getenv("HELPER_MODE") {
	case "record":
		fmt.Fprint(os.Stdout, "OPUS")
		waitForQuit()
		fmt.Fprint(os.Stdout, "DATA")
	case "silent":
		waitForQuit()
	case "denied":
		fmt.Fprint(os.Stderr, "[pulse] default: Permission denied")
		os.Exit(1)
	case "nodevice":
		fmt.Fprint(os.Stderr, "default: No such device")
		os.Exit(1)
	case "crash":
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(os.Stderr, "stream glitch")
		os.Exit(1)
	}
	os.Exit(0)
}

func newTestRecorder(mode string, opts ...Option) *FFmpeg {
	opts = append([]Option{withCommand(helperCommand(mode))}, opts...)
	return NewFFmpeg(Config{StartupGrace: 30 * time.Millisecond}, opts...)
}

type callbacks struct {
	recordings chan Recording
	errs       chan error
}

func watchCallbacks(r *FFmpeg) callbacks {
	cb := callbacks{recordings: make(chan Recording, 4), errs: make(chan error, 4)}
	r.SetCallbacks(func(rec Recording) { cb.recordings <- rec }, func(err error) { cb.errs <- err })
	return cb
}

func TestFFmpeg_StopDeliversRecording(t *testing.T) {
	r := newTestRecorder("record")
	cb := watchCallbacks(r)
	require.Equal(t, PermissionPrompt, r.PermissionStatus())

	id, err := r.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, CaptureID(1), id)
	require.Equal(t, PermissionGranted, r.PermissionStatus())

	require.NoError(t, r.Stop())
	require.ErrorIs(t, r.Stop(), ErrNotRecording)

	select {
	case rec := <-cb.recordings:
		assert.Equal(t, id, rec.CaptureID)
		assert.Equal(t, "OPUSDATA", string(rec.Data))
		assert.Equal(t, "audio/webm;codecs=opus", rec.MIMEType)
	case err := <-cb.errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("recording not delivered")
	}
}

func TestFFmpeg_CaptureIDsIncrease(t *testing.T) {
	r := newTestRecorder("record")
	cb := watchCallbacks(r)

	first, err := r.Start(context.Background())
	require.NoError(t, err)
	second, err := r.Start(context.Background())
	require.NoError(t, err)
	require.Greater(t, second, first)

	require.NoError(t, r.Stop())
	select {
	case rec := <-cb.recordings:
		assert.Equal(t, second, rec.CaptureID)
	case <-time.After(5 * time.Second):
		t.Fatal("recording not delivered")
	}
	select {
	case rec := <-cb.recordings:
		t.Fatalf("discarded capture delivered: %d", rec.CaptureID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFFmpeg_ResetDiscardsBuffer(t *testing.T) {
	r := newTestRecorder("record")
	cb := watchCallbacks(r)

	_, err := r.Start(context.Background())
	require.NoError(t, err)
	r.Reset()
	require.ErrorIs(t, r.Stop(), ErrNotRecording)

	select {
	case rec := <-cb.recordings:
		t.Fatalf("reset capture delivered: %d", rec.CaptureID)
	case err := <-cb.errs:
		t.Fatalf("reset capture reported error: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFFmpeg_MaxDurationAutoStops(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := NewFFmpeg(Config{StartupGrace: 30 * time.Millisecond, MaxDuration: 10 * time.Second},
		withCommand(helperCommand("record")), WithClock(fc))
	cb := watchCallbacks(r)

	_, err := r.Start(context.Background())
	require.NoError(t, err)
	fc.Advance(10 * time.Second)

	select {
	case rec := <-cb.recordings:
		assert.Equal(t, "OPUSDATA", string(rec.Data))
		assert.Equal(t, 10*time.Second, rec.Duration)
	case <-time.After(5 * time.Second):
		t.Fatal("auto-stop did not deliver")
	}
	require.ErrorIs(t, r.Stop(), ErrNotRecording)
}

func TestFFmpeg_StartFailures(t *testing.T) {
	tests := []struct {
		mode       string
		kind       ErrorKind
		sentinel   error
		permission PermissionStatus
	}{
		{mode: "denied", kind: KindPermissionDenied, sentinel: ErrPermissionDenied, permission: PermissionDenied},
		{mode: "nodevice", kind: KindNoDevice, sentinel: ErrNoDevice, permission: PermissionPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r := NewFFmpeg(Config{StartupGrace: 2 * time.Second}, withCommand(helperCommand(tt.mode)))
			_, err := r.Start(context.Background())
			require.Error(t, err)
			require.ErrorIs(t, err, tt.sentinel)
			require.Equal(t, tt.kind, KindOf(err))
			require.Equal(t, tt.permission, r.PermissionStatus())
		})
	}
}

func TestFFmpeg_UnexpectedExitReportsError(t *testing.T) {
	r := newTestRecorder("crash")
	cb := watchCallbacks(r)

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	select {
	case err := <-cb.errs:
		assert.Equal(t, KindCapture, KindOf(err))
		assert.Contains(t, err.Error(), "stream glitch")
	case <-time.After(5 * time.Second):
		t.Fatal("error not reported")
	}
}

func TestFFmpeg_EmptyCaptureReportsError(t *testing.T) {
	r := newTestRecorder("silent")
	cb := watchCallbacks(r)

	_, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Stop())

	select {
	case err := <-cb.errs:
		assert.Contains(t, err.Error(), "no audio captured")
	case <-cb.recordings:
		t.Fatal("empty capture delivered")
	case <-time.After(5 * time.Second):
		t.Fatal("error not reported")
	}
}

func TestFFmpeg_Unsupported(t *testing.T) {
	r := NewFFmpeg(Config{FFmpegPath: "ffmpeg-binary-that-does-not-exist"})
	require.False(t, r.Supported())
	require.Equal(t, PermissionUnknown, r.PermissionStatus())

	_, err := r.Start(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = r.ListDevices(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestConfig_Args(t *testing.T) {
	linux := Config{}.withDefaults("linux")
	require.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "pulse", "-i", "default",
		"-ac", "1",
		"-c:a", "libopus", "-b:a", "32k", "-f", "webm",
		"pipe:1",
	}, linux.Args())

	darwin := Config{Container: ContainerWAV}.withDefaults("darwin")
	require.Equal(t, "avfoundation", darwin.InputFormat)
	require.Equal(t, ":0", darwin.Device)
	require.Contains(t, darwin.Args(), "pcm_s16le")
	require.Equal(t, DefaultMaxDuration, darwin.MaxDuration)

	require.Equal(t, []string{"-hide_banner", "-sources", "pulse"}, linux.ListDevicesArgs())
	require.Contains(t, darwin.ListDevicesArgs(), "-list_devices")
}

func TestContainer_MIMEType(t *testing.T) {
	require.Equal(t, "audio/webm;codecs=opus", ContainerWebM.MIMEType())
	require.Equal(t, "audio/ogg;codecs=opus", ContainerOgg.MIMEType())
	require.Equal(t, "audio/mp4", ContainerMP4.MIMEType())
	require.Equal(t, "audio/wav", ContainerWAV.MIMEType())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		stderr string
		want   ErrorKind
	}{
		{stderr: "Permission denied", want: KindPermissionDenied},
		{stderr: "[avfoundation] Not authorized to capture audio", want: KindPermissionDenied},
		{stderr: "alsa: cannot open audio device hw:1", want: KindNoDevice},
		{stderr: "Unknown input format: 'pulse'", want: KindNoDevice},
		{stderr: "pa_context_connect() failed: Connection refused", want: KindNoDevice},
		{stderr: "something else", want: KindCapture},
		{stderr: "", want: KindCapture},
	}
	for _, tt := range tests {
		t.Run(tt.stderr, func(t *testing.T) {
			got := classify(tt.stderr, errors.New("exit status 1"))
			require.Equal(t, tt.want, got.Kind)
			require.NotEmpty(t, got.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindPermissionDenied, KindOf(errors.Wrap(ErrPermissionDenied, "start")))
	require.Equal(t, KindNoDevice, KindOf(ErrUnsupported))
	require.Equal(t, KindCapture, KindOf(errors.New("boom")))
	require.Equal(t, KindNoDevice, KindOf(errors.Wrap(&CaptureError{Kind: KindNoDevice}, "wrapped")))
}
