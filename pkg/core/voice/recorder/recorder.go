// Package recorder defines the audio capture capability consumed by the
// conversation controller and an ffmpeg-backed implementation of it.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// PermissionStatus mirrors the microphone permission as far as it is known.
type PermissionStatus string

const (
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionUnknown PermissionStatus = "unknown"
)

// ErrorKind classifies capture failures.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNoDevice         ErrorKind = "no_device"
	KindCapture          ErrorKind = "capture_error"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no capture device available")
	ErrNotRecording     = errors.New("no capture in progress")
	ErrUnsupported      = errors.New("audio capture is not supported on this platform")
)

// CaptureError is reported by Start or through the error callback.
type CaptureError struct {
	Kind ErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("recorder: %s", e.Kind)
	}
	return fmt.Sprintf("recorder: %s: %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is(err, ErrNoDevice).
func (e *CaptureError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	case ErrNoDevice:
		return e.Kind == KindNoDevice
	}
	return false
}

// KindOf extracts the capture kind of err, defaulting to KindCapture.
func KindOf(err error) ErrorKind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNoDevice), errors.Is(err, ErrUnsupported):
		return KindNoDevice
	default:
		return KindCapture
	}
}

// CaptureID identifies one Start call. Recordings carry the id of the
// capture that produced them.
type CaptureID uint64

// Recording is the finalized buffer of one capture.
type Recording struct {
	CaptureID CaptureID
	Data      []byte
	MIMEType  string
	Duration  time.Duration
}

// Recorder is the capture capability. Stop returns before the buffer is
// ready; the Recording arrives later through the onRecording callback.
// Reset cancels any capture and guarantees its Recording is never delivered.
// A capture that reaches the maximum duration stops itself.
type Recorder interface {
	Start(ctx context.Context) (CaptureID, error)
	Stop() error
	Reset()
	SetCallbacks(onRecording func(Recording), onError func(error))
	Supported() bool
	PermissionStatus() PermissionStatus
}
