package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// FFplay is a Sink that pipes each clip into a short-lived ffplay process.
type FFplay struct {
	path     string
	volume   int
	logLevel string
}

// NewFFplay locates the ffplay binary. An empty path means "ffplay" on PATH.
func NewFFplay(path string, volume int) (*FFplay, error) {
	if strings.TrimSpace(path) == "" {
		path = "ffplay"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, errors.New("ffplay is required for playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	if volume <= 0 || volume > 100 {
		volume = 80
	}
	return &FFplay{path: resolved, volume: volume, logLevel: "error"}, nil
}

func (f *FFplay) args() []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", f.logLevel,
		"-volume", fmt.Sprintf("%d", f.volume),
		"-i", "pipe:0",
	}
}

// Play blocks until ffplay exits. A cancelled ctx kills the process and
// reports ErrInterrupted.
func (f *FFplay) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return errors.New("empty clip")
	}
	cmd := exec.CommandContext(ctx, f.path, f.args()...)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return errors.Wrap(ErrInterrupted, ctx.Err().Error())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			return errors.Wrap(err, "ffplay")
		}
		return errors.Wrapf(err, "ffplay: %s", msg)
	}
	return nil
}
