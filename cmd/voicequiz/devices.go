package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bclt-academy/voicequiz/pkg/config"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/player"
	"github.com/bclt-academy/voicequiz/pkg/core/voice/recorder"
)

func newDevicesCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Report microphone and playback availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := recorder.NewFFmpeg(app.cfg.Recorder.Capture())
			return reportDevices(cmd, cmd.OutOrStdout(), app.cfg, rec)
		},
	}
}

func reportDevices(cmd *cobra.Command, w io.Writer, cfg config.Config, rec *recorder.FFmpeg) error {
	capture := rec.Config()
	fmt.Fprintf(w, "recorder supported:  %t\n", rec.Supported())
	fmt.Fprintf(w, "permission status:   %s\n", rec.PermissionStatus())
	fmt.Fprintf(w, "input:               %s %s\n", capture.InputFormat, capture.Device)
	fmt.Fprintf(w, "container:           %s (%s)\n", capture.Container, capture.Container.MIMEType())

	if _, err := player.NewFFplay(cfg.Player.FFplayPath, cfg.Player.Volume); err != nil {
		fmt.Fprintf(w, "playback:            unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(w, "playback:            ffplay\n")
	}

	if !rec.Supported() {
		return nil
	}
	listing, err := rec.ListDevices(cmd.Context())
	if err != nil {
		fmt.Fprintf(w, "device listing failed: %v\n", err)
		return nil
	}
	if listing = strings.TrimSpace(listing); listing != "" {
		fmt.Fprintf(w, "\n%s\n", listing)
	}
	return nil
}
