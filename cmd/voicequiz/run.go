package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bclt-academy/voicequiz/pkg/tui"
)

func newRunCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a voice conversation in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := buildStack(app.cfg, nil)
			defer s.Close()

			prog := tea.NewProgram(
				tui.New(s.ctrl, app.cfg.Conversation.BeginOptions()),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return errors.Wrap(err, "run terminal ui")
			}
			return nil
		},
	}
	cmd.Flags().Int("thematic-group", 1, "thematic group to practise (1-6)")
	cmd.Flags().Int("chapter", 0, "restrict questions to this chapter (0 for all)")
	app.bind(cmd.Flags(), map[string]string{
		"conversation.thematic_group": "thematic-group",
		"conversation.chapter_number": "chapter",
	})
	return cmd
}
