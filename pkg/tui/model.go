// Package tui renders a conversation controller as a terminal screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
)

// Controller is the part of *conversation.Controller the screen drives.
type Controller interface {
	Events() <-chan conversation.Event
	Snapshot() conversation.Snapshot
	RecorderSupported() bool
	Begin(ctx context.Context, opts conversation.BeginOptions) error
	MicPress(ctx context.Context) error
	EndConversation(ctx context.Context) error
	NewConversation(ctx context.Context, opts conversation.BeginOptions) error
	Exit()
}

type eventMsg struct{ ev conversation.Event }

type eventsClosedMsg struct{}

type commandDoneMsg struct {
	op  string
	err error
}

type Model struct {
	ctrl   Controller
	opts   conversation.BeginOptions
	keys   KeyMap
	help   help.Model
	spin   spinner.Model
	snap   conversation.Snapshot
	notice string
	width  int
}

// New builds the screen. opts selects the content for begin and new.
func New(ctrl Controller, opts conversation.BeginOptions) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2A900"))
	return Model{
		ctrl: ctrl,
		opts: opts,
		keys: Keys,
		help: help.New(),
		spin: sp,
		snap: ctrl.Snapshot(),
	}
}

func waitForEvent(ch <-chan conversation.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.ctrl.Events()))
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg{op: op, err: fn(context.Background())}
	}
}

// canBegin gates the begin affordance on microphone availability.
func (m Model) canBegin() bool {
	return m.snap.State == conversation.StateStart && !m.snap.Busy && m.ctrl.RecorderSupported()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.snap = m.ctrl.Snapshot()
		if _, ok := msg.ev.(*conversation.StateChangedEvent); ok {
			m.notice = ""
		}
		return m, waitForEvent(m.ctrl.Events())

	case eventsClosedMsg:
		return m, tea.Quit

	case commandDoneMsg:
		m.snap = m.ctrl.Snapshot()
		m.notice = noticeFor(msg.err)
		if msg.err != nil {
			log.Debug().Str("component", "tui").Str("op", msg.op).Err(msg.err).Msg("command rejected")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Exit()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Begin):
		if !m.canBegin() {
			return m, nil
		}
		opts := m.opts
		return m, m.run("begin", func(ctx context.Context) error { return m.ctrl.Begin(ctx, opts) })
	case key.Matches(msg, m.keys.Mic):
		return m, m.run("mic", m.ctrl.MicPress)
	case key.Matches(msg, m.keys.End):
		if !m.snap.State.Active() {
			return m, nil
		}
		return m, m.run("end", m.ctrl.EndConversation)
	case key.Matches(msg, m.keys.New):
		if m.snap.State != conversation.StateSummary {
			return m, nil
		}
		opts := m.opts
		return m, m.run("new", func(ctx context.Context) error { return m.ctrl.NewConversation(ctx, opts) })
	case key.Matches(msg, m.keys.Exit):
		m.ctrl.Exit()
		m.snap = m.ctrl.Snapshot()
		return m, nil
	}
	return m, nil
}

// noticeFor returns the line shown for a rejected command. Controller
// errors already reach the screen through the snapshot.
func noticeFor(err error) string {
	var ce *conversation.Error
	switch {
	case err == nil, errors.Is(err, conversation.ErrSuperseded), errors.As(err, &ce):
		return ""
	case errors.Is(err, conversation.ErrBusy):
		return "Un instant, une opération est en cours."
	case errors.Is(err, conversation.ErrInvalidTransition):
		return "Action indisponible pour le moment."
	default:
		return err.Error()
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("BCLT Academy · Quiz vocal"))
	b.WriteString("  ")
	b.WriteString(badge(m.snap.State))
	if m.snap.Busy || m.snap.State == conversation.StateProcessing {
		b.WriteString(" ")
		b.WriteString(m.spin.View())
	}
	b.WriteString("\n\n")

	switch {
	case m.snap.State == conversation.StateSummary && m.snap.Summary != nil:
		b.WriteString(renderSummary(*m.snap.Summary))
		b.WriteString("\n")
	case m.snap.State == conversation.StateStart && !m.ctrl.RecorderSupported():
		b.WriteString(ErrorStyle.Render("Micro indisponible : la conversation ne peut pas commencer."))
		b.WriteString("\n")
	case m.snap.Text != "":
		style := TextStyle
		if m.width > 8 && m.width-4 < 72 {
			style = style.Width(m.width - 4)
		}
		b.WriteString(style.Render(m.snap.Text))
		b.WriteString("\n")
	case m.snap.State == conversation.StateStart:
		b.WriteString(NoticeStyle.Render("Appuyez sur entrée pour commencer."))
		b.WriteString("\n")
	}

	if m.snap.Error != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(m.snap.Error.Message))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(NoticeStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func renderSummary(s conversation.Summary) string {
	lines := []string{
		TitleStyle.Render("Bilan de la conversation"),
		"",
		fmt.Sprintf("Correctes             %d", s.Correct),
		fmt.Sprintf("Partiellement         %d", s.PartiallyCorrect),
		fmt.Sprintf("Incorrectes           %d", s.Incorrect),
		fmt.Sprintf("Échanges              %d", s.Total),
		"",
		fmt.Sprintf("Score                 %d%%", s.Percent),
	}
	return SummaryCardStyle.Render(strings.Join(lines, "\n"))
}
