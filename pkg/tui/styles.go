package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	badgeBase = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("#FFFFFF"))

	TextStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Width(72)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	NoticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	SummaryCardStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#7D56F4")).
				Padding(1, 2)
)

var badgeColors = map[conversation.State]lipgloss.Color{
	conversation.StateStart:      lipgloss.Color("240"),
	conversation.StateAISpeaking: lipgloss.Color("#5A56E0"),
	conversation.StateUserTurn:   lipgloss.Color("#04B575"),
	conversation.StateRecording:  lipgloss.Color("#E0245E"),
	conversation.StateProcessing: lipgloss.Color("#F2A900"),
	conversation.StateSummary:    lipgloss.Color("#7D56F4"),
}

var badgeLabels = map[conversation.State]string{
	conversation.StateStart:      "PRÊT",
	conversation.StateAISpeaking: "L'IA PARLE",
	conversation.StateUserTurn:   "À VOUS",
	conversation.StateRecording:  "ENREGISTREMENT",
	conversation.StateProcessing: "ANALYSE",
	conversation.StateSummary:    "BILAN",
}

func badge(s conversation.State) string {
	return badgeBase.Background(badgeColors[s]).Render(badgeLabels[s])
}
