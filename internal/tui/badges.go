package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/manara/internal/rag"
)

// formatKindIndicator returns a human-readable label for how the last reply
// was produced.
func formatKindIndicator(kind rag.Kind) string {
	switch kind {
	case rag.KindAnswered:
		return "Last: answered"
	case rag.KindGreeting:
		return "Last: greeting"
	case rag.KindNotFound:
		return "Last: not found"
	case rag.KindError:
		return "Last: error"
	default:
		return "Ready"
	}
}

// renderKindBadge returns a Lipgloss-styled badge for the last reply kind.
func renderKindBadge(kind rag.Kind) string {
	background := "229"
	switch kind {
	case rag.KindError:
		background = "9"
	case rag.KindNotFound:
		background = "214"
	case rag.KindAnswered:
		background = "40"
	}
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color(background)).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)
	return badgeStyle.Render(formatKindIndicator(kind))
}

// renderTurnsBadge shows how many turns are carried into the next question.
func renderTurnsBadge(turns int) string {
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color("255")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)
	return badgeStyle.Render(fmt.Sprintf("History: %d", turns))
}
