package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	colorPrimary = lipgloss.Color("#2563EB") // blue-600
	colorAccent  = lipgloss.Color("#8B5CF6")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorBorder  = lipgloss.Color("#374151")
	colorSuccess = lipgloss.Color("#22C55E")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
)

var difficultyColors = map[string]lipgloss.Color{
	"easy":   colorSuccess,
	"medium": colorWarning,
	"hard":   colorError,
}

// Styles holds the styled components of the workspace
type Styles struct {
	Header      lipgloss.Style
	Footer      lipgloss.Style
	Pane        lipgloss.Style
	FocusedPane lipgloss.Style
	Title       lipgloss.Style
	Muted       lipgloss.Style
	Selected    lipgloss.Style
	Cursor      lipgloss.Style
	Chip        lipgloss.Style
	ActiveChip  lipgloss.Style
	Banner      lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	UserBubble  lipgloss.Style
	AIBubble    lipgloss.Style
	Code        lipgloss.Style
	TableHeader lipgloss.Style
}

// DefaultStyles returns the workspace styles
func DefaultStyles() Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	return Styles{
		Header:      lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1),
		Footer:      lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
		Pane:        pane,
		FocusedPane: pane.BorderForeground(colorPrimary),
		Title:       lipgloss.NewStyle().Bold(true),
		Muted:       lipgloss.NewStyle().Foreground(colorMuted),
		Selected:    lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Cursor:      lipgloss.NewStyle().Reverse(true),
		Chip:        lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
		ActiveChip:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(colorPrimary).Padding(0, 1),
		Banner:      lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(colorWarning).Padding(0, 1),
		Success:     lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
		Error:       lipgloss.NewStyle().Foreground(colorError),
		UserBubble:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(colorPrimary).Padding(0, 1),
		AIBubble:    lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(colorAccent).PaddingLeft(1),
		Code:        lipgloss.NewStyle().Foreground(lipgloss.Color("#BFDBFE")),
		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(colorMuted),
	}
}

// Difficulty renders a difficulty label in its color
func (s Styles) Difficulty(d string) string {
	c, ok := difficultyColors[d]
	if !ok {
		return d
	}
	return lipgloss.NewStyle().Foreground(c).Render(d)
}
