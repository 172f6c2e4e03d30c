package report

import "github.com/charmbracelet/lipgloss"

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Padding(0, 1)
	CellStyle    = lipgloss.NewStyle().Padding(0, 1)
	BestRowStyle = CellStyle.Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	BorderColor  = lipgloss.Color("#555555")

	// Score colors
	ScoreGoodStyle = CellStyle.Foreground(lipgloss.Color("#00FF00"))
	ScoreOkStyle   = CellStyle.Foreground(lipgloss.Color("#FFFF00"))
	ScoreBadStyle  = CellStyle.Foreground(lipgloss.Color("#FF0000"))
)

// scoreStyle grades a metric in [0,1].
func scoreStyle(v float64) lipgloss.Style {
	switch {
	case v >= 0.75:
		return ScoreGoodStyle
	case v >= 0.6:
		return ScoreOkStyle
	default:
		return ScoreBadStyle
	}
}
