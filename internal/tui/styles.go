package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorAccent  = lipgloss.Color("#04B575")
	colorError   = lipgloss.Color("#FF5F87")
	colorText    = lipgloss.Color("#E4E4E4")
	colorDim     = lipgloss.Color("#767676")
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorAccent)
	hintStyle     = lipgloss.NewStyle().Foreground(colorDim)

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	userTextStyle       = lipgloss.NewStyle().Foreground(colorText).PaddingLeft(2)

	alertStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorError).
			PaddingLeft(1)

	confirmStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	loadingStyle = lipgloss.NewStyle().Foreground(colorPrimary)
)
