package tui

import (
	"github.com/charmbracelet/lipgloss"

	"twc/internal/constants"
	"twc/internal/fileinfo"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(constants.SelectionColor)).
			Bold(true)
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(constants.HiddenFileColor))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(constants.ErrorColor)).
			Bold(true)
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(constants.SelectionColor))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(constants.InactiveBorder))
	activePanelStyle = panelStyle.Copy().
				BorderForeground(lipgloss.Color(constants.ActiveBorder))
	headerStyle = lipgloss.NewStyle().Bold(true)

	fileStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(constants.RegularFileColor))
	dirStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(constants.DirectoryColor)).Bold(true)
	symlinkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(constants.SymlinkColor))
	hiddenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(constants.HiddenFileColor))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(constants.SelectionColor)).Bold(true)
)

// entryStyle picks the row color. Selection wins over kind, the cursor adds
// a background.
func entryStyle(e fileinfo.Entry, selected, cursor bool) lipgloss.Style {
	var s lipgloss.Style
	switch {
	case selected:
		s = selectedStyle
	case e.Hidden:
		s = hiddenStyle
	case e.Kind == fileinfo.KindDirectory:
		s = dirStyle
	case e.Kind == fileinfo.KindSymlink:
		s = symlinkStyle
	default:
		s = fileStyle
	}
	if cursor {
		s = s.Copy().Background(lipgloss.Color(constants.CursorBackground))
	}
	return s
}
