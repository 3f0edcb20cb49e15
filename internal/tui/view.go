package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"twc/internal/constants"
	"twc/internal/fileinfo"
	"twc/internal/jobs"
	"twc/internal/panel"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.cmdr.View()
	left := m.renderPanel(v.Panels.Left, v.Panels.Active == panel.Left, m.offsets[panel.Left])
	right := m.renderPanel(v.Panels.Right, v.Panels.Active == panel.Right, m.offsets[panel.Right])

	title := titleStyle.Render(constants.ApplicationName + " - " + constants.ApplicationTitle)
	status := m.status
	if m.isError {
		status = errorStyle.Render(status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		status,
		m.bottomLine(v.Busy),
	)
}

func (m Model) bottomLine(busy bool) string {
	switch m.mode {
	case inputMode:
		return m.input.View()
	case confirmDeleteMode:
		return promptStyle.Render("y confirm, any other key cancels")
	case conflictMode:
		return promptStyle.Render(conflictPrompt(m.last))
	}
	if busy && m.last != nil && !m.last.Finished {
		p := m.last
		percent := float64(fileinfo.ProgressPercent(p.BytesDone, p.BytesTotal)) / 100
		return fmt.Sprintf("%s %s %s/%s  esc cancel", p.Type, m.progress.ViewAs(percent),
			fileinfo.FormatFileSize(p.BytesDone), fileinfo.FormatFileSize(p.BytesTotal))
	}
	k := m.keys
	return helpStyle.Render(strings.Join([]string{
		helpString(k.tab), helpString(k.enter), helpString(k.parent), helpString(k.selectIt),
		helpString(k.copy), helpString(k.move), helpString(k.mkdir), helpString(k.touch),
		helpString(k.delete), helpString(k.filter), helpString(k.sortKey), helpString(k.hidden),
		helpString(k.quit),
	}, " • "))
}

func conflictPrompt(p *jobs.Progress) string {
	if p == nil || p.Conflict == nil {
		return ""
	}
	kind := "File"
	if p.Conflict.DestIsDir {
		kind = "Directory"
	}
	return fmt.Sprintf("%s %s exists: o overwrite, s skip, r rename, a abort (O/S/R for all)",
		kind, filepath.Base(p.Conflict.Destination))
}

func (m Model) renderPanel(s panel.Snapshot, active bool, offset int) string {
	w := m.panelWidth()
	h := m.listHeight()

	header := s.Path + "  [" + s.Sort.Key.String() + " " + s.Sort.Direction.String() + "]"
	if s.Filter != "" {
		header += " " + s.Filter
	}
	if n := len(s.Selected); n > 0 {
		header += fmt.Sprintf(" (%d selected)", n)
	}

	rows := make([]string, 0, h+1)
	rows = append(rows, headerStyle.Render(truncate(header, w)))
	offset = scrollOffset(offset, s.Cursor, len(s.Entries), h)
	for i := offset; i < len(s.Entries) && i < offset+h; i++ {
		rows = append(rows, renderRow(s.Entries[i], w, s.IsSelected(i), active && i == s.Cursor))
	}
	for len(rows) < h+1 {
		rows = append(rows, "")
	}

	style := panelStyle
	if active {
		style = activePanelStyle
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}

func renderRow(e fileinfo.Entry, width int, selected, cursor bool) string {
	marker := " "
	if selected {
		marker = "*"
	}
	name := e.Name
	switch e.Kind {
	case fileinfo.KindDirectory:
		name += "/"
	case fileinfo.KindSymlink:
		name += "@"
	}

	size := "<DIR>"
	if !e.IsDir() {
		size = fileinfo.FormatFileSize(e.Size)
	}
	meta := fmt.Sprintf(" %9s %s", size, e.Modified.Format("01-02 15:04"))

	nameWidth := width - 1 - len(meta)
	var line string
	if nameWidth < 8 {
		line = marker + pad(truncate(name, width-1), width-1)
	} else {
		line = marker + pad(truncate(name, nameWidth), nameWidth) + meta
	}
	return entryStyle(e, selected, cursor).Render(line)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "~"
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
