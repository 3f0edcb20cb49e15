package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"twc/internal/constants"
	"twc/internal/fileinfo"
	"twc/internal/jobs"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = m.width - 20
		m.syncOffsets()
		return m, nil

	case DirsChangedMsg:
		m.cmdr.RefreshDirs(msg.Dirs...)
		m.syncOffsets()
		return m, nil

	case progressMsg:
		p := msg.progress
		m.last = &p
		switch {
		case m.awaitingConflict():
			if m.mode == normalMode {
				m.mode = conflictMode
			} else if m.mode != conflictMode {
				// keep the open prompt, the conflict is asked when it closes
				m.setStatus(fmt.Sprintf("%s exists, answer after this prompt", filepath.Base(p.Conflict.Destination)))
			}
		case m.mode == conflictMode:
			m.mode = normalMode
		}
		if p.Finished {
			m.status = summary(p)
			m.isError = p.State == jobs.StateFailed
			m.syncOffsets()
		}
		return m, waitForProgress(msg.events)

	case progressClosedMsg:
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}
		switch m.mode {
		case inputMode:
			return m.updateInput(msg)
		case confirmDeleteMode:
			return m.updateConfirm(msg)
		case conflictMode:
			return m.updateConflict(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.cmdr
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.up):
		c.MoveCursor(-1)
	case key.Matches(msg, m.keys.down):
		c.MoveCursor(1)
	case key.Matches(msg, m.keys.pageUp):
		c.MoveCursor(-constants.FastNavigationStep)
	case key.Matches(msg, m.keys.pageDown):
		c.MoveCursor(constants.FastNavigationStep)
	case key.Matches(msg, m.keys.home):
		c.CursorHome()
	case key.Matches(msg, m.keys.end):
		c.CursorEnd()
	case key.Matches(msg, m.keys.enter):
		if _, _, err := c.Enter(); err != nil {
			m.setError(err)
		}
	case key.Matches(msg, m.keys.parent):
		if err := c.NavigateUp(); err != nil {
			m.setError(err)
		}
	case key.Matches(msg, m.keys.tab):
		c.SwitchPanel()
	case key.Matches(msg, m.keys.selectIt):
		c.ToggleSelectionAtCursor()
	case key.Matches(msg, m.keys.selectAll):
		c.SelectAll()
	case key.Matches(msg, m.keys.clearSel):
		c.ClearSelection()
	case key.Matches(msg, m.keys.hidden):
		c.ToggleHidden()
	case key.Matches(msg, m.keys.sortKey):
		s := c.CycleSortKey()
		m.setStatus(fmt.Sprintf("Sort by %s %s", s.Key, s.Direction))
	case key.Matches(msg, m.keys.sortReverse):
		s := c.ReverseSort()
		m.setStatus(fmt.Sprintf("Sort by %s %s", s.Key, s.Direction))
	case key.Matches(msg, m.keys.mirror):
		if err := c.MirrorPanel(); err != nil {
			m.setError(err)
		}
	case key.Matches(msg, m.keys.refresh):
		c.Refresh()
	case key.Matches(msg, m.keys.filter):
		return m.startInput(inputFilter)
	case key.Matches(msg, m.keys.search):
		return m.startInput(inputSearch)
	case key.Matches(msg, m.keys.gotoPath):
		return m.startInput(inputGoto)
	case key.Matches(msg, m.keys.mkdir):
		return m.startInput(inputMkdir)
	case key.Matches(msg, m.keys.touch):
		return m.startInput(inputTouch)
	case key.Matches(msg, m.keys.copy):
		return m.submit(c.Copy())
	case key.Matches(msg, m.keys.move):
		return m.submit(c.Move())
	case key.Matches(msg, m.keys.delete):
		if !m.confirm {
			return m.submit(c.Delete())
		}
		if n := len(c.Sources()); n > 0 {
			m.mode = confirmDeleteMode
			m.setStatus(fmt.Sprintf("Delete %d item(s)? (y/n)", n))
		}
	case key.Matches(msg, m.keys.cancel):
		if c.View().Busy {
			if err := c.Cancel(); err != nil {
				m.setError(err)
			} else {
				m.setStatus("Cancelling after the current item")
			}
		} else if err := c.SetFilter(""); err != nil {
			m.setError(err)
		}
	}
	m.syncOffsets()
	return m, nil
}

// quit stops a running operation at its next boundary and exits
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cmdr.View().Busy {
		_ = m.cmdr.Cancel()
	}
	m.quitting = true
	return m, tea.Quit
}

// startInput opens the prompt line. The filter prompt starts with the
// active filter so it can be edited.
func (m Model) startInput(kind inputKind) (tea.Model, tea.Cmd) {
	m.mode = inputMode
	m.kind = kind
	m.input.Reset()
	m.input.Prompt = kind.prompt()
	if kind == inputFilter {
		m.input.SetValue(m.cmdr.Pair().Active().Snapshot().Filter)
		m.input.CursorEnd()
	}
	return m, m.input.Focus()
}

// awaitingConflict reports whether the tracked operation waits for an answer
func (m Model) awaitingConflict() bool {
	return m.last != nil && !m.last.Finished && m.last.State == jobs.StatePaused && m.last.Conflict != nil
}

// leavePrompt closes an input or confirmation prompt, moving on to a
// conflict that arrived while it was open.
func (m *Model) leavePrompt() {
	if m.awaitingConflict() {
		m.mode = conflictMode
		return
	}
	m.mode = normalMode
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.leavePrompt()
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.leavePrompt()
		m.input.Blur()
		return m.finishInput(strings.TrimSpace(m.input.Value()))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.kind == inputSearch {
		m.cmdr.Find(m.input.Value())
		m.syncOffsets()
	}
	return m, cmd
}

func (m Model) finishInput(value string) (tea.Model, tea.Cmd) {
	c := m.cmdr
	switch m.kind {
	case inputMkdir:
		return m.submit(c.CreateDirectory(value))
	case inputTouch:
		return m.submit(c.CreateFile(value))
	case inputFilter:
		if err := c.SetFilter(value); err != nil {
			m.setError(err)
		}
	case inputSearch:
		if value != "" && !c.Find(value) {
			m.setStatus(fmt.Sprintf("No match for %q", value))
		}
	case inputGoto:
		path, err := homedir.Expand(value)
		if err != nil {
			m.setError(err)
			break
		}
		if err := c.Navigate(path); err != nil {
			m.setError(err)
		}
	}
	m.syncOffsets()
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.leavePrompt()
	if key.Matches(msg, m.keys.confirm) {
		return m.submit(m.cmdr.Delete())
	}
	m.setStatus("Delete cancelled")
	return m, nil
}

func (m Model) updateConflict(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var (
		res jobs.Resolution
		all bool
	)
	switch {
	case key.Matches(msg, m.keys.overwrite):
		res = jobs.ResolveOverwrite
	case key.Matches(msg, m.keys.overwriteAll):
		res, all = jobs.ResolveOverwrite, true
	case key.Matches(msg, m.keys.skip):
		res = jobs.ResolveSkip
	case key.Matches(msg, m.keys.skipAll):
		res, all = jobs.ResolveSkip, true
	case key.Matches(msg, m.keys.rename):
		res = jobs.ResolveRename
	case key.Matches(msg, m.keys.renameAll):
		res, all = jobs.ResolveRename, true
	case key.Matches(msg, m.keys.abort):
		res = jobs.ResolveAbort
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	default:
		return m, nil
	}
	if err := m.cmdr.Resolve(res, all); err != nil {
		m.setError(err)
	}
	m.mode = normalMode
	return m, nil
}

func (m Model) submit(op *jobs.Operation, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.setError(err)
		return m, nil
	}
	m.logger.Debug("Operation submitted", zap.Int64("id", op.ID), zap.String("type", string(op.Request.Type())))
	m.setStatus(fmt.Sprintf("%s started", op.Request.Type()))
	p := op.Snapshot()
	m.last = &p
	return m, waitForProgress(op.Progress())
}

// summary describes a finished operation in one line
func summary(p jobs.Progress) string {
	counts := p.Counts()
	parts := []string{fmt.Sprintf("%s %s", p.Type, p.State)}
	for _, status := range []jobs.OutcomeStatus{
		jobs.OutcomeDone, jobs.OutcomeSkipped, jobs.OutcomeFailed,
		jobs.OutcomeCopiedNotRemoved, jobs.OutcomeCancelled,
	} {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(string(status), "_", " ")))
		}
	}
	if p.BytesTotal > 0 {
		parts = append(parts, fileinfo.FormatFileSize(p.BytesDone))
	}
	for _, o := range p.Outcomes {
		if o.Status == jobs.OutcomeFailed && o.Err != nil {
			parts = append(parts, o.Err.Error())
			break
		}
	}
	return strings.Join(parts, ", ")
}
