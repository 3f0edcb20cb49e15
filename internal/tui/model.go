package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"twc/internal/commander"
	"twc/internal/constants"
	"twc/internal/jobs"
	"twc/internal/panel"
)

// DirsChangedMsg reports directories modified outside the application.
// Send it to the program from the watcher callback.
type DirsChangedMsg struct {
	Dirs []string
}

type progressMsg struct {
	progress jobs.Progress
	events   <-chan jobs.Progress
}

type progressClosedMsg struct{}

// Options tunes the interactive behaviour
type Options struct {
	ConfirmDelete bool
	Logger        *zap.Logger
}

// Model is the bubbletea model of the dual-pane view
type Model struct {
	cmdr     *commander.Commander
	keys     keyMap
	mode     mode
	input    textinput.Model
	kind     inputKind
	progress progress.Model
	last     *jobs.Progress
	offsets  [2]int
	width    int
	height   int
	status   string
	isError  bool
	confirm  bool
	logger   *zap.Logger
	quitting bool
}

// New creates the model around cmdr
func New(cmdr *commander.Commander, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Width = 60
	return Model{
		cmdr:     cmdr,
		keys:     newKeyMap(),
		mode:     normalMode,
		input:    ti,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(constants.ProgressBarWidth)),
		width:    80,
		height:   24,
		confirm:  opts.ConfirmDelete,
		logger:   logger,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// waitForProgress delivers the next event of an operation as a message
func waitForProgress(events <-chan jobs.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return progressClosedMsg{}
		}
		return progressMsg{progress: p, events: events}
	}
}

// listHeight is the number of entry rows shown per panel
func (m Model) listHeight() int {
	h := m.height - constants.ReservedRows
	if h < 1 {
		return 1
	}
	return h
}

// panelWidth is the inner width of one panel
func (m Model) panelWidth() int {
	w := m.width/2 - 2
	if w < 10 {
		return 10
	}
	return w
}

// scrollOffset keeps cursor within a window of height rows starting at offset
func scrollOffset(offset, cursor, count, height int) int {
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+height {
		offset = cursor - height + 1
	}
	if last := count - height; offset > last {
		offset = last
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func (m *Model) syncOffsets() {
	v := m.cmdr.View()
	for _, side := range []panel.Side{panel.Left, panel.Right} {
		s := v.Panels.Left
		if side == panel.Right {
			s = v.Panels.Right
		}
		m.offsets[side] = scrollOffset(m.offsets[side], s.Cursor, len(s.Entries), m.listHeight())
	}
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.isError = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.isError = true
	m.logger.Debug("Command failed", zap.Error(err))
}
