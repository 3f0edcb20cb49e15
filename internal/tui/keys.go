package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

type mode int

const (
	normalMode mode = iota
	inputMode
	confirmDeleteMode
	conflictMode
)

type inputKind int

const (
	inputMkdir inputKind = iota
	inputTouch
	inputFilter
	inputSearch
	inputGoto
)

func (k inputKind) prompt() string {
	switch k {
	case inputMkdir:
		return "New directory: "
	case inputTouch:
		return "New file: "
	case inputFilter:
		return "Filter (glob): "
	case inputSearch:
		return "Find: "
	default:
		return "Go to: "
	}
}

type keyMap struct {
	quit         key.Binding
	up           key.Binding
	down         key.Binding
	pageUp       key.Binding
	pageDown     key.Binding
	home         key.Binding
	end          key.Binding
	enter        key.Binding
	parent       key.Binding
	tab          key.Binding
	selectIt     key.Binding
	selectAll    key.Binding
	clearSel     key.Binding
	hidden       key.Binding
	sortKey      key.Binding
	sortReverse  key.Binding
	filter       key.Binding
	search       key.Binding
	gotoPath     key.Binding
	mirror       key.Binding
	refresh      key.Binding
	copy         key.Binding
	move         key.Binding
	mkdir        key.Binding
	touch        key.Binding
	delete       key.Binding
	cancel       key.Binding
	confirm      key.Binding
	overwrite    key.Binding
	overwriteAll key.Binding
	skip         key.Binding
	skipAll      key.Binding
	rename       key.Binding
	renameAll    key.Binding
	abort        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("ctrl+c", "q", "f10"), key.WithHelp("q", "quit")),
		up:           key.NewBinding(key.WithKeys("k", "up")),
		down:         key.NewBinding(key.WithKeys("j", "down")),
		pageUp:       key.NewBinding(key.WithKeys("pgup", "ctrl+b")),
		pageDown:     key.NewBinding(key.WithKeys("pgdown", "ctrl+f")),
		home:         key.NewBinding(key.WithKeys("home", "g")),
		end:          key.NewBinding(key.WithKeys("end", "G")),
		enter:        key.NewBinding(key.WithKeys("enter", "l", "right"), key.WithHelp("enter", "open")),
		parent:       key.NewBinding(key.WithKeys("backspace", "h", "left"), key.WithHelp("bksp", "up")),
		tab:          key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch")),
		selectIt:     key.NewBinding(key.WithKeys(" ", "insert"), key.WithHelp("space", "select")),
		selectAll:    key.NewBinding(key.WithKeys("*", "ctrl+a")),
		clearSel:     key.NewBinding(key.WithKeys("u")),
		hidden:       key.NewBinding(key.WithKeys("."), key.WithHelp(".", "hidden")),
		sortKey:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		sortReverse:  key.NewBinding(key.WithKeys("S")),
		filter:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		search:       key.NewBinding(key.WithKeys("f", "ctrl+s")),
		gotoPath:     key.NewBinding(key.WithKeys(":", "ctrl+g")),
		mirror:       key.NewBinding(key.WithKeys("=")),
		refresh:      key.NewBinding(key.WithKeys("r", "ctrl+r")),
		copy:         key.NewBinding(key.WithKeys("f5", "c"), key.WithHelp("F5", "copy")),
		move:         key.NewBinding(key.WithKeys("f6", "m"), key.WithHelp("F6", "move")),
		mkdir:        key.NewBinding(key.WithKeys("f7", "n"), key.WithHelp("F7", "mkdir")),
		touch:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "touch")),
		delete:       key.NewBinding(key.WithKeys("f8", "d", "delete"), key.WithHelp("F8", "delete")),
		cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		confirm:      key.NewBinding(key.WithKeys("y", "enter")),
		overwrite:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "overwrite")),
		overwriteAll: key.NewBinding(key.WithKeys("O")),
		skip:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		skipAll:      key.NewBinding(key.WithKeys("S")),
		rename:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		renameAll:    key.NewBinding(key.WithKeys("R")),
		abort:        key.NewBinding(key.WithKeys("a", "esc"), key.WithHelp("a", "abort")),
	}
}

func helpString(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + h.Desc
}
