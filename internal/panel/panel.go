package panel

import (
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sahilm/fuzzy"

	apperrors "twc/internal/errors"
	"twc/internal/fileinfo"
	"twc/internal/sorting"
)

// Lister is the part of fileinfo.Reader a Panel needs
type Lister interface {
	ReadDir(path string) ([]fileinfo.Entry, error)
	ResolvesToDir(path string) bool
}

// Settings is the persisted state of one panel
type Settings struct {
	Path       string
	Sort       sorting.Settings
	ShowHidden bool
}

// Snapshot is a read-only copy of a panel for rendering
type Snapshot struct {
	Path       string
	Entries    []fileinfo.Entry
	Selected   []int
	Cursor     int
	ShowHidden bool
	Sort       sorting.Settings
	Filter     string
}

// IsSelected reports whether index i of Entries is selected
func (s Snapshot) IsSelected(i int) bool {
	for _, idx := range s.Selected {
		if idx == i {
			return true
		}
	}
	return false
}

// Panel owns one side's directory listing, selection and view settings.
// All methods are safe for concurrent use.
type Panel struct {
	mu     sync.RWMutex
	lister Lister

	path       string
	raw        []fileinfo.Entry // sorted, unfiltered
	visible    []fileinfo.Entry
	selected   map[string]struct{}
	cursor     int
	showHidden bool
	sort       sorting.Settings
	filter     string
}

// New creates an empty panel. Call Navigate or NavigateNearest to load a directory.
func New(lister Lister, settings Settings) *Panel {
	return &Panel{
		lister:     lister,
		path:       settings.Path,
		selected:   make(map[string]struct{}),
		showHidden: settings.ShowHidden,
		sort:       settings.Sort,
	}
}

// Navigate loads path, clearing selection, filter and cursor. On error the
// panel is left untouched.
func (p *Panel) Navigate(path string) error {
	path = filepath.Clean(path)
	entries, err := p.lister.ReadDir(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.raw = sorting.Sort(entries, p.sort)
	p.selected = make(map[string]struct{})
	p.filter = ""
	p.cursor = 0
	p.refilter()
	return nil
}

// NavigateNearest loads path or, failing that, its closest ancestor that can
// be listed. The error of the original path is returned when nothing works.
func (p *Panel) NavigateNearest(path string) error {
	path = filepath.Clean(path)
	firstErr := p.Navigate(path)
	if firstErr == nil {
		return nil
	}
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if err := p.Navigate(dir); err == nil {
			return nil
		}
		if dir == filepath.Dir(dir) {
			return firstErr
		}
	}
}

// NavigateUp moves to the parent directory and places the cursor on the
// directory just left. At the filesystem root it does nothing.
func (p *Panel) NavigateUp() error {
	current := p.Path()
	parent := filepath.Dir(current)
	if parent == current {
		return nil
	}
	if err := p.Navigate(parent); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.indexOf(filepath.Base(current)); i >= 0 {
		p.cursor = i
	}
	return nil
}

// Enter navigates into the entry under the cursor if it resolves to a
// directory. It returns the entry and whether navigation happened.
func (p *Panel) Enter() (fileinfo.Entry, bool, error) {
	e, ok := p.CursorEntry()
	if !ok {
		return fileinfo.Entry{}, false, nil
	}
	if !e.IsDir() && !(e.Kind == fileinfo.KindSymlink && p.lister.ResolvesToDir(e.Path)) {
		return e, false, nil
	}
	if err := p.Navigate(e.Path); err != nil {
		return e, false, err
	}
	return e, true, nil
}

// Refresh re-reads the current directory. Selections and the cursor follow
// entries by name; selections of entries that no longer exist are dropped.
func (p *Panel) Refresh() error {
	path := p.Path()
	entries, err := p.lister.ReadDir(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path != path {
		// navigated elsewhere meanwhile
		return nil
	}
	cursorName := p.cursorNameLocked()
	p.raw = sorting.Sort(entries, p.sort)
	p.refilter()
	p.restoreCursor(cursorName)
	return nil
}

// ToggleHidden flips hidden-file visibility on the existing listing
func (p *Panel) ToggleHidden() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cursorName := p.cursorNameLocked()
	p.showHidden = !p.showHidden
	p.refilter()
	p.restoreCursor(cursorName)
}

// SetSort re-sorts the existing listing
func (p *Panel) SetSort(s sorting.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cursorName := p.cursorNameLocked()
	p.sort = s
	p.raw = sorting.Sort(p.raw, s)
	p.refilter()
	p.restoreCursor(cursorName)
}

// SetFilter restricts visible files to names matching a doublestar pattern.
// Directories stay visible. An empty pattern removes the filter.
func (p *Panel) SetFilter(pattern string) error {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return apperrors.New(apperrors.KindInvalidName, "set_filter", pattern, "invalid pattern", doublestar.ErrBadPattern)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cursorName := p.cursorNameLocked()
	p.filter = pattern
	p.refilter()
	p.restoreCursor(cursorName)
	return nil
}

// ToggleSelection flips selection of the visible entry at index. Out of range is a no-op.
func (p *Panel) ToggleSelection(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.visible) {
		return
	}
	name := p.visible[index].Name
	if _, ok := p.selected[name]; ok {
		delete(p.selected, name)
	} else {
		p.selected[name] = struct{}{}
	}
}

// SelectAll selects every visible entry
func (p *Panel) SelectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.visible {
		p.selected[e.Name] = struct{}{}
	}
}

// ClearSelection empties the selection
func (p *Panel) ClearSelection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = make(map[string]struct{})
}

// MoveCursor moves the cursor by delta, clamped to the listing
func (p *Panel) MoveCursor(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setCursor(p.cursor + delta)
}

// SetCursor places the cursor at index, clamped to the listing
func (p *Panel) SetCursor(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setCursor(index)
}

// Find moves the cursor to the best fuzzy match for query among visible names
func (p *Panel) Find(query string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if query == "" || len(p.visible) == 0 {
		return false
	}
	names := make([]string, len(p.visible))
	for i, e := range p.visible {
		names[i] = e.Name
	}
	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return false
	}
	p.cursor = matches[0].Index
	return true
}

// Path returns the current directory
func (p *Panel) Path() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.path
}

// CursorEntry returns the entry under the cursor
func (p *Panel) CursorEntry() (fileinfo.Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cursor < 0 || p.cursor >= len(p.visible) {
		return fileinfo.Entry{}, false
	}
	return p.visible[p.cursor], true
}

// SelectedEntries returns selected entries in listing order
func (p *Panel) SelectedEntries() []fileinfo.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []fileinfo.Entry
	for _, e := range p.visible {
		if _, ok := p.selected[e.Name]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Sources returns the paths an operation should act on: the selection,
// or the cursor entry when nothing is selected.
func (p *Panel) Sources() []string {
	selected := p.SelectedEntries()
	if len(selected) == 0 {
		if e, ok := p.CursorEntry(); ok {
			return []string{e.Path}
		}
		return nil
	}
	paths := make([]string, len(selected))
	for i, e := range selected {
		paths[i] = e.Path
	}
	return paths
}

// Settings returns the persistable view settings
func (p *Panel) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Settings{Path: p.path, Sort: p.sort, ShowHidden: p.showHidden}
}

// Snapshot returns a copy of the panel state
func (p *Panel) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := make([]fileinfo.Entry, len(p.visible))
	copy(entries, p.visible)
	var selected []int
	for i, e := range p.visible {
		if _, ok := p.selected[e.Name]; ok {
			selected = append(selected, i)
		}
	}
	return Snapshot{
		Path:       p.path,
		Entries:    entries,
		Selected:   selected,
		Cursor:     p.cursor,
		ShowHidden: p.showHidden,
		Sort:       p.sort,
		Filter:     p.filter,
	}
}

// refilter rebuilds visible from raw and drops selections that are no longer visible
func (p *Panel) refilter() {
	visible := make([]fileinfo.Entry, 0, len(p.raw))
	for _, e := range p.raw {
		if e.Hidden && !p.showHidden {
			continue
		}
		if p.filter != "" && !e.IsDir() {
			if ok, _ := doublestar.Match(p.filter, e.Name); !ok {
				continue
			}
		}
		visible = append(visible, e)
	}
	p.visible = visible

	live := make(map[string]struct{}, len(p.selected))
	for _, e := range visible {
		if _, ok := p.selected[e.Name]; ok {
			live[e.Name] = struct{}{}
		}
	}
	p.selected = live
	p.setCursor(p.cursor)
}

func (p *Panel) setCursor(index int) {
	if index >= len(p.visible) {
		index = len(p.visible) - 1
	}
	if index < 0 {
		index = 0
	}
	p.cursor = index
}

func (p *Panel) cursorNameLocked() string {
	if p.cursor >= 0 && p.cursor < len(p.visible) {
		return p.visible[p.cursor].Name
	}
	return ""
}

func (p *Panel) restoreCursor(name string) {
	if i := p.indexOf(name); i >= 0 {
		p.cursor = i
	}
}

func (p *Panel) indexOf(name string) int {
	if name == "" {
		return -1
	}
	for i, e := range p.visible {
		if e.Name == name {
			return i
		}
	}
	return -1
}
