package commander

import (
	"go.uber.org/zap"

	"twc/internal/fileinfo"
	"twc/internal/jobs"
	"twc/internal/panel"
	"twc/internal/sorting"
)

// PathWatcher follows the directories shown by the panels
type PathWatcher interface {
	SetPaths(paths ...string)
}

// View is everything the rendering layer needs for one frame
type View struct {
	Panels    panel.PairSnapshot
	Operation *jobs.Progress
	Busy      bool
}

// Commander exposes the imperative entry points of the file manager. It
// routes panel commands to the active panel and builds operation requests
// from the active selection and the inactive panel's path.
type Commander struct {
	pair    *panel.Pair
	engine  *jobs.Engine
	watcher PathWatcher
	logger  *zap.Logger
}

// New binds pair, engine and an optional watcher
func New(pair *panel.Pair, engine *jobs.Engine, watcher PathWatcher, logger *zap.Logger) *Commander {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Commander{pair: pair, engine: engine, watcher: watcher, logger: logger}
	engine.Subscribe(func(p jobs.Progress) {
		if p.Finished {
			// a refresh may have moved a panel to an ancestor
			c.syncWatcher()
		}
	})
	c.syncWatcher()
	return c
}

// Pair returns the panel pair
func (c *Commander) Pair() *panel.Pair {
	return c.pair
}

func (c *Commander) active() *panel.Panel {
	return c.pair.Active()
}

func (c *Commander) syncWatcher() {
	if c.watcher == nil {
		return
	}
	paths := c.pair.Paths()
	c.watcher.SetPaths(paths[0], paths[1])
}

// Navigate moves the active panel to path
func (c *Commander) Navigate(path string) error {
	if err := c.active().Navigate(path); err != nil {
		c.logger.Debug("Navigate failed", zap.String("path", path), zap.Error(err))
		return err
	}
	c.syncWatcher()
	return nil
}

// NavigateUp moves the active panel to its parent
func (c *Commander) NavigateUp() error {
	if err := c.active().NavigateUp(); err != nil {
		return err
	}
	c.syncWatcher()
	return nil
}

// Enter opens the directory under the active cursor
func (c *Commander) Enter() (fileinfo.Entry, bool, error) {
	e, moved, err := c.active().Enter()
	if moved {
		c.syncWatcher()
	}
	return e, moved, err
}

// SwitchPanel makes the other panel active
func (c *Commander) SwitchPanel() {
	c.pair.Switch()
}

// MirrorPanel shows the active directory in the inactive panel too
func (c *Commander) MirrorPanel() error {
	if err := c.pair.Inactive().Navigate(c.active().Path()); err != nil {
		return err
	}
	c.syncWatcher()
	return nil
}

// MoveCursor moves the active cursor by delta
func (c *Commander) MoveCursor(delta int) {
	c.active().MoveCursor(delta)
}

// CursorHome moves the active cursor to the first entry
func (c *Commander) CursorHome() {
	c.active().SetCursor(0)
}

// CursorEnd moves the active cursor to the last entry
func (c *Commander) CursorEnd() {
	n := len(c.active().Snapshot().Entries)
	c.active().SetCursor(n - 1)
}

// ToggleSelectionAtCursor flips the entry under the cursor and moves down
func (c *Commander) ToggleSelectionAtCursor() {
	p := c.active()
	p.ToggleSelection(p.Snapshot().Cursor)
	p.MoveCursor(1)
}

// SelectAll selects every visible entry of the active panel
func (c *Commander) SelectAll() {
	c.active().SelectAll()
}

// ClearSelection empties the active selection
func (c *Commander) ClearSelection() {
	c.active().ClearSelection()
}

// ToggleHidden flips hidden-file visibility on the active panel
func (c *Commander) ToggleHidden() {
	c.active().ToggleHidden()
}

// CycleSortKey advances the active sort key, keeping the direction
func (c *Commander) CycleSortKey() sorting.Settings {
	s := c.active().Settings().Sort
	s.Key = (s.Key + 1) % (sorting.ByExtension + 1)
	c.active().SetSort(s)
	return s
}

// ReverseSort flips the active sort direction
func (c *Commander) ReverseSort() sorting.Settings {
	s := c.active().Settings().Sort
	if s.Direction == sorting.Ascending {
		s.Direction = sorting.Descending
	} else {
		s.Direction = sorting.Ascending
	}
	c.active().SetSort(s)
	return s
}

// SetFilter applies a glob filter to the active panel
func (c *Commander) SetFilter(pattern string) error {
	return c.active().SetFilter(pattern)
}

// Find moves the active cursor to the best fuzzy match
func (c *Commander) Find(query string) bool {
	return c.active().Find(query)
}

// Refresh re-reads both panels
func (c *Commander) Refresh() {
	c.pair.RefreshDirs()
	c.syncWatcher()
}

// RefreshDirs re-reads panels showing one of dirs
func (c *Commander) RefreshDirs(dirs ...string) {
	c.pair.RefreshDirs(dirs...)
	c.syncWatcher()
}

// Sources returns what an operation would act on
func (c *Commander) Sources() []string {
	return c.active().Sources()
}

// Copy copies the active sources into the inactive panel's directory
func (c *Commander) Copy() (*jobs.Operation, error) {
	return c.submit(jobs.CopyRequest{Sources: c.Sources(), DestDir: c.pair.TargetPath()})
}

// Move moves the active sources into the inactive panel's directory
func (c *Commander) Move() (*jobs.Operation, error) {
	return c.submit(jobs.MoveRequest{Sources: c.Sources(), DestDir: c.pair.TargetPath()})
}

// Delete removes the active sources
func (c *Commander) Delete() (*jobs.Operation, error) {
	return c.submit(jobs.DeleteRequest{Sources: c.Sources()})
}

// CreateFile creates an empty file in the active directory
func (c *Commander) CreateFile(name string) (*jobs.Operation, error) {
	return c.submit(jobs.CreateFileRequest{Dir: c.active().Path(), Name: name})
}

// CreateDirectory creates a directory in the active directory
func (c *Commander) CreateDirectory(name string) (*jobs.Operation, error) {
	return c.submit(jobs.CreateDirectoryRequest{Dir: c.active().Path(), Name: name})
}

func (c *Commander) submit(req jobs.Request) (*jobs.Operation, error) {
	op, err := c.engine.Submit(req)
	if err != nil {
		c.logger.Info("Operation rejected", zap.String("type", string(req.Type())), zap.Error(err))
		return nil, err
	}
	c.active().ClearSelection()
	return op, nil
}

// Resolve answers the pending conflict
func (c *Commander) Resolve(res jobs.Resolution, applyToAll bool) error {
	return c.engine.Resolve(res, applyToAll)
}

// Cancel stops the current operation at the next source boundary
func (c *Commander) Cancel() error {
	return c.engine.Cancel()
}

// History returns finished operations, newest first
func (c *Commander) History() []jobs.Progress {
	return c.engine.History()
}

// View returns a snapshot for rendering
func (c *Commander) View() View {
	v := View{Panels: c.pair.Snapshot(), Busy: c.engine.Busy()}
	if op := c.engine.Current(); op != nil {
		p := op.Snapshot()
		v.Operation = &p
	}
	return v
}

// Settings returns the panel state to persist
func (c *Commander) Settings() panel.PairSettings {
	return c.pair.Settings()
}
