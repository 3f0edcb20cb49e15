package panel

import (
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Side identifies one of the two panels
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Other returns the opposite side
func (s Side) Other() Side {
	return 1 - s
}

// PairSettings is the persisted state of both panels
type PairSettings struct {
	Left   Settings
	Right  Settings
	Active Side
}

// PairSnapshot is a read-only copy of both panels for rendering
type PairSnapshot struct {
	Left   Snapshot
	Right  Snapshot
	Active Side
}

// Pair owns the two panels and tracks which one is active. Exactly one side
// is active at any time; the other side's path is the default target.
type Pair struct {
	mu     sync.RWMutex
	panels [2]*Panel
	active Side
	logger *zap.Logger
}

// NewPair builds both panels from settings, loading each path or its
// nearest listable ancestor.
func NewPair(lister Lister, settings PairSettings, logger *zap.Logger) (*Pair, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pair := &Pair{
		panels: [2]*Panel{New(lister, settings.Left), New(lister, settings.Right)},
		active: settings.Active,
		logger: logger,
	}
	if pair.active != Left && pair.active != Right {
		pair.active = Left
	}
	for _, side := range []Side{Left, Right} {
		p := pair.panels[side]
		if err := p.NavigateNearest(p.Path()); err != nil {
			return nil, err
		}
		logger.Debug("Panel loaded", zap.String("side", side.String()), zap.String("path", p.Path()))
	}
	return pair, nil
}

// Panel returns the panel on side
func (pp *Pair) Panel(side Side) *Panel {
	return pp.panels[side]
}

// ActiveSide returns which side is active
func (pp *Pair) ActiveSide() Side {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	return pp.active
}

// Active returns the active panel
func (pp *Pair) Active() *Panel {
	return pp.panels[pp.ActiveSide()]
}

// Inactive returns the panel that is not active
func (pp *Pair) Inactive() *Panel {
	return pp.panels[pp.ActiveSide().Other()]
}

// Switch makes the other panel active
func (pp *Pair) Switch() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.active = pp.active.Other()
}

// SetActive makes side the active panel
func (pp *Pair) SetActive(side Side) {
	if side != Left && side != Right {
		return
	}
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.active = side
}

// TargetPath is the default destination for operations started from the active panel
func (pp *Pair) TargetPath() string {
	return pp.Inactive().Path()
}

// Paths returns the current directory of both panels
func (pp *Pair) Paths() [2]string {
	return [2]string{pp.panels[Left].Path(), pp.panels[Right].Path()}
}

// RefreshDirs refreshes every panel showing one of dirs or a directory
// below one of them, so a panel inside a deleted or moved tree is noticed.
// A panel whose directory disappeared moves to its nearest existing ancestor.
func (pp *Pair) RefreshDirs(dirs ...string) {
	for _, side := range []Side{Left, Right} {
		p := pp.panels[side]
		path := p.Path()
		if len(dirs) > 0 && !underAny(path, dirs) {
			continue
		}
		if err := p.Refresh(); err != nil {
			pp.logger.Debug("Refresh failed, falling back to ancestor",
				zap.String("side", side.String()), zap.String("path", path), zap.Error(err))
			if err := p.NavigateNearest(filepath.Dir(path)); err != nil {
				pp.logger.Warn("Panel has no listable ancestor",
					zap.String("side", side.String()), zap.String("path", path), zap.Error(err))
			}
		}
	}
}

func underAny(path string, dirs []string) bool {
	for _, d := range dirs {
		rel, err := filepath.Rel(filepath.Clean(d), path)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of both panels
func (pp *Pair) Snapshot() PairSnapshot {
	return PairSnapshot{
		Left:   pp.panels[Left].Snapshot(),
		Right:  pp.panels[Right].Snapshot(),
		Active: pp.ActiveSide(),
	}
}

// Settings returns the persistable state of both panels
func (pp *Pair) Settings() PairSettings {
	return PairSettings{
		Left:   pp.panels[Left].Settings(),
		Right:  pp.panels[Right].Settings(),
		Active: pp.ActiveSide(),
	}
}
