package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"

	apperrors "twc/internal/errors"
)

// Refresher is told which directories a finished operation touched.
type Refresher interface {
	RefreshDirs(dirs ...string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRefresher registers the component refreshed after each operation.
func WithRefresher(r Refresher) Option {
	return func(e *Engine) { e.refresher = r }
}

// WithHistoryLimit caps the number of finished operations kept.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.historyMax = n }
}

// Engine runs one file operation at a time in the background. Submitting
// while an operation is running or paused fails with OperationInProgress.
type Engine struct {
	mu          sync.Mutex
	nextID      int64
	current     *Operation
	history     []*Operation
	historyMax  int
	subscribers []func(Progress)
	logger      *zap.Logger
	refresher   Refresher

	// beforeSource runs on the operation goroutine ahead of each source.
	beforeSource func(op *Operation, index int)
}

// NewEngine constructs an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{historyMax: 100, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers a callback invoked with every progress event of every
// operation. Callbacks run on the operation goroutine and must not block.
func (e *Engine) Subscribe(cb func(Progress)) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, cb)
	e.mu.Unlock()
}

func (e *Engine) publish(p Progress) {
	e.mu.Lock()
	subs := append([]func(Progress){}, e.subscribers...)
	e.mu.Unlock()
	for _, cb := range subs {
		cb(p)
	}
}

// Submit validates req and starts it in the background.
func (e *Engine) Submit(req Request) (*Operation, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if cur := e.current; cur != nil {
		if state := cur.State(); !state.Terminal() {
			e.mu.Unlock()
			return nil, apperrors.New(apperrors.KindOperationInProgress, "submit", "",
				fmt.Sprintf("operation %d is %s", cur.ID, state), nil)
		}
	}
	e.nextID++
	op := newOperation(e.nextID, req, e.publish)
	e.current = op
	e.mu.Unlock()

	e.logger.Info("Operation submitted",
		zap.Int64("id", op.ID),
		zap.String("type", string(req.Type())),
		zap.Int("sources", len(op.Sources)),
		zap.String("dest", op.DestDir))
	go e.run(op)
	return op, nil
}

// Resolve answers the conflict the current operation is paused on.
// With applyToAll the answer is reused for later conflicts of the same operation.
func (e *Engine) Resolve(res Resolution, applyToAll bool) error {
	switch res {
	case ResolveOverwrite, ResolveSkip, ResolveRename, ResolveAbort:
	default:
		return apperrors.New(apperrors.KindInvalidResolution, "resolve", "", fmt.Sprintf("unknown resolution %q", res), nil)
	}
	op := e.Current()
	if op == nil || !op.resolve(res, applyToAll) {
		return apperrors.New(apperrors.KindNoOperation, "resolve", "", "no operation is waiting on a conflict", nil)
	}
	e.logger.Debug("Conflict resolved", zap.Int64("id", op.ID), zap.String("resolution", string(res)), zap.Bool("all", applyToAll))
	return nil
}

// Cancel asks the current operation to stop at the next source boundary.
// A paused operation is aborted immediately.
func (e *Engine) Cancel() error {
	op := e.Current()
	if op == nil || !op.requestCancel() {
		return apperrors.New(apperrors.KindNoOperation, "cancel", "", "no operation is running", nil)
	}
	e.logger.Info("Operation cancel requested", zap.Int64("id", op.ID))
	return nil
}

// Current returns the most recently submitted operation, or nil.
func (e *Engine) Current() *Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Busy reports whether an operation is running or paused.
func (e *Engine) Busy() bool {
	op := e.Current()
	return op != nil && !op.State().Terminal()
}

// History returns snapshots of finished operations, newest first.
func (e *Engine) History() []Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Progress, 0, len(e.history))
	for i := len(e.history) - 1; i >= 0; i-- {
		out = append(out, e.history[i].Snapshot())
	}
	return out
}

// addHistoryLocked appends a finished operation and trims the oldest; caller must hold e.mu
func (e *Engine) addHistoryLocked(op *Operation) {
	e.history = append(e.history, op)
	if e.historyMax > 0 && len(e.history) > e.historyMax {
		drop := len(e.history) - e.historyMax
		e.history = append([]*Operation{}, e.history[drop:]...)
	}
}

func (e *Engine) run(op *Operation) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Operation panicked", zap.Int64("id", op.ID), zap.Any("panic", r))
			if !op.State().Terminal() {
				e.mu.Lock()
				e.addHistoryLocked(op)
				e.mu.Unlock()
				op.finish(StateFailed)
			}
		}
	}()

	var sizes []int64
	var total int64
	switch op.Request.(type) {
	case CopyRequest, MoveRequest, DeleteRequest:
		sizes, total = scanSizes(op.ctx, op.Sources)
	}
	op.start(total)

	var state State
	switch r := op.Request.(type) {
	case CopyRequest:
		state = e.runTransfer(op, sizes, false)
	case MoveRequest:
		state = e.runTransfer(op, sizes, true)
	case DeleteRequest:
		state = e.runDelete(op, sizes)
	case CreateFileRequest:
		state = e.runCreateFile(op, r)
	case CreateDirectoryRequest:
		state = e.runCreateDirectory(op)
	default:
		state = StateFailed
	}

	if e.refresher != nil {
		e.refresher.RefreshDirs(affectedDirs(op)...)
	}
	e.mu.Lock()
	e.addHistoryLocked(op)
	e.mu.Unlock()
	op.finish(state)

	snap := op.Snapshot()
	counts := snap.Counts()
	e.logger.Info("Operation finished",
		zap.Int64("id", op.ID),
		zap.String("state", string(state)),
		zap.Int("done", counts[OutcomeDone]),
		zap.Int("skipped", counts[OutcomeSkipped]),
		zap.Int("failed", counts[OutcomeFailed]),
		zap.Int("copiedNotRemoved", counts[OutcomeCopiedNotRemoved]),
		zap.Int("cancelled", counts[OutcomeCancelled]),
		zap.Int64("bytes", snap.BytesDone))
}

// boundary runs between sources and reports whether to stop.
func (e *Engine) boundary(op *Operation, index int) bool {
	if e.beforeSource != nil {
		e.beforeSource(op, index)
	}
	return op.cancelled()
}

func (e *Engine) runTransfer(op *Operation, sizes []int64, move bool) State {
	for i, src := range op.Sources {
		if e.boundary(op, i) {
			return StateCancelled
		}
		dst := filepath.Join(op.DestDir, filepath.Base(src))
		outcome, abort := e.transferOne(op, src, dst, sizes[i], move)
		if abort {
			return StateCancelled
		}
		e.logOutcome(op, outcome)
		op.record(outcome)
	}
	return finalState(op)
}

// transferOne copies or moves one top-level source. It returns abort=true
// when the user aborted on a conflict or cancelled while paused.
func (e *Engine) transferOne(op *Operation, src, dst string, size int64, move bool) (SourceOutcome, bool) {
	name := string(op.Request.Type())
	fi, err := os.Lstat(src)
	if err != nil {
		return failed(src, dst, apperrors.Classify(name, src, err)), false
	}
	srcIsDir := fi.IsDir()
	if dst == src || (srcIsDir && within(dst, src)) {
		return failed(src, dst, apperrors.New(apperrors.KindInvalidDestination, name, dst, "destination is the source or inside it", nil)), false
	}

	merge := false
	if dfi, err := os.Lstat(dst); err == nil {
		res := op.pause(Conflict{Source: src, Destination: dst, SourceIsDir: srcIsDir, DestIsDir: dfi.IsDir()})
		switch res {
		case ResolveAbort:
			return SourceOutcome{}, true
		case ResolveSkip:
			return SourceOutcome{Source: src, Destination: dst, Status: OutcomeSkipped}, false
		case ResolveRename:
			dst = uniqueName(dst, srcIsDir)
		case ResolveOverwrite:
			if srcIsDir && dfi.IsDir() {
				merge = true
			} else if srcIsDir || dfi.IsDir() {
				if err := os.RemoveAll(dst); err != nil {
					return failed(src, dst, apperrors.Classify(name, dst, err)), false
				}
			}
		}
	}

	if move {
		return e.moveOne(src, dst, size, merge), false
	}
	return copyOne(src, dst), false
}

func copyOne(src, dst string) SourceOutcome {
	t := &transfer{op: "copy"}
	err := t.copyEntry(src, dst)
	return t.outcome(src, dst, err)
}

// moveOne renames src onto dst, falling back to copy-then-remove across
// filesystems or when merging into an existing directory.
func (e *Engine) moveOne(src, dst string, size int64, merge bool) SourceOutcome {
	if !merge {
		err := os.Rename(src, dst)
		if err == nil {
			return SourceOutcome{Source: src, Destination: dst, Status: OutcomeDone, Bytes: size}
		}
		if !errors.Is(err, syscall.EXDEV) {
			return failed(src, dst, apperrors.Classify("move", src, err))
		}
		e.logger.Debug("Cross-device move, copying instead", zap.String("src", src), zap.String("dst", dst))
	}

	t := &transfer{op: "move"}
	err := t.copyEntry(src, dst)
	if err != nil || len(t.failures) > 0 {
		// source kept intact when anything failed to copy
		return t.outcome(src, dst, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return SourceOutcome{
			Source:      src,
			Destination: dst,
			Status:      OutcomeCopiedNotRemoved,
			Bytes:       t.bytes,
			Err:         apperrors.Classify("move", src, err),
		}
	}
	return SourceOutcome{Source: src, Destination: dst, Status: OutcomeDone, Bytes: t.bytes}
}

func (e *Engine) runDelete(op *Operation, sizes []int64) State {
	for i, src := range op.Sources {
		if e.boundary(op, i) {
			return StateCancelled
		}
		outcome := SourceOutcome{Source: src, Status: OutcomeDone, Bytes: sizes[i]}
		if _, err := os.Lstat(src); err != nil {
			outcome = failed(src, "", apperrors.Classify("delete", src, err))
		} else if err := os.RemoveAll(src); err != nil {
			outcome = failed(src, "", apperrors.Classify("delete", src, err))
		}
		e.logOutcome(op, outcome)
		op.record(outcome)
	}
	return finalState(op)
}

func (e *Engine) runCreateFile(op *Operation, r CreateFileRequest) State {
	if e.boundary(op, 0) {
		return StateCancelled
	}
	target := op.Sources[0]
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if r.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	outcome := SourceOutcome{Source: target, Destination: target, Status: OutcomeDone}
	f, err := os.OpenFile(target, flags, 0644)
	if err != nil {
		outcome = failed(target, target, apperrors.Classify("create_file", target, err))
	} else if err := f.Close(); err != nil {
		outcome = failed(target, target, apperrors.Classify("create_file", target, err))
	}
	e.logOutcome(op, outcome)
	op.record(outcome)
	return finalState(op)
}

func (e *Engine) runCreateDirectory(op *Operation) State {
	if e.boundary(op, 0) {
		return StateCancelled
	}
	target := op.Sources[0]
	outcome := SourceOutcome{Source: target, Destination: target, Status: OutcomeDone}
	if err := os.Mkdir(target, 0755); err != nil {
		outcome = failed(target, target, apperrors.Classify("create_directory", target, err))
	}
	e.logOutcome(op, outcome)
	op.record(outcome)
	return finalState(op)
}

func (e *Engine) logOutcome(op *Operation, o SourceOutcome) {
	fields := []zap.Field{
		zap.Int64("id", op.ID),
		zap.String("src", o.Source),
		zap.String("status", string(o.Status)),
		zap.Int64("bytes", o.Bytes),
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err), zap.Int("childFailures", len(o.Failures)))
		e.logger.Warn("Source failed", fields...)
		return
	}
	e.logger.Debug("Source finished", fields...)
}

func failed(src, dst string, err error) SourceOutcome {
	return SourceOutcome{Source: src, Destination: dst, Status: OutcomeFailed, Err: err}
}

// finalState is Failed when something failed and nothing succeeded.
func finalState(op *Operation) State {
	var failures, successes int
	for _, o := range op.Snapshot().Outcomes {
		switch o.Status {
		case OutcomeFailed:
			failures++
		case OutcomeDone, OutcomeCopiedNotRemoved:
			successes++
		}
	}
	if failures > 0 && successes == 0 {
		return StateFailed
	}
	return StateCompleted
}

// affectedDirs lists the directories whose contents an operation may have changed.
func affectedDirs(op *Operation) []string {
	seen := make(map[string]struct{})
	var dirs []string
	add := func(d string) {
		if d == "" {
			return
		}
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dirs = append(dirs, d)
		}
	}
	switch op.Request.(type) {
	case CopyRequest, CreateFileRequest, CreateDirectoryRequest:
		add(op.DestDir)
	case MoveRequest:
		add(op.DestDir)
		for _, s := range op.Sources {
			add(filepath.Dir(s))
		}
	case DeleteRequest:
		for _, s := range op.Sources {
			add(filepath.Dir(s))
		}
	}
	return dirs
}

// validate rejects requests that cannot start.
func validate(req Request) error {
	switch r := req.(type) {
	case CopyRequest:
		return validateTransfer(string(r.Type()), r.Sources, r.DestDir)
	case MoveRequest:
		return validateTransfer(string(r.Type()), r.Sources, r.DestDir)
	case DeleteRequest:
		if len(r.Sources) == 0 {
			return apperrors.New(apperrors.KindNoOperation, "delete", "", "no sources", nil)
		}
		return nil
	case CreateFileRequest:
		return validateCreate("create_file", r.Dir, r.Name)
	case CreateDirectoryRequest:
		return validateCreate("create_directory", r.Dir, r.Name)
	default:
		return apperrors.New(apperrors.KindNoOperation, "submit", "", "unknown request", nil)
	}
}

func validateTransfer(op string, sources []string, dest string) error {
	if len(sources) == 0 {
		return apperrors.New(apperrors.KindNoOperation, op, "", "no sources", nil)
	}
	fi, err := os.Stat(dest)
	if err != nil {
		return apperrors.Classify(op, dest, err)
	}
	if !fi.IsDir() {
		return apperrors.New(apperrors.KindNotADirectory, op, dest, "destination is not a directory", nil)
	}
	return nil
}

func validateCreate(op, dir, name string) error {
	if !validName(name) {
		return apperrors.New(apperrors.KindInvalidName, op, filepath.Join(dir, name), fmt.Sprintf("invalid name %q", name), nil)
	}
	return nil
}
