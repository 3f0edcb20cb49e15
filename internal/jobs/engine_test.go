package jobs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	apperrors "twc/internal/errors"
)

type recordingRefresher struct {
	mu   sync.Mutex
	dirs [][]string
}

func (r *recordingRefresher) RefreshDirs(dirs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dirs)
}

func (r *recordingRefresher) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.dirs...)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// waitFor reads the progress stream until an event in state arrives.
func waitFor(t *testing.T, op *Operation, state State) Progress {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-op.Progress():
			if !ok {
				t.Fatalf("Progress stream closed before reaching %s", state)
			}
			if ev.State == state {
				return ev
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %s", state)
		}
	}
}

// drain consumes the rest of the stream and returns the last event.
func drain(t *testing.T, op *Operation) Progress {
	t.Helper()
	var last Progress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-op.Progress():
			if !ok {
				return last
			}
			last = ev
		case <-timeout:
			t.Fatal("Timed out waiting for the operation to finish")
		}
	}
}

func statuses(p Progress) []OutcomeStatus {
	out := make([]OutcomeStatus, len(p.Outcomes))
	for i, o := range p.Outcomes {
		out[i] = o.Status
	}
	return out
}

func submit(t *testing.T, e *Engine, req Request) *Operation {
	t.Helper()
	op, err := e.Submit(req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return op
}

func TestCopyConflictPausesBeforeWriting(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "x.txt"), "new content")
	write(t, filepath.Join(dst, "x.txt"), "original")

	e := NewEngine()
	op := submit(t, e, CopyRequest{Sources: []string{filepath.Join(src, "x.txt")}, DestDir: dst})

	paused := waitFor(t, op, StatePaused)
	if paused.Conflict == nil || paused.Conflict.Destination != filepath.Join(dst, "x.txt") {
		t.Fatalf("Expected conflict on x.txt, got %#v", paused.Conflict)
	}
	if got := read(t, filepath.Join(dst, "x.txt")); got != "original" {
		t.Errorf("Expected destination untouched while paused, got %q", got)
	}
	if exists(filepath.Join(dst, "x.txt.part")) {
		t.Error("Did not expect a temporary file while paused")
	}

	if err := e.Resolve(ResolveSkip, false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	last := drain(t, op)
	if last.State != StateCompleted {
		t.Errorf("Expected completed, got %s", last.State)
	}
	if !reflect.DeepEqual(statuses(last), []OutcomeStatus{OutcomeSkipped}) {
		t.Errorf("Expected a skipped outcome, got %v", statuses(last))
	}
	if got := read(t, filepath.Join(dst, "x.txt")); got != "original" {
		t.Errorf("Expected destination byte-identical after skip, got %q", got)
	}
}

func TestSubmitWhileActiveFails(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "x.txt"), "new")
	write(t, filepath.Join(dst, "x.txt"), "old")

	e := NewEngine()
	op := submit(t, e, CopyRequest{Sources: []string{filepath.Join(src, "x.txt")}, DestDir: dst})
	waitFor(t, op, StatePaused)

	_, err := e.Submit(DeleteRequest{Sources: []string{filepath.Join(src, "x.txt")}})
	if !errors.Is(err, apperrors.ErrOperationInProgress) {
		t.Fatalf("Expected operation in progress, got %v", err)
	}
	if op.State() != StatePaused {
		t.Errorf("Expected first operation to stay paused, got %s", op.State())
	}
	if !e.Busy() {
		t.Error("Expected engine to be busy")
	}

	if err := e.Resolve(ResolveOverwrite, false); err != nil {
		t.Fatal(err)
	}
	if last := drain(t, op); last.State != StateCompleted {
		t.Errorf("Expected completed, got %s", last.State)
	}
	if got := read(t, filepath.Join(dst, "x.txt")); got != "new" {
		t.Errorf("Expected overwrite, got %q", got)
	}
	if !exists(filepath.Join(src, "x.txt")) {
		t.Error("Expected the rejected delete to have no effect")
	}

	// a finished operation frees the engine
	next, err := e.Submit(CreateDirectoryRequest{Dir: dst, Name: "next"})
	if err != nil {
		t.Fatalf("Expected submit after completion to succeed, got %v", err)
	}
	drain(t, next)
}

func TestCopyContinuesAfterFailedSource(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "a.txt"), "a")
	write(t, filepath.Join(src, "c.txt"), "c")

	e := NewEngine()
	op := submit(t, e, CopyRequest{
		Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "missing.txt"), filepath.Join(src, "c.txt")},
		DestDir: dst,
	})
	last := drain(t, op)

	expected := []OutcomeStatus{OutcomeDone, OutcomeFailed, OutcomeDone}
	if !reflect.DeepEqual(statuses(last), expected) {
		t.Fatalf("Expected %v, got %v", expected, statuses(last))
	}
	if !errors.Is(last.Outcomes[1].Err, apperrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", last.Outcomes[1].Err)
	}
	if last.State != StateCompleted {
		t.Errorf("Expected completed, got %s", last.State)
	}
	if read(t, filepath.Join(dst, "c.txt")) != "c" {
		t.Error("Expected c.txt to be copied")
	}
}

func TestCopyContinuesAfterPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "a.txt"), "a")
	write(t, filepath.Join(src, "locked.txt"), "secret")
	write(t, filepath.Join(src, "c.txt"), "c")
	if err := os.Chmod(filepath.Join(src, "locked.txt"), 0000); err != nil {
		t.Fatal(err)
	}

	e := NewEngine()
	op := submit(t, e, CopyRequest{
		Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "locked.txt"), filepath.Join(src, "c.txt")},
		DestDir: dst,
	})
	last := drain(t, op)

	if !reflect.DeepEqual(statuses(last), []OutcomeStatus{OutcomeDone, OutcomeFailed, OutcomeDone}) {
		t.Fatalf("Unexpected outcomes %v", statuses(last))
	}
	if !errors.Is(last.Outcomes[1].Err, apperrors.ErrPermissionDenied) {
		t.Errorf("Expected permission denied, got %v", last.Outcomes[1].Err)
	}
	if exists(filepath.Join(dst, "locked.txt")) {
		t.Error("Did not expect a partial locked.txt")
	}
}

func TestCancelAtSourceBoundary(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	payload := string(bytes.Repeat([]byte("x"), 256*1024))
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		write(t, filepath.Join(src, name), payload)
	}

	e := NewEngine()
	e.beforeSource = func(op *Operation, index int) {
		if index == 1 {
			if err := e.Cancel(); err != nil {
				t.Errorf("Cancel: %v", err)
			}
		}
	}
	op := submit(t, e, CopyRequest{
		Sources: []string{filepath.Join(src, "a.bin"), filepath.Join(src, "b.bin"), filepath.Join(src, "c.bin")},
		DestDir: dst,
	})
	last := drain(t, op)

	if last.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", last.State)
	}
	expected := []OutcomeStatus{OutcomeDone, OutcomeCancelled, OutcomeCancelled}
	if !reflect.DeepEqual(statuses(last), expected) {
		t.Errorf("Expected %v, got %v", expected, statuses(last))
	}
	if got := read(t, filepath.Join(dst, "a.bin")); len(got) != len(payload) {
		t.Errorf("Expected a.bin fully copied, got %d bytes", len(got))
	}
	for _, name := range []string{"b.bin", "c.bin", "b.bin.part"} {
		if exists(filepath.Join(dst, name)) {
			t.Errorf("Did not expect %s at destination", name)
		}
	}
	if last.BytesDone != int64(len(payload)) {
		t.Errorf("Expected %d bytes done, got %d", len(payload), last.BytesDone)
	}
	if last.BytesTotal != int64(3*len(payload)) {
		t.Errorf("Expected %d bytes total, got %d", 3*len(payload), last.BytesTotal)
	}
}

func TestCancelWhilePausedAborts(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "a.txt"), "a")
	write(t, filepath.Join(src, "x.txt"), "new")
	write(t, filepath.Join(src, "z.txt"), "z")
	write(t, filepath.Join(dst, "x.txt"), "old")

	e := NewEngine()
	op := submit(t, e, CopyRequest{
		Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "x.txt"), filepath.Join(src, "z.txt")},
		DestDir: dst,
	})
	waitFor(t, op, StatePaused)
	if err := e.Cancel(); err != nil {
		t.Fatal(err)
	}
	last := drain(t, op)

	if last.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", last.State)
	}
	if !exists(filepath.Join(dst, "a.txt")) {
		t.Error("Expected completed source to remain")
	}
	if exists(filepath.Join(dst, "z.txt")) {
		t.Error("Did not expect unstarted source at destination")
	}
	if read(t, filepath.Join(dst, "x.txt")) != "old" {
		t.Error("Expected conflicting file untouched")
	}
}

func TestAbortKeepsCompletedSources(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "a.txt"), "a")
	write(t, filepath.Join(src, "x.txt"), "new")
	write(t, filepath.Join(src, "z.txt"), "z")
	write(t, filepath.Join(dst, "x.txt"), "old")

	e := NewEngine()
	op := submit(t, e, CopyRequest{
		Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "x.txt"), filepath.Join(src, "z.txt")},
		DestDir: dst,
	})
	waitFor(t, op, StatePaused)
	if err := e.Resolve(ResolveAbort, false); err != nil {
		t.Fatal(err)
	}
	last := drain(t, op)

	expected := []OutcomeStatus{OutcomeDone, OutcomeCancelled, OutcomeCancelled}
	if last.State != StateCancelled || !reflect.DeepEqual(statuses(last), expected) {
		t.Errorf("Expected cancelled with %v, got %s %v", expected, last.State, statuses(last))
	}
	if read(t, filepath.Join(dst, "a.txt")) != "a" {
		t.Error("Expected a.txt to stay copied")
	}
	if exists(filepath.Join(dst, "z.txt")) {
		t.Error("Did not expect z.txt")
	}
}

func TestRenameResolution(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "x.txt"), "new")
	write(t, filepath.Join(dst, "x.txt"), "old")
	write(t, filepath.Join(dst, "x (1).txt"), "older")

	e := NewEngine()
	op := submit(t, e, CopyRequest{Sources: []string{filepath.Join(src, "x.txt")}, DestDir: dst})
	waitFor(t, op, StatePaused)
	if err := e.Resolve(ResolveRename, false); err != nil {
		t.Fatal(err)
	}
	last := drain(t, op)

	renamed := filepath.Join(dst, "x (2).txt")
	if last.Outcomes[0].Destination != renamed {
		t.Errorf("Expected destination %s, got %s", renamed, last.Outcomes[0].Destination)
	}
	if read(t, renamed) != "new" || read(t, filepath.Join(dst, "x.txt")) != "old" {
		t.Error("Expected renamed copy next to the untouched original")
	}
}

func TestApplyToAllSkipsLaterPauses(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		write(t, filepath.Join(src, name), "new")
		write(t, filepath.Join(dst, name), "old")
	}

	e := NewEngine()
	var mu sync.Mutex
	pauses := 0
	e.Subscribe(func(p Progress) {
		if p.State == StatePaused {
			mu.Lock()
			pauses++
			mu.Unlock()
		}
	})
	op := submit(t, e, CopyRequest{Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "b.txt")}, DestDir: dst})
	waitFor(t, op, StatePaused)
	if err := e.Resolve(ResolveOverwrite, true); err != nil {
		t.Fatal(err)
	}
	drain(t, op)

	mu.Lock()
	defer mu.Unlock()
	if pauses != 1 {
		t.Errorf("Expected exactly one pause, got %d", pauses)
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if read(t, filepath.Join(dst, name)) != "new" {
			t.Errorf("Expected %s to be overwritten", name)
		}
	}
}

func TestCopyDirectoryRecursive(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	tree := filepath.Join(src, "tree")
	write(t, filepath.Join(tree, "top.txt"), "top")
	write(t, filepath.Join(tree, "sub", "deep", "leaf.txt"), "leaf")
	if err := os.Mkdir(filepath.Join(tree, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("top.txt", filepath.Join(tree, "link")); err != nil {
		t.Fatal(err)
	}

	refresher := &recordingRefresher{}
	e := NewEngine(WithRefresher(refresher))
	op := submit(t, e, CopyRequest{Sources: []string{tree}, DestDir: dst})
	last := drain(t, op)

	if last.State != StateCompleted || last.Outcomes[0].Status != OutcomeDone {
		t.Fatalf("Expected completed copy, got %s %v (%v)", last.State, statuses(last), last.Outcomes[0].Err)
	}
	if read(t, filepath.Join(dst, "tree", "sub", "deep", "leaf.txt")) != "leaf" {
		t.Error("Expected nested file to be copied")
	}
	if fi, err := os.Stat(filepath.Join(dst, "tree", "empty")); err != nil || !fi.IsDir() {
		t.Error("Expected empty directory to be copied")
	}
	target, err := os.Readlink(filepath.Join(dst, "tree", "link"))
	if err != nil || target != "top.txt" {
		t.Errorf("Expected symlink to top.txt, got %q (%v)", target, err)
	}
	if last.BytesDone != int64(len("top")+len("leaf")) {
		t.Errorf("Expected %d bytes, got %d", len("top")+len("leaf"), last.BytesDone)
	}
	if calls := refresher.calls(); len(calls) != 1 || !reflect.DeepEqual(calls[0], []string{dst}) {
		t.Errorf("Expected refresh of %s, got %v", dst, calls)
	}
}

func TestCopyDirectoryRecordsChildFailures(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	src, dst := t.TempDir(), t.TempDir()
	tree := filepath.Join(src, "tree")
	write(t, filepath.Join(tree, "ok1.txt"), "1")
	write(t, filepath.Join(tree, "locked.txt"), "x")
	write(t, filepath.Join(tree, "ok2.txt"), "2")
	if err := os.Chmod(filepath.Join(tree, "locked.txt"), 0000); err != nil {
		t.Fatal(err)
	}

	e := NewEngine()
	last := drain(t, submit(t, e, CopyRequest{Sources: []string{tree}, DestDir: dst}))

	o := last.Outcomes[0]
	if o.Status != OutcomeFailed || len(o.Failures) != 1 {
		t.Fatalf("Expected one child failure, got %s %#v", o.Status, o.Failures)
	}
	for _, name := range []string{"ok1.txt", "ok2.txt"} {
		if !exists(filepath.Join(dst, "tree", name)) {
			t.Errorf("Expected sibling %s to be copied", name)
		}
	}
}

func TestCopyIntoItselfIsRejected(t *testing.T) {
	root := t.TempDir()
	tree := filepath.Join(root, "tree")
	write(t, filepath.Join(tree, "f.txt"), "f")

	e := NewEngine()
	last := drain(t, submit(t, e, CopyRequest{Sources: []string{tree}, DestDir: tree}))

	if last.State != StateFailed {
		t.Errorf("Expected failed, got %s", last.State)
	}
	if !errors.Is(last.Outcomes[0].Err, apperrors.ErrInvalidDestination) {
		t.Errorf("Expected invalid destination, got %v", last.Outcomes[0].Err)
	}
	if exists(filepath.Join(tree, "tree")) {
		t.Error("Did not expect a nested copy")
	}
}

func TestMove(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "file.txt"), "file")
	write(t, filepath.Join(src, "dir", "inner.txt"), "inner")

	refresher := &recordingRefresher{}
	e := NewEngine(WithRefresher(refresher))
	last := drain(t, submit(t, e, MoveRequest{
		Sources: []string{filepath.Join(src, "file.txt"), filepath.Join(src, "dir")},
		DestDir: dst,
	}))

	if last.State != StateCompleted || !reflect.DeepEqual(statuses(last), []OutcomeStatus{OutcomeDone, OutcomeDone}) {
		t.Fatalf("Expected two moves, got %s %v", last.State, statuses(last))
	}
	if exists(filepath.Join(src, "file.txt")) || exists(filepath.Join(src, "dir")) {
		t.Error("Expected sources to be gone")
	}
	if read(t, filepath.Join(dst, "dir", "inner.txt")) != "inner" {
		t.Error("Expected directory to be moved")
	}
	if last.BytesDone != int64(len("file")+len("inner")) {
		t.Errorf("Expected %d bytes, got %d", len("file")+len("inner"), last.BytesDone)
	}
	calls := refresher.calls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], []string{dst, src}) {
		t.Errorf("Expected refresh of [%s %s], got %v", dst, src, calls)
	}
}

func TestMoveMergesIntoExistingDirectory(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "dir", "new.txt"), "new")
	write(t, filepath.Join(src, "dir", "same.txt"), "from source")
	write(t, filepath.Join(dst, "dir", "keep.txt"), "keep")
	write(t, filepath.Join(dst, "dir", "same.txt"), "from dest")

	e := NewEngine()
	op := submit(t, e, MoveRequest{Sources: []string{filepath.Join(src, "dir")}, DestDir: dst})
	ev := waitFor(t, op, StatePaused)
	if !ev.Conflict.SourceIsDir || !ev.Conflict.DestIsDir {
		t.Errorf("Expected a directory conflict, got %#v", ev.Conflict)
	}
	if err := e.Resolve(ResolveOverwrite, false); err != nil {
		t.Fatal(err)
	}
	last := drain(t, op)

	if last.Outcomes[0].Status != OutcomeDone {
		t.Fatalf("Expected done, got %s (%v)", last.Outcomes[0].Status, last.Outcomes[0].Err)
	}
	if exists(filepath.Join(src, "dir")) {
		t.Error("Expected source directory removed")
	}
	for name, content := range map[string]string{"new.txt": "new", "same.txt": "from source", "keep.txt": "keep"} {
		if got := read(t, filepath.Join(dst, "dir", name)); got != content {
			t.Errorf("Expected %s to contain %q, got %q", name, content, got)
		}
	}
}

func TestMoveReportsCopiedNotRemoved(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	src, dst := t.TempDir(), t.TempDir()
	parent := filepath.Join(src, "parent")
	write(t, filepath.Join(parent, "dir", "f.txt"), "f")
	write(t, filepath.Join(dst, "dir", "other.txt"), "o")
	if err := os.Chmod(parent, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(parent, 0755) })

	e := NewEngine()
	op := submit(t, e, MoveRequest{Sources: []string{filepath.Join(parent, "dir")}, DestDir: dst})
	waitFor(t, op, StatePaused)
	if err := e.Resolve(ResolveOverwrite, false); err != nil {
		t.Fatal(err)
	}
	last := drain(t, op)

	if last.Outcomes[0].Status != OutcomeCopiedNotRemoved {
		t.Fatalf("Expected copied_not_removed, got %s", last.Outcomes[0].Status)
	}
	if last.State != StateCompleted {
		t.Errorf("Expected completed, got %s", last.State)
	}
	if read(t, filepath.Join(dst, "dir", "f.txt")) != "f" {
		t.Error("Expected the copy to exist")
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.txt"), "aaaa")
	write(t, filepath.Join(dir, "tree", "b", "c.txt"), "cc")

	e := NewEngine()
	last := drain(t, submit(t, e, DeleteRequest{Sources: []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "missing"),
		filepath.Join(dir, "tree"),
	}}))

	expected := []OutcomeStatus{OutcomeDone, OutcomeFailed, OutcomeDone}
	if !reflect.DeepEqual(statuses(last), expected) {
		t.Fatalf("Expected %v, got %v", expected, statuses(last))
	}
	if last.State != StateCompleted {
		t.Errorf("Expected completed, got %s", last.State)
	}
	if exists(filepath.Join(dir, "a.txt")) || exists(filepath.Join(dir, "tree")) {
		t.Error("Expected sources removed")
	}
	if last.BytesDone != 6 {
		t.Errorf("Expected 6 bytes, got %d", last.BytesDone)
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "taken"), "data")
	e := NewEngine()

	last := drain(t, submit(t, e, CreateFileRequest{Dir: dir, Name: "new.txt"}))
	if last.State != StateCompleted || !exists(filepath.Join(dir, "new.txt")) {
		t.Errorf("Expected file to be created, got %s", last.State)
	}

	last = drain(t, submit(t, e, CreateFileRequest{Dir: dir, Name: "taken"}))
	if last.State != StateFailed || !errors.Is(last.Outcomes[0].Err, apperrors.ErrAlreadyExists) {
		t.Errorf("Expected already exists failure, got %s %v", last.State, last.Outcomes[0].Err)
	}
	if read(t, filepath.Join(dir, "taken")) != "data" {
		t.Error("Expected existing file untouched")
	}

	last = drain(t, submit(t, e, CreateFileRequest{Dir: dir, Name: "taken", Overwrite: true}))
	if last.State != StateCompleted || read(t, filepath.Join(dir, "taken")) != "" {
		t.Errorf("Expected overwrite to truncate, got %s", last.State)
	}

	last = drain(t, submit(t, e, CreateDirectoryRequest{Dir: dir, Name: "sub"}))
	if fi, err := os.Stat(filepath.Join(dir, "sub")); last.State != StateCompleted || err != nil || !fi.IsDir() {
		t.Errorf("Expected directory to be created, got %s", last.State)
	}

	last = drain(t, submit(t, e, CreateDirectoryRequest{Dir: dir, Name: "sub"}))
	if !errors.Is(last.Outcomes[0].Err, apperrors.ErrAlreadyExists) {
		t.Errorf("Expected already exists, got %v", last.Outcomes[0].Err)
	}
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine()
	for _, name := range []string{"", ".", "..", "a/b", "x\x00y"} {
		if _, err := e.Submit(CreateFileRequest{Dir: dir, Name: name}); !errors.Is(err, apperrors.ErrInvalidName) {
			t.Errorf("File %q: expected invalid name, got %v", name, err)
		}
		if _, err := e.Submit(CreateDirectoryRequest{Dir: dir, Name: name}); !errors.Is(err, apperrors.ErrInvalidName) {
			t.Errorf("Directory %q: expected invalid name, got %v", name, err)
		}
	}
	if e.Current() != nil {
		t.Error("Did not expect an operation record for rejected requests")
	}
}

func TestSubmitValidation(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "file"), "x")
	e := NewEngine()

	testCases := []struct {
		name     string
		req      Request
		expected error
	}{
		{"no sources", CopyRequest{DestDir: dir}, apperrors.ErrNoOperation},
		{"missing dest", MoveRequest{Sources: []string{filepath.Join(dir, "file")}, DestDir: filepath.Join(dir, "nope")}, apperrors.ErrNotFound},
		{"dest is file", CopyRequest{Sources: []string{dir}, DestDir: filepath.Join(dir, "file")}, apperrors.ErrNotADirectory},
		{"empty delete", DeleteRequest{}, apperrors.ErrNoOperation},
		{"nil", nil, apperrors.ErrNoOperation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Submit(tc.req); !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestProgressStreamOrdering(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, filepath.Join(src, "a.txt"), "aaaa")
	write(t, filepath.Join(src, "b.txt"), "bb")
	write(t, filepath.Join(src, "c.txt"), "c")
	write(t, filepath.Join(dst, "b.txt"), "old")

	e := NewEngine()
	op := submit(t, e, CopyRequest{
		Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "b.txt"), filepath.Join(src, "c.txt")},
		DestDir: dst,
	})
	stream := op.Progress()
	if op.Progress() != stream {
		t.Error("Expected the same stream on repeated calls")
	}

	var events []Progress
	for ev := range stream {
		events = append(events, ev)
		if ev.State == StatePaused {
			if err := e.Resolve(ResolveSkip, false); err != nil {
				t.Fatal(err)
			}
		}
	}

	if events[0].State != StatePending || events[0].Seq != 1 {
		t.Errorf("Expected first event pending with seq 1, got %s %d", events[0].State, events[0].Seq)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq != events[i-1].Seq+1 {
			t.Errorf("Expected consecutive seq, got %d after %d", events[i].Seq, events[i-1].Seq)
		}
		if events[i].BytesDone < events[i-1].BytesDone {
			t.Errorf("BytesDone went backwards: %d after %d", events[i].BytesDone, events[i-1].BytesDone)
		}
		if events[i-1].Finished {
			t.Error("Did not expect events after the finished one")
		}
	}
	last := events[len(events)-1]
	if !last.Finished || last.State != StateCompleted {
		t.Errorf("Expected finished completed event, got %#v", last)
	}
	if !reflect.DeepEqual(statuses(last), []OutcomeStatus{OutcomeDone, OutcomeSkipped, OutcomeDone}) {
		t.Errorf("Unexpected outcomes %v", statuses(last))
	}
	if last.BytesDone != 5 || last.BytesTotal != 7 {
		t.Errorf("Expected 5/7 bytes, got %d/%d", last.BytesDone, last.BytesTotal)
	}
	select {
	case <-op.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}

func TestNothingToResolveOrCancel(t *testing.T) {
	e := NewEngine()
	if err := e.Resolve(ResolveSkip, false); !errors.Is(err, apperrors.ErrNoOperation) {
		t.Errorf("Expected no operation, got %v", err)
	}
	if err := e.Cancel(); !errors.Is(err, apperrors.ErrNoOperation) {
		t.Errorf("Expected no operation, got %v", err)
	}
	if err := e.Resolve(Resolution("maybe"), false); !errors.Is(err, apperrors.ErrInvalidResolution) {
		t.Errorf("Expected invalid resolution, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(WithHistoryLimit(2))
	for _, name := range []string{"one", "two", "three"} {
		drain(t, submit(t, e, CreateDirectoryRequest{Dir: dir, Name: name}))
	}

	history := e.History()
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	if history[0].OperationID != 3 || history[1].OperationID != 2 {
		t.Errorf("Expected newest first [3 2], got [%d %d]", history[0].OperationID, history[1].OperationID)
	}
}
