package jobs

import (
	"path/filepath"
	"strings"
	"time"
)

// Type represents the kind of file operation.
type Type string

const (
	TypeCopy            Type = "copy"
	TypeMove            Type = "move"
	TypeDelete          Type = "delete"
	TypeCreateFile      Type = "create_file"
	TypeCreateDirectory Type = "create_directory"
)

// Request is a closed set of operation payloads. The engine dispatches on
// the concrete type.
type Request interface {
	Type() Type
	isRequest()
}

// CopyRequest copies every source into DestDir, keeping base names.
type CopyRequest struct {
	Sources []string
	DestDir string
}

// MoveRequest moves every source into DestDir, keeping base names.
type MoveRequest struct {
	Sources []string
	DestDir string
}

// DeleteRequest removes every source, recursively for directories.
type DeleteRequest struct {
	Sources []string
}

// CreateFileRequest creates an empty file Name inside Dir.
type CreateFileRequest struct {
	Dir       string
	Name      string
	Overwrite bool
}

// CreateDirectoryRequest creates directory Name inside Dir.
type CreateDirectoryRequest struct {
	Dir  string
	Name string
}

func (CopyRequest) Type() Type            { return TypeCopy }
func (MoveRequest) Type() Type            { return TypeMove }
func (DeleteRequest) Type() Type          { return TypeDelete }
func (CreateFileRequest) Type() Type      { return TypeCreateFile }
func (CreateDirectoryRequest) Type() Type { return TypeCreateDirectory }

func (CopyRequest) isRequest()            {}
func (MoveRequest) isRequest()            {}
func (DeleteRequest) isRequest()          {}
func (CreateFileRequest) isRequest()      {}
func (CreateDirectoryRequest) isRequest() {}

// plan returns the sources in request order and the destination directory
// ("" for delete).
func plan(req Request) (sources []string, dest string) {
	switch r := req.(type) {
	case CopyRequest:
		return cleanAll(r.Sources), filepath.Clean(r.DestDir)
	case MoveRequest:
		return cleanAll(r.Sources), filepath.Clean(r.DestDir)
	case DeleteRequest:
		return cleanAll(r.Sources), ""
	case CreateFileRequest:
		return []string{filepath.Join(r.Dir, r.Name)}, filepath.Clean(r.Dir)
	case CreateDirectoryRequest:
		return []string{filepath.Join(r.Dir, r.Name)}, filepath.Clean(r.Dir)
	default:
		return nil, ""
	}
}

func cleanAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Clean(p)
	}
	return out
}

// validName rejects names that are empty, relative markers or contain a separator.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsRune(name, '/') &&
		!strings.ContainsRune(name, filepath.Separator) &&
		!strings.ContainsRune(name, 0)
}

// State represents the lifecycle state of an operation.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused_on_conflict"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Resolution answers a destination collision.
type Resolution string

const (
	ResolveOverwrite Resolution = "overwrite"
	ResolveSkip      Resolution = "skip"
	ResolveRename    Resolution = "rename"
	ResolveAbort     Resolution = "abort"
)

// Conflict describes the collision an operation is paused on.
type Conflict struct {
	Source      string
	Destination string
	SourceIsDir bool
	DestIsDir   bool
}

// OutcomeStatus is the result recorded for one requested source.
type OutcomeStatus string

const (
	OutcomeDone             OutcomeStatus = "done"
	OutcomeSkipped          OutcomeStatus = "skipped"
	OutcomeFailed           OutcomeStatus = "failed"
	OutcomeCopiedNotRemoved OutcomeStatus = "copied_not_removed"
	OutcomeCancelled        OutcomeStatus = "cancelled"
)

// SourceOutcome records what happened to one requested source.
type SourceOutcome struct {
	Source      string
	Destination string
	Status      OutcomeStatus
	Bytes       int64
	Err         error
	Failures    []Failure // children of a directory that failed
}

// Failure records a single failing path inside a source.
type Failure struct {
	Path string
	Err  error
}

// Progress is one snapshot of an operation. Seq increases by one per event
// and BytesDone never decreases.
type Progress struct {
	OperationID int64
	Seq         int64
	Type        Type
	State       State
	Outcomes    []SourceOutcome
	BytesDone   int64
	BytesTotal  int64
	Finished    bool
	Conflict    *Conflict
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Counts tallies outcomes by status.
func (p Progress) Counts() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int)
	for _, o := range p.Outcomes {
		counts[o.Status]++
	}
	return counts
}
