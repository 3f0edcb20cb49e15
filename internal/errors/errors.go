package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Kind classifies an error into the taxonomy surfaced to the user layer
type Kind int

const (
	KindIO Kind = iota
	KindNotFound
	KindNotADirectory
	KindPermissionDenied
	KindAlreadyExists
	KindInvalidName
	KindOperationInProgress
	KindSizeMismatch
	KindInvalidDestination
	KindNoOperation
	KindInvalidResolution
	KindConfig
)

// String returns a string representation of the error kind
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindNotFound:
		return "not found"
	case KindNotADirectory:
		return "not a directory"
	case KindPermissionDenied:
		return "permission denied"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidName:
		return "invalid name"
	case KindOperationInProgress:
		return "operation in progress"
	case KindSizeMismatch:
		return "size mismatch"
	case KindInvalidDestination:
		return "invalid destination"
	case KindNoOperation:
		return "no operation"
	case KindInvalidResolution:
		return "invalid resolution"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is comparisons; only the Kind is compared.
var (
	ErrNotFound            = &AppError{Kind: KindNotFound}
	ErrNotADirectory       = &AppError{Kind: KindNotADirectory}
	ErrPermissionDenied    = &AppError{Kind: KindPermissionDenied}
	ErrAlreadyExists       = &AppError{Kind: KindAlreadyExists}
	ErrInvalidName         = &AppError{Kind: KindInvalidName}
	ErrOperationInProgress = &AppError{Kind: KindOperationInProgress}
	ErrSizeMismatch        = &AppError{Kind: KindSizeMismatch}
	ErrInvalidDestination  = &AppError{Kind: KindInvalidDestination}
	ErrNoOperation         = &AppError{Kind: KindNoOperation}
	ErrInvalidResolution   = &AppError{Kind: KindInvalidResolution}
)

// AppError represents a structured application error
type AppError struct {
	Kind      Kind
	Operation string
	Path      string
	Message   string
	Err       error
}

func (e *AppError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error in %s [%s]: %s", e.Kind, e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Kind, e.Operation, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError of the same Kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, operation, path, message string, err error) *AppError {
	return &AppError{
		Kind:      kind,
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// NewConfigError creates a new configuration error
func NewConfigError(operation, message string, err error) *AppError {
	return &AppError{
		Kind:      KindConfig,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NewFileSystemError creates a filesystem error whose kind is derived from err
func NewFileSystemError(operation, path, message string, err error) *AppError {
	return &AppError{
		Kind:      kindFromOS(err),
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Classify maps a raw error onto the taxonomy. An *AppError is returned unchanged.
func Classify(operation, path string, err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewFileSystemError(operation, path, message(err), err)
}

// KindOf returns the kind of err, KindIO for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return kindFromOS(err)
}

func kindFromOS(err error) Kind {
	switch {
	case err == nil:
		return KindIO
	case stderrors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case stderrors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case stderrors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case stderrors.Is(err, syscall.ENOTDIR):
		return KindNotADirectory
	default:
		return KindIO
	}
}

// message strips the path prefix of *fs.PathError so it is not repeated.
func message(err error) string {
	var pe *fs.PathError
	if stderrors.As(err, &pe) {
		return pe.Err.Error()
	}
	var le *os.LinkError
	if stderrors.As(err, &le) {
		return le.Err.Error()
	}
	return err.Error()
}
