package fileinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "twc/internal/errors"
)

// Kind represents the type of a directory entry
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "file"
	}
}

// Entry is an immutable snapshot of one directory child taken at listing time
type Entry struct {
	Name     string
	Path     string
	Kind     Kind
	Size     int64
	Modified time.Time
	Mode     os.FileMode
	Hidden   bool
}

// IsDir reports whether the entry itself is a directory (symlinks are not followed).
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Extension returns the lower-cased extension without the leading dot.
func (e Entry) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name), "."))
}

// DetermineKind maps a file mode onto an entry kind without following symlinks
func DetermineKind(mode os.FileMode) Kind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	default:
		return KindFile
	}
}

// IsHidden applies the platform naming convention: dot-files everywhere,
// plus the hidden attribute on Windows.
func IsHidden(path, name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return hasHiddenAttribute(path)
}

// Reader lists directories. It keeps no state between calls.
type Reader struct {
	fs FileSystem
}

// NewReader returns a Reader backed by the real filesystem
func NewReader() *Reader {
	return &Reader{fs: &RealFileSystem{}}
}

// NewReaderWithFS returns a Reader backed by fsys
func NewReaderWithFS(fsys FileSystem) *Reader {
	return &Reader{fs: fsys}
}

// ReadDir returns the direct children of path. Symlinks are reported as
// KindSymlink and never followed. Children that disappear between the
// directory read and their metadata read are skipped.
func (r *Reader) ReadDir(path string) ([]Entry, error) {
	if !r.fs.IsAbs(path) {
		return nil, apperrors.New(apperrors.KindNotFound, "read_directory", path, "path is not absolute", nil)
	}

	info, err := r.fs.Stat(path)
	if err != nil {
		return nil, apperrors.Classify("read_directory", path, err)
	}
	if !info.IsDir() {
		return nil, apperrors.New(apperrors.KindNotADirectory, "read_directory", path, "not a directory", nil)
	}

	dirEntries, err := r.fs.ReadDir(path)
	if err != nil {
		return nil, apperrors.Classify("read_directory", path, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		fi, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			// metadata unreadable: keep the name so the entry is still visible
			full := filepath.Join(path, de.Name())
			entries = append(entries, Entry{
				Name:   de.Name(),
				Path:   full,
				Kind:   DetermineKind(de.Type()),
				Mode:   de.Type(),
				Hidden: IsHidden(full, de.Name()),
			})
			continue
		}
		entries = append(entries, FromFileInfo(path, fi))
	}
	return entries, nil
}

// Stat returns a single Entry for path without following a final symlink
func (r *Reader) Stat(path string) (Entry, error) {
	fi, err := r.fs.Lstat(path)
	if err != nil {
		return Entry{}, apperrors.Classify("stat", path, err)
	}
	return FromFileInfo(filepath.Dir(path), fi), nil
}

// ResolvesToDir reports whether path, following symlinks, is a directory
func (r *Reader) ResolvesToDir(path string) bool {
	fi, err := r.fs.Stat(path)
	return err == nil && fi.IsDir()
}

// FromFileInfo builds an Entry for a child of dir
func FromFileInfo(dir string, fi os.FileInfo) Entry {
	full := filepath.Join(dir, fi.Name())
	return Entry{
		Name:     fi.Name(),
		Path:     full,
		Kind:     DetermineKind(fi.Mode()),
		Size:     fi.Size(),
		Modified: fi.ModTime(),
		Mode:     fi.Mode(),
		Hidden:   IsHidden(full, fi.Name()),
	}
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// ProgressPercent returns done/total as a whole percentage, 0 when either is zero.
func ProgressPercent(done, total int64) int {
	if done <= 0 || total <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(float64(done) / float64(total) * 100)
}
