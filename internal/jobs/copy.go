package jobs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "twc/internal/errors"
)

const copyBufferSize = 1 << 20 // 1 MiB

// transfer accumulates the bytes and child failures of one source.
type transfer struct {
	op       string
	bytes    int64
	failures []Failure
}

func (t *transfer) fail(err error) {
	appErr := apperrors.Classify(t.op, "", err)
	t.failures = append(t.failures, Failure{Path: appErr.Path, Err: appErr})
}

// outcome turns the transfer result into a per-source outcome.
func (t *transfer) outcome(src, dst string, err error) SourceOutcome {
	o := SourceOutcome{Source: src, Destination: dst, Status: OutcomeDone, Bytes: t.bytes, Failures: t.failures}
	switch {
	case err != nil:
		o.Status = OutcomeFailed
		o.Err = err
	case len(t.failures) > 0:
		o.Status = OutcomeFailed
		o.Err = t.failures[0].Err
	}
	return o
}

// copyEntry copies src to dst without following symlinks. Directories are
// merged into an existing dst; child failures are collected and do not stop
// their siblings.
func (t *transfer) copyEntry(src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return wrapPath(t.op, src, err)
	}
	switch {
	case fi.IsDir():
		return t.copyDir(src, dst, fi.Mode())
	case fi.Mode()&os.ModeSymlink != 0:
		return copySymlink(t.op, src, dst)
	case !fi.Mode().IsRegular():
		// opening a fifo blocks until a writer appears
		return apperrors.New(apperrors.KindIO, t.op, src,
			fmt.Sprintf("cannot copy special file (%s)", fi.Mode().Type()), nil)
	default:
		n, err := copyFile(t.op, src, dst, fi.Mode())
		t.bytes += n
		return err
	}
}

func (t *transfer) copyDir(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return wrapPath(t.op, dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return wrapPath(t.op, src, err)
	}
	for _, e := range entries {
		if err := t.copyEntry(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			t.fail(err)
		}
	}
	// applied last so a read-only source dir does not block its own children
	_ = os.Chmod(dst, mode.Perm())
	return nil
}

func copySymlink(op, src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return wrapPath(op, src, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return wrapPath(op, dst, err)
		}
	}
	if err := os.Symlink(target, dst); err != nil {
		return wrapPath(op, dst, err)
	}
	return nil
}

// copyFile writes src to a uniquely named temporary file next to dst, checks
// that its size matches the source, then renames it into place. dst is never
// left truncated: it is either replaced whole or untouched. Existing
// siblings are never opened.
func copyFile(op, src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, wrapPath(op, src, err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return 0, wrapPath(op, src, err)
	}

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return 0, wrapPath(op, dst, err)
	}
	tmp := out.Name()
	written, err := io.CopyBuffer(out, in, make([]byte, copyBufferSize))
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, wrapPath(op, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, wrapPath(op, dst, err)
	}

	if err := verifySize(tmp, written, st.Size()); err != nil {
		os.Remove(tmp)
		return 0, apperrors.New(apperrors.KindSizeMismatch, op, dst, err.Error(), err)
	}
	if err := os.Chmod(tmp, mode.Perm()); err != nil {
		os.Remove(tmp)
		return 0, wrapPath(op, dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, wrapPath(op, dst, err)
	}
	return written, nil
}

// verifySize compares bytes written and the on-disk size against expected.
func verifySize(path string, written, expected int64) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if written != expected || fi.Size() != expected {
		return fmt.Errorf("wrote %d bytes, file has %d, source has %d", written, fi.Size(), expected)
	}
	return nil
}

// uniqueName returns "name (n).ext" in dst's directory, the first n that does not exist.
func uniqueName(dst string, isDir bool) string {
	dir, base := filepath.Split(dst)
	stem, ext := base, ""
	if !isDir {
		ext = filepath.Ext(base)
		if ext == base {
			// dot-file without extension
			ext = ""
		}
		stem = strings.TrimSuffix(base, ext)
	}
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// within reports whether path equals root or lies below it.
func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func wrapPath(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Classify(op, path, err)
}
