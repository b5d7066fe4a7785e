// Package output places the rendered text next to the project file.
//
// A write either leaves the complete new file at the destination or leaves
// no file there at all: content goes to a temporary file in the destination
// directory, which is renamed over the destination only after it was fully
// written and closed.
package output

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Ext is the extension of every output file.
const Ext = ".txt"

// WriteError reports that the output file could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PathFor returns the output path for input: same directory and base name,
// extension replaced by .txt. An input that already ends in .txt is not
// mapped onto itself.
func PathFor(input string) string {
	ext := filepath.Ext(input)
	if strings.EqualFold(ext, Ext) {
		return input + Ext
	}
	return strings.TrimSuffix(input, ext) + Ext
}

// Write creates path with the content fn writes. fn receives a buffered
// writer; an error from fn aborts the write and is returned unchanged, any
// other failure is a *WriteError. On failure path is left untouched.
func Write(path string, fn func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: errors.Wrap(err, "create temporary file")}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := fn(w); err != nil {
		var we *WriteError
		if errors.As(err, &we) {
			return err
		}
		if isWriteFailure(err) {
			return &WriteError{Path: path, Err: err}
		}
		return err
	}
	if err := w.Flush(); err != nil {
		return &WriteError{Path: path, Err: errors.Wrap(err, "flush")}
	}
	if err := tmp.Chmod(0o644); err != nil {
		return &WriteError{Path: path, Err: errors.Wrap(err, "chmod")}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: errors.Wrap(err, "close")}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: errors.Wrap(err, "rename")}
	}
	return nil
}

// Discard removes the output left at path by an earlier run. Only a regular
// file is removed; a missing file or anything else at path is left alone.
func Discard(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &WriteError{Path: path, Err: errors.Wrap(err, "stat stale output")}
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	err = os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return &WriteError{Path: path, Err: errors.Wrap(err, "remove stale output")}
}

// isWriteFailure reports whether err came from the file system rather than
// from the producer of the content.
func isWriteFailure(err error) bool {
	var pe *fs.PathError
	return errors.As(err, &pe)
}
