// Package effects holds the filesystem operations of the pipelines:
// directory listing, file creation and moves into an archive.
package effects

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is the set of filesystem operations the pipelines are allowed to perform.
type FS interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
	MkdirAll(dir string) error
	Rename(from, to string) error
	Stat(path string) (fs.FileInfo, error)
}

// IOError reports a failed filesystem operation together with the offending path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Wrap returns err as an *IOError unless it is nil or already one.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// OS implements FS on top of the host filesystem.
type OS struct{}

func (OS) ReadDir(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	return entries, Wrap("read dir", dir, err)
}

func (OS) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Wrap("open", path, err)
	}
	return f, nil
}

func (OS) Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, Wrap("create", path, err)
	}
	return f, nil
}

func (OS) MkdirAll(dir string) error {
	return Wrap("mkdir", dir, os.MkdirAll(dir, 0755))
}

func (OS) Rename(from, to string) error {
	return Wrap("move", from, os.Rename(from, to))
}

func (OS) Stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	return info, Wrap("stat", path, err)
}

// CollisionPolicy decides what Move does when the destination already exists.
type CollisionPolicy string

const (
	CollisionRename    CollisionPolicy = "rename"
	CollisionOverwrite CollisionPolicy = "overwrite"
	CollisionFail      CollisionPolicy = "fail"
)

// ErrDestinationExists is wrapped in the IOError returned by Move under CollisionFail.
var ErrDestinationExists = errors.New("destination already exists")

// maxRenameAttempts bounds the search for a free archive name.
const maxRenameAttempts = 10000

// Move relocates src into dir under its base name and returns the final path.
// When that name is taken, policy decides: rename picks "<stem>.<n><ext>"
// with the first free n, overwrite replaces it, fail returns an IOError.
func Move(fsys FS, src, dir string, policy CollisionPolicy) (string, error) {
	name := filepath.Base(src)
	dest := filepath.Join(dir, name)

	if _, err := fsys.Stat(dest); err == nil {
		switch policy {
		case CollisionOverwrite:
		case CollisionFail:
			return "", &IOError{Op: "move", Path: dest, Err: ErrDestinationExists}
		default:
			free, err := FreeName(fsys, dir, name)
			if err != nil {
				return "", err
			}
			dest = free
		}
	}

	if err := fsys.Rename(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// FreeName returns dir/name if nothing exists there, otherwise
// dir/<stem>.<n><ext> for the first free n.
func FreeName(fsys FS, dir, name string) (string, error) {
	if _, err := fsys.Stat(filepath.Join(dir, name)); errors.Is(err, fs.ErrNotExist) {
		return filepath.Join(dir, name), nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n <= maxRenameAttempts; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, n, ext))
		if _, err := fsys.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", &IOError{Op: "move", Path: filepath.Join(dir, name), Err: ErrDestinationExists}
}
