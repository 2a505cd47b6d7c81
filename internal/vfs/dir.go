package vfs

import (
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

type dirFS struct {
	fsys fs.FS
}

// FromFS wraps an fs.FS. Names use forward slashes; backslashes are
// accepted and converted.
func FromFS(fsys fs.FS) FS {
	return &dirFS{fsys: fsys}
}

// Dir returns a source backed by a directory on disk.
func Dir(dir string) (FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "opening directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}
	return FromFS(os.DirFS(dir)), nil
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func (d *dirFS) IsFile(name string) bool {
	name = cleanName(name)
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(d.fsys, name)
	return err == nil && !info.IsDir()
}

func (d *dirFS) Open(name string) (io.ReadCloser, error) {
	f, err := d.fsys.Open(cleanName(name))
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	return f, nil
}

func (d *dirFS) List() []string {
	var names []string
	_ = fs.WalkDir(d.fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	return names
}

func (d *dirFS) Close() error { return nil }
