package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File stores each blob as a file in a directory. Writes go to a
// temporary file that is renamed into place, so readers never observe a
// partially written snapshot.
type File struct {
	dir string
}

// NewFile creates a file store rooted at dir, creating the directory if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Load(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrLoadFailed, err)
	}
	return data, nil
}

func (f *File) Save(_ context.Context, key string, data []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".snapshot-*")
	if err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(ErrDeleteFailed, err)
	}
	return nil
}

// Ping checks that the store directory is still present.
func (f *File) Ping(context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrHealthcheckFailed, f.dir)
	}
	return nil
}

// path maps key to a file name inside the store directory.
// Path separators and colons are flattened so every key stays in dir.
func (f *File) path(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, name+".snapshot"), nil
}

var _ Store = (*File)(nil)
