package io

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

var _ FileIO = (*LocalFileSystem)(nil)

// LocalFileSystem is the default implementation of file io, backed by an afero filesystem
type LocalFileSystem struct {
	fs afero.Fs
}

// NewLocalFileSystem wraps fsys. A nil fsys uses the operating system.
func NewLocalFileSystem(fsys afero.Fs) *LocalFileSystem {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &LocalFileSystem{fs: fsys}
}

// Stat is a wrapper around os.Stat
func (o *LocalFileSystem) Stat(target string) (os.FileInfo, error) {
	return o.fs.Stat(target)
}

// Size reports the size of a regular file, or 0 when nothing exists at target.
func (o *LocalFileSystem) Size(target string) (int64, error) {
	info, err := o.fs.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if !info.Mode().IsRegular() {
		return 0, nil
	}
	return info.Size(), nil
}

// Create is a wrapper around os.Create. Existing content is truncated.
func (o *LocalFileSystem) Create(name string) (io.WriteCloser, error) {
	return o.fs.Create(name)
}

// Remove is a wrapper around os.Remove
func (o *LocalFileSystem) Remove(name string) error {
	return o.fs.Remove(name)
}

// MkdirAll is a wrapper around os.MkdirAll
func (o *LocalFileSystem) MkdirAll(path string, mode os.FileMode) error {
	return o.fs.MkdirAll(path, mode)
}

// ReadDir lists the entries of a directory sorted by name
func (o *LocalFileSystem) ReadDir(name string) ([]os.FileInfo, error) {
	return afero.ReadDir(o.fs, name)
}

func (o *LocalFileSystem) FileExists(path string) bool {
	_, err := o.Stat(path)
	return err == nil
}
