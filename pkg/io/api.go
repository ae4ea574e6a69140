package io

import (
	"io"
	"os"
)

// FileIO is an interface for local file io operations
type FileIO interface {
	Stat(target string) (os.FileInfo, error)
	Size(target string) (int64, error)
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
	MkdirAll(name string, perm os.FileMode) error
	ReadDir(name string) ([]os.FileInfo, error)
	FileExists(name string) bool
}
