package remote

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/kasuboski/showsync/pkg/state"
)

var ErrNotExist = errors.New("remote path does not exist")

// WalkFunc is called for every regular file below a walk root. A non-nil err
// reports a path that could not be read and info is nil. Returning an error
// stops the walk.
type WalkFunc func(p string, info fs.FileInfo, err error) error

// Session is an open connection to a remote file tree. Paths use forward
// slashes regardless of platform.
type Session interface {
	ReadDir(ctx context.Context, p string) ([]fs.FileInfo, error)
	Stat(ctx context.Context, p string) (fs.FileInfo, error)
	Exists(ctx context.Context, p string) (bool, error)
	IsDir(ctx context.Context, p string) (bool, error)
	IsFile(ctx context.Context, p string) (bool, error)
	ReadLines(ctx context.Context, p string) ([]string, error)
	Walk(ctx context.Context, root string, fn WalkFunc) error
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Normalize(p string) (string, error)
	Close() error
}

// Connector opens sessions for a connection's credentials.
type Connector interface {
	Connect(ctx context.Context, auth state.Auth) (Session, error)
}
