package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var _ Session = (*FsSession)(nil)

// FsSession serves a mounted or in-memory directory tree as a remote.
type FsSession struct {
	fs   afero.Fs
	root string
}

// NewFsSession wraps fsys. Relative paths resolve against root.
func NewFsSession(fsys afero.Fs, root string) *FsSession {
	return &FsSession{fs: fsys, root: root}
}

// osSession serves the local filesystem, optionally jailed below base.
func osSession(base, root string) Session {
	fsys := afero.NewOsFs()
	if base != "" && base != "/" {
		fsys = afero.NewBasePathFs(fsys, base)
	}
	return NewFsSession(fsys, root)
}

func (s *FsSession) ReadDir(ctx context.Context, p string) ([]fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, s.resolve(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return infos, nil
}

func (s *FsSession) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(s.resolve(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return info, nil
}

func (s *FsSession) Exists(ctx context.Context, p string) (bool, error) {
	return exists(ctx, s, p)
}

func (s *FsSession) IsDir(ctx context.Context, p string) (bool, error) {
	return isDir(ctx, s, p)
}

func (s *FsSession) IsFile(ctx context.Context, p string) (bool, error) {
	return isFile(ctx, s, p)
}

func (s *FsSession) ReadLines(ctx context.Context, p string) ([]string, error) {
	f, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLines(f)
}

func (s *FsSession) Walk(ctx context.Context, root string, fn WalkFunc) error {
	return afero.Walk(s.fs, s.resolve(root), func(p string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return fn(p, nil, err)
		}
		if info.IsDir() {
			return nil
		}
		return fn(p, info, nil)
	})
}

func (s *FsSession) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(s.resolve(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return f, nil
}

func (s *FsSession) Normalize(p string) (string, error) {
	return s.resolve(p), nil
}

func (s *FsSession) Close() error {
	return nil
}

func (s *FsSession) resolve(p string) string {
	return resolve(s.root, p)
}

func resolve(root, p string) string {
	if p == "" {
		p = "."
	}
	if !path.IsAbs(p) && root != "" {
		p = path.Join(root, p)
	}
	return path.Clean(p)
}

func wrapNotExist(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	return err
}

func exists(ctx context.Context, s Session, p string) (bool, error) {
	_, err := s.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return false, err
}

func isDir(ctx context.Context, s Session, p string) (bool, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func isFile(ctx context.Context, s Session, p string) (bool, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// readLines returns the trimmed, non-empty lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}
