package manager

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/kasuboski/showsync/pkg/cache"
	"github.com/kasuboski/showsync/pkg/library"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/state"
)

// ListingCache memoizes remote directory listings for one invocation
type ListingCache struct {
	session remote.Session
	entries *cache.Cache[string, []fs.FileInfo]
}

func NewListingCache(s remote.Session) *ListingCache {
	return &ListingCache{
		session: s,
		entries: cache.New[string, []fs.FileInfo](),
	}
}

// ReadDir lists dir, reading the remote only on the first call
func (c *ListingCache) ReadDir(ctx context.Context, dir string) ([]fs.FileInfo, error) {
	return c.entries.GetOrLoad(dir, func() ([]fs.FileInfo, error) {
		return c.session.ReadDir(ctx, dir)
	})
}

// Complete returns the entries of prefix's directory whose path starts with
// prefix. Directories end with a slash.
func (c *ListingCache) Complete(ctx context.Context, prefix string) ([]string, error) {
	dir := "."
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i+1]
	}

	infos, err := c.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, info := range infos {
		name := info.Name()
		if dir != "." {
			name = dir + name
		}
		if info.IsDir() {
			name += "/"
		}
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}

	slices.Sort(matches)
	return matches, nil
}

// List completes prefix against the remote of the first connection. When a
// media library is configured its series names are offered as well.
func (m *Manager) List(ctx context.Context, doc *state.Document, prefix string) ([]string, error) {
	log := logger.FromCtx(ctx)

	conn, err := itemConnection(doc, prefix)
	if err != nil {
		return nil, err
	}

	s, err := m.connector.Connect(ctx, *conn.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", conn.Auth.Hostname, err)
	}
	defer s.Close()

	listing := NewListingCache(s)
	matches, err := listing.Complete(ctx, prefix)
	if err != nil {
		log.Debugw("failed to list remote directory", "prefix", prefix, "error", err)
		matches = nil
	}

	lib := m.connectLibrary(ctx, conn.Auth)
	if lib.Available() {
		names, err := libraryMatches(ctx, lib, prefix)
		if err != nil {
			log.Warnw("failed to list library series", "error", err)
		}
		matches = append(matches, names...)
	}

	slices.Sort(matches)
	return slices.Compact(matches), nil
}

func libraryMatches(ctx context.Context, lib *library.Reconciler, prefix string) ([]string, error) {
	names, err := lib.Names(ctx)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	slices.Sort(matches)
	return matches, nil
}
