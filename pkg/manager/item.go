package manager

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/library"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/kasuboski/showsync/pkg/storage"
)

// Kind is what an ad-hoc request points at
type Kind string

const (
	// MediaFile is a single video file
	MediaFile Kind = "media-file"
	// Directory is a show directory or any other tree of media files
	Directory Kind = "directory"
	// Playlist is any other file; each line names another remote path to sync
	Playlist Kind = "playlist"
)

// Target is an ad-hoc request resolved against the remote
type Target struct {
	Kind Kind
	Path string
	Size int64
}

// Resolve decides what name refers to on the remote. When name does not
// exist and a library is connected, a series with that directory name is
// looked up instead.
func (m *Manager) Resolve(ctx context.Context, s remote.Session, lib *library.Reconciler, name string) (Target, error) {
	log := logger.FromCtx(ctx)

	info, err := s.Stat(ctx, name)
	if errors.Is(err, remote.ErrNotExist) && lib.Available() {
		found, searchErr := lib.Search(ctx, name)
		if searchErr != nil {
			log.Warnw("library search failed", "name", name, "error", searchErr)
		}
		if found != "" {
			log.Debugw("resolved request through library", "name", name, "path", found)
			name = found
			info, err = s.Stat(ctx, name)
		}
	}
	if err != nil {
		return Target{}, err
	}

	switch {
	case info.IsDir():
		return Target{Kind: Directory, Path: name}, nil
	case episode.IsMedia(name):
		return Target{Kind: MediaFile, Path: name, Size: info.Size()}, nil
	default:
		return Target{Kind: Playlist, Path: name, Size: info.Size()}, nil
	}
}

// SyncItem fetches a single remote file, directory or playlist regardless of
// what has been recorded as downloaded. A directory that belongs to a
// configured show updates that show's record.
func (m *Manager) SyncItem(ctx context.Context, doc *state.Document, name string) error {
	conn, err := itemConnection(doc, name)
	if err != nil {
		return err
	}

	ctx, finish := m.startRun(ctx, storage.RunKindItem, name)
	err = m.syncItem(ctx, doc, conn, name)
	finish(err)
	return err
}

func (m *Manager) syncItem(ctx context.Context, doc *state.Document, conn *state.Connection, name string) error {
	log := logger.FromCtx(ctx, "host", conn.Auth.Hostname)
	ctx = logger.WithCtx(ctx, log)

	s, err := m.connector.Connect(ctx, *conn.Auth)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", conn.Auth.Hostname, err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.Warnw("failed to close connection", "error", closeErr)
		}
	}()

	lib := m.connectLibrary(ctx, conn.Auth)
	req := &itemRequest{
		m:        m,
		doc:      doc,
		session:  s,
		lib:      lib,
		location: SaveLocation(doc, name),
		visited:  map[string]bool{},
	}

	err = req.sync(ctx, name)
	if saveErr := m.persist(ctx, doc); saveErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to save state: %w", saveErr))
	}

	m.NotifyLibrary(ctx, lib, req.synced)
	return err
}

// itemConnection picks the connection of the show matching name, or the
// first connection when no show matches.
func itemConnection(doc *state.Document, name string) (*state.Connection, error) {
	if ref, ok := doc.MatchShow(name); ok && ref.Connection.Auth != nil {
		return ref.Connection, nil
	}

	for _, conn := range doc.Connections {
		if conn.Auth != nil {
			return conn, nil
		}
	}
	return nil, ErrNoConnections
}

// SaveLocation is where an ad-hoc request is saved: the group of the show
// with exactly that path, else the first group, else the working directory.
func SaveLocation(doc *state.Document, name string) string {
	if ref, ok := doc.FindShow(name); ok && ref.Group.Location != "" {
		return ref.Group.Location
	}
	if loc, ok := doc.FirstLocation(); ok && loc != "" {
		return loc
	}
	return DefaultLocation
}

type itemRequest struct {
	m        *Manager
	doc      *state.Document
	session  remote.Session
	lib      *library.Reconciler
	location string
	visited  map[string]bool
	synced   []*Plan
}

func (r *itemRequest) sync(ctx context.Context, name string) error {
	log := logger.FromCtx(ctx)

	target, err := r.m.Resolve(ctx, r.session, r.lib, name)
	if errors.Is(err, remote.ErrNotExist) {
		log.Warnw("requested path does not exist", "path", name)
		return err
	}
	if err != nil {
		return err
	}

	if r.visited[target.Path] {
		log.Debugw("already processed, skipping", "path", target.Path)
		return nil
	}
	r.visited[target.Path] = true

	switch target.Kind {
	case Directory:
		return r.syncDirectory(ctx, target)
	case MediaFile:
		return r.syncFile(ctx, target)
	case Playlist:
		return r.syncPlaylist(ctx, target)
	}
	return fmt.Errorf("unknown target kind %q", target.Kind)
}

// syncDirectory walks the requested tree. Its episodes are recorded only on
// a show that owns the tree. Anything else, including a parent of tracked
// shows, is fetched without touching recorded state.
func (r *itemRequest) syncDirectory(ctx context.Context, target Target) error {
	plan := &Plan{
		Remote:    target.Path,
		Local:     r.location,
		Episodes:  episode.NewSet(),
		Irregular: true,
	}

	ref, tracked := r.doc.OwningShow(target.Path)
	if tracked {
		plan.Episodes = ref.Show.Episodes()
		if ref.Group.Location != "" {
			plan.Local = ref.Group.Location
		}
	}

	_, err := r.m.SyncShow(ctx, r.session, plan)
	if tracked {
		ref.Show.SetEpisodes(plan.Episodes)
	}
	if err != nil {
		return fmt.Errorf("failed to sync %s: %w", target.Path, err)
	}

	if tracked {
		plan.Remote = ref.Show.Path()
		r.synced = append(r.synced, plan)
	}
	return nil
}

func (r *itemRequest) syncFile(ctx context.Context, target Target) error {
	plan := &Plan{
		Remote:    target.Path,
		Local:     r.location,
		Episodes:  episode.NewSet(),
		Irregular: true,
	}

	var id *episode.ID
	if parsed, ok := episode.Identify(target.Path); ok {
		id = &parsed
	}

	item, fetch, err := r.m.classify(plan, target.Path, target.Size, id)
	if err != nil {
		return err
	}

	if fetch {
		n, err := r.m.executor.Transfer(ctx, r.session, item, 1, 1)
		r.m.recordTransfer(ctx, target.Path, item, n, err)
		if err != nil {
			return err
		}
		if id != nil {
			plan.Episodes.Add(*id)
		}
	} else {
		logger.FromCtx(ctx).Infow("already downloaded", "file", target.Path)
	}

	if id != nil && plan.Episodes.Has(*id) {
		r.recordEpisode(target.Path, *id)
	}

	r.synced = append(r.synced, plan)
	return nil
}

// recordEpisode adds a single fetched episode to the show whose directory holds it
func (r *itemRequest) recordEpisode(p string, id episode.ID) {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return
	}

	ref, ok := r.doc.OwningShow(dir)
	if !ok {
		return
	}

	set := ref.Show.Episodes()
	set.Add(id)
	ref.Show.SetEpisodes(set)
}

func (r *itemRequest) syncPlaylist(ctx context.Context, target Target) error {
	log := logger.FromCtx(ctx, "playlist", target.Path)

	lines, err := r.session.ReadLines(ctx, target.Path)
	if err != nil {
		return fmt.Errorf("failed to read playlist: %w", err)
	}
	log.Debugw("processing playlist", "entries", len(lines))

	for _, line := range lines {
		err := r.sync(ctx, line)
		if errors.Is(err, remote.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}
