package manager

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/transfer"
)

// Plan is one show being synced. Episodes is the show's downloaded set and
// grows as files are found present or transferred.
type Plan struct {
	Remote   string
	Local    string
	Episodes episode.Set
	// Irregular re-fetches files even when their episode is recorded
	Irregular bool
}

// localPath is where a remote file is saved. Files land directly in the
// save directory regardless of their depth below the show.
func (p *Plan) localPath(remotePath string) string {
	return filepath.Join(p.Local, path.Base(remotePath))
}

// Diff walks the show's remote directory and returns the files that need to
// be transferred. Episodes whose file is already fully present locally are
// added to the plan's set; queued episodes are not marked until their
// transfer succeeds.
func (m *Manager) Diff(ctx context.Context, s remote.Session, plan *Plan) ([]transfer.Item, error) {
	log := logger.FromCtx(ctx, "show", plan.Remote)

	if plan.Episodes == nil {
		plan.Episodes = episode.NewSet()
	}

	info, err := s.Stat(ctx, plan.Remote)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("show %s is not a directory", plan.Remote)
	}

	var queue []transfer.Item
	err = s.Walk(ctx, plan.Remote, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			log.Warnw("failed to read remote path, skipping", "path", p, "error", err)
			return nil
		}

		if !episode.IsMedia(p) {
			return nil
		}

		id, ok := episode.Identify(p)
		if !ok {
			log.Warnw("could not identify episode, skipping", "file", p)
			return nil
		}

		item, fetch, err := m.classify(plan, p, info.Size(), &id)
		if err != nil {
			return err
		}
		if !fetch {
			return nil
		}

		log.Debugw("queueing episode", "file", p, "episode", id.String())
		queue = append(queue, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", plan.Remote, err)
	}

	return queue, nil
}

// classify decides whether one remote file must be fetched. id is nil for
// files requested directly that carry no episode token.
func (m *Manager) classify(plan *Plan, remotePath string, size int64, id *episode.ID) (transfer.Item, bool, error) {
	item := transfer.Item{
		Remote:  remotePath,
		Local:   plan.localPath(remotePath),
		Size:    size,
		Episode: id,
	}

	localSize, err := m.fio.Size(item.Local)
	if err != nil {
		return item, false, err
	}

	if m.fio.FileExists(item.Local) && localSize == item.Size {
		if id != nil {
			plan.Episodes.Add(*id)
		}
		return item, false, nil
	}

	if id == nil || plan.Irregular || !plan.Episodes.Has(*id) {
		return item, true, nil
	}

	return item, false, nil
}
