package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuboski/showsync/pkg/library"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/kasuboski/showsync/pkg/storage"
)

// DefaultLocation is the save directory for groups without a location
const DefaultLocation = "./"

// SyncAll syncs every connection in doc in order. A failing connection does
// not stop the ones after it; all failures are returned together.
func (m *Manager) SyncAll(ctx context.Context, doc *state.Document) error {
	if len(doc.Connections) == 0 {
		return ErrNoConnections
	}

	ctx, finish := m.startRun(ctx, storage.RunKindSyncAll, "")
	log := logger.FromCtx(ctx)

	var errs []error
	for i, conn := range doc.Connections {
		if err := m.SyncConnection(ctx, doc, conn); err != nil {
			log.Errorw("connection sync failed", "connection", i, "error", err)
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	finish(err)
	return err
}

// SyncConnection opens one connection and syncs all of its groups. The state
// document is saved after every show.
func (m *Manager) SyncConnection(ctx context.Context, doc *state.Document, conn *state.Connection) error {
	if conn.Auth == nil {
		return fmt.Errorf("connection has no auth")
	}

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
		log.Infow("disconnected")
	}()
	log.Infow("connected")

	lib := m.connectLibrary(ctx, conn.Auth)

	var synced []*Plan
	for _, group := range conn.Groups {
		location := group.Location
		if location == "" {
			location = DefaultLocation
		}

		for _, show := range group.Shows {
			if show.Path() == "" {
				log.Warnw("show has no remote path, skipping", "location", location)
				continue
			}

			plan := &Plan{
				Remote:   show.Path(),
				Local:    location,
				Episodes: show.Episodes(),
			}

			_, syncErr := m.SyncShow(ctx, s, plan)
			show.SetEpisodes(plan.Episodes)

			if saveErr := m.persist(ctx, doc); saveErr != nil {
				return errors.Join(syncErr, fmt.Errorf("failed to save state: %w", saveErr))
			}

			if errors.Is(syncErr, remote.ErrNotExist) {
				log.Warnw("show directory does not exist, skipping", "show", plan.Remote)
				continue
			}
			if syncErr != nil {
				return fmt.Errorf("failed to sync %s: %w", plan.Remote, syncErr)
			}

			synced = append(synced, plan)
		}
	}

	m.NotifyLibrary(ctx, lib, synced)

	return nil
}

// SyncShow transfers every file Diff queues for plan. An episode is added to
// the plan's set only once its file has been copied in full, so a failure
// leaves it and everything queued after it unrecorded. It returns the number
// of files transferred.
func (m *Manager) SyncShow(ctx context.Context, s remote.Session, plan *Plan) (int, error) {
	log := logger.FromCtx(ctx, "show", plan.Remote)

	queue, err := m.Diff(ctx, s, plan)
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 {
		log.Debugw("show is up to date")
		return 0, nil
	}
	log.Infow("transferring files", "count", len(queue))

	for i, item := range queue {
		n, err := m.executor.Transfer(ctx, s, item, i+1, len(queue))
		m.recordTransfer(ctx, plan.Remote, item, n, err)
		if err != nil {
			return i, err
		}

		if item.Episode != nil {
			plan.Episodes.Add(*item.Episode)
		}
	}

	return len(queue), nil
}

// NotifyLibrary mirrors each plan's downloaded episodes into the library.
// Failures are logged and never returned.
func (m *Manager) NotifyLibrary(ctx context.Context, lib *library.Reconciler, plans []*Plan) []library.Result {
	log := logger.FromCtx(ctx)

	results := make([]library.Result, 0, len(plans))
	for _, plan := range plans {
		res := lib.Reconcile(ctx, plan.Remote, plan.Episodes)
		results = append(results, res)

		switch res.Outcome {
		case library.Updated:
			log.Infow("updated watched status", "show", plan.Remote, "item", res.Item.Name, "marked", res.Marked)
		case library.UpdateFailed:
			log.Warnw("failed to update watched status", "show", plan.Remote, "item", res.Item.Name, "error", res.Err)
		case library.Unavailable:
			if res.Err != nil {
				log.Warnw("media library unavailable", "show", plan.Remote, "error", res.Err)
			}
		default:
			log.Debugw("library reconciliation", "show", plan.Remote, "outcome", res.Outcome)
		}
	}

	return results
}
