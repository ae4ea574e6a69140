package manager

import (
	"context"
	"time"

	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/storage"
	"github.com/kasuboski/showsync/pkg/transfer"
)

type runKey struct{}

// startRun opens a journal run and returns a context carrying its ID. The
// returned function closes the run with the outcome of err. Journal failures
// are logged and never stop a sync.
func (m *Manager) startRun(ctx context.Context, kind storage.RunKind, target string) (context.Context, func(err error)) {
	if m.journal == nil {
		return ctx, func(error) {}
	}
	log := logger.FromCtx(ctx)

	id, err := m.journal.CreateRun(ctx, storage.Run{Kind: kind, Target: target})
	if err != nil {
		log.Warnw("failed to create journal run", "error", err)
		return ctx, func(error) {}
	}

	if err := m.journal.UpdateRunState(ctx, id, storage.RunStateRunning, nil); err != nil {
		log.Warnw("failed to start journal run", "run", id, "error", err)
	}

	ctx = context.WithValue(ctx, runKey{}, id)
	ctx = logger.WithCtx(ctx, log.With("run", id))

	return ctx, func(runErr error) {
		state := storage.RunStateDone
		var msg *string
		if runErr != nil {
			state = storage.RunStateError
			s := runErr.Error()
			msg = &s
		}

		// the run context may already be cancelled
		if err := m.journal.UpdateRunState(context.WithoutCancel(ctx), id, state, msg); err != nil {
			log.Warnw("failed to finish journal run", "run", id, "error", err)
		}
	}
}

func runFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runKey{}).(string)
	return id, ok
}

func (m *Manager) recordTransfer(ctx context.Context, show string, item transfer.Item, n int64, transferErr error) {
	if m.journal == nil {
		return
	}
	id, ok := runFromCtx(ctx)
	if !ok {
		return
	}

	t := storage.Transfer{
		RunID:     id,
		Show:      show,
		Remote:    item.Remote,
		Local:     item.Local,
		Bytes:     n,
		State:     storage.TransferStateDone,
		CreatedAt: time.Now(),
	}
	if item.Episode != nil {
		season, ep := item.Episode.Season, item.Episode.Episode
		t.Season = &season
		t.Episode = &ep
	}
	if transferErr != nil {
		t.State = storage.TransferStateError
		t.Error = transferErr.Error()
	}

	if _, err := m.journal.RecordTransfer(context.WithoutCancel(ctx), t); err != nil {
		logger.FromCtx(ctx).Warnw("failed to record transfer", "file", item.Remote, "error", err)
	}
}
