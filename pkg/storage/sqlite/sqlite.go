package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/storage"
	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the journal database at filePath, creating its directory if needed
func New(ctx context.Context, filePath string) (*SQLite, error) {
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", filePath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal %s: %w", filePath, err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateRun stores a new run in the pending state and returns its ID
func (s *SQLite) CreateRun(ctx context.Context, run storage.Run) (string, error) {
	m := run.Machine()
	if err := m.Transition(storage.RunStatePending); err != nil {
		return "", err
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_run (id, kind, target, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Target, string(m.Current()), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	return run.ID, nil
}

// GetRun returns the run with the given ID or storage.ErrNotFound
func (s *SQLite) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, target, state, error, created_at, updated_at FROM sync_run WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less lists every run.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]*storage.Run, error) {
	log := logger.FromCtx(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, target, state, error, created_at, updated_at FROM sync_run ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sqlLimit(limit))
	if err != nil {
		log.Errorw("failed to list runs", "error", err)
		return nil, err
	}
	defer rows.Close()

	runs := make([]*storage.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// UpdateRunState moves a run to state if the transition is allowed
func (s *SQLite) UpdateRunState(ctx context.Context, id string, state storage.RunState, errorMsg *string) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if err := run.Machine().ToState(state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`UPDATE sync_run SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(state), nullString(errorMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}

	return nil
}

// RecordTransfer appends a transfer attempt to the journal
func (s *SQLite) RecordTransfer(ctx context.Context, t storage.Transfer) (int64, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var errMsg *string
	if t.Error != "" {
		errMsg = &t.Error
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer (run_id, show, remote_path, local_path, season, episode, bytes, state, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Show, t.Remote, t.Local, nullInt(t.Season), nullInt(t.Episode), t.Bytes, string(t.State), nullString(errMsg), createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record transfer: %w", err)
	}

	return res.LastInsertId()
}

// ListTransfers returns the most recent transfers first. A limit of zero or less lists every transfer.
func (s *SQLite) ListTransfers(ctx context.Context, limit int) ([]*storage.Transfer, error) {
	return s.queryTransfers(ctx,
		`SELECT id, run_id, show, remote_path, local_path, season, episode, bytes, state, error, created_at
		FROM transfer ORDER BY created_at DESC, id DESC LIMIT ?`, sqlLimit(limit))
}

// ListTransfersByRun returns the transfers of one run in the order they were attempted
func (s *SQLite) ListTransfersByRun(ctx context.Context, runID string) ([]*storage.Transfer, error) {
	return s.queryTransfers(ctx,
		`SELECT id, run_id, show, remote_path, local_path, season, episode, bytes, state, error, created_at
		FROM transfer WHERE run_id = ? ORDER BY id ASC`, runID)
}

func (s *SQLite) queryTransfers(ctx context.Context, query string, args ...any) ([]*storage.Transfer, error) {
	log := logger.FromCtx(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Errorw("failed to list transfers", "error", err)
		return nil, err
	}
	defer rows.Close()

	transfers := make([]*storage.Transfer, 0)
	for rows.Next() {
		var (
			t       storage.Transfer
			season  sql.NullInt64
			ep      sql.NullInt64
			state   string
			errMsg  sql.NullString
			created time.Time
		)
		err := rows.Scan(&t.ID, &t.RunID, &t.Show, &t.Remote, &t.Local, &season, &ep, &t.Bytes, &state, &errMsg, &created)
		if err != nil {
			return nil, err
		}

		t.Season = intPtr(season)
		t.Episode = intPtr(ep)
		t.State = storage.TransferState(state)
		t.Error = errMsg.String
		t.CreatedAt = created.UTC()
		transfers = append(transfers, &t)
	}

	return transfers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*storage.Run, error) {
	var (
		run    storage.Run
		kind   string
		state  string
		errMsg sql.NullString
	)

	err := row.Scan(&run.ID, &kind, &run.Target, &state, &errMsg, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	run.Kind = storage.RunKind(kind)
	run.State = storage.RunState(state)
	run.Error = errMsg.String
	run.CreatedAt = run.CreatedAt.UTC()
	run.UpdatedAt = run.UpdatedAt.UTC()
	return &run, nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}
