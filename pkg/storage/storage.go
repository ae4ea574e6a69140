package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kasuboski/showsync/pkg/machine"
)

var ErrNotFound = errors.New("not found in storage")

// Storage is the sync journal: a record of every run and every transfer it attempted
type Storage interface {
	RunMigrations(ctx context.Context) error
	RunStorage
	TransferStorage
	Close() error
}

type RunKind string

const (
	RunKindSyncAll RunKind = "sync-all"
	RunKindItem    RunKind = "item"
)

type RunState string

const (
	RunStateNew     RunState = ""
	RunStatePending RunState = "pending"
	RunStateRunning RunState = "running"
	RunStateError   RunState = "error"
	RunStateDone    RunState = "done"
)

type Run struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	Target    string    `json:"target"`
	State     RunState  `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r Run) Machine() *machine.StateMachine[RunState] {
	return machine.New(r.State,
		machine.From(RunStateNew).To(RunStatePending),
		machine.From(RunStatePending).To(RunStateRunning, RunStateError),
		machine.From(RunStateRunning).To(RunStateError, RunStateDone),
	)
}

type RunStorage interface {
	CreateRun(ctx context.Context, run Run) (string, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	UpdateRunState(ctx context.Context, id string, state RunState, errorMsg *string) error
}

type TransferState string

const (
	TransferStateDone  TransferState = "done"
	TransferStateError TransferState = "error"
)

// Transfer is one attempted download. Season and Episode are nil for files
// without an episode token.
type Transfer struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"runId"`
	Show      string        `json:"show"`
	Remote    string        `json:"remote"`
	Local     string        `json:"local"`
	Season    *int          `json:"season,omitempty"`
	Episode   *int          `json:"episode,omitempty"`
	Bytes     int64         `json:"bytes"`
	State     TransferState `json:"state"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

type TransferStorage interface {
	RecordTransfer(ctx context.Context, transfer Transfer) (int64, error)
	ListTransfers(ctx context.Context, limit int) ([]*Transfer, error)
	ListTransfersByRun(ctx context.Context, runID string) ([]*Transfer, error)
}
