package manager

import (
	"context"
	"errors"

	showio "github.com/kasuboski/showsync/pkg/io"
	"github.com/kasuboski/showsync/pkg/library"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/kasuboski/showsync/pkg/storage"
	"github.com/kasuboski/showsync/pkg/transfer"
)

var ErrNoConnections = errors.New("no connections configured, run showsync edit to add one")

// Saver persists the state document. It is called after every show so
// progress survives a later failure.
type Saver func(doc *state.Document) error

// LibraryConnector opens the media library configured for a connection
type LibraryConnector interface {
	Connect(ctx context.Context, cfg *state.Emby) (library.Library, error)
}

// Manager runs syncs of the shows in a state document
type Manager struct {
	connector remote.Connector
	libraries LibraryConnector
	fio       showio.FileIO
	executor  *transfer.Executor
	journal   storage.Storage
	save      Saver
}

type Option func(*Manager)

// WithLibraryConnector enables watched status reconciliation
func WithLibraryConnector(lc LibraryConnector) Option {
	return func(m *Manager) {
		m.libraries = lc
	}
}

// WithExecutor replaces the default transfer executor
func WithExecutor(e *transfer.Executor) Option {
	return func(m *Manager) {
		m.executor = e
	}
}

// WithJournal records every run and transfer in s
func WithJournal(s storage.Storage) Option {
	return func(m *Manager) {
		m.journal = s
	}
}

// WithSaver sets how the state document is persisted
func WithSaver(s Saver) Option {
	return func(m *Manager) {
		m.save = s
	}
}

func New(connector remote.Connector, fio showio.FileIO, opts ...Option) *Manager {
	m := &Manager{
		connector: connector,
		fio:       fio,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.executor == nil {
		m.executor = transfer.NewExecutor(fio)
	}

	return m
}

func (m *Manager) persist(ctx context.Context, doc *state.Document) error {
	if m.save == nil {
		return nil
	}

	if err := m.save(doc); err != nil {
		logger.FromCtx(ctx).Errorw("failed to save state", "error", err)
		return err
	}
	return nil
}

// connectLibrary returns a reconciler for the connection's library. Any
// failure leaves reconciliation disabled for this connection.
func (m *Manager) connectLibrary(ctx context.Context, auth *state.Auth) *library.Reconciler {
	log := logger.FromCtx(ctx)

	if m.libraries == nil || auth == nil || auth.Emby == nil || auth.Emby.URL == "" {
		return library.New(nil)
	}

	lib, err := m.libraries.Connect(ctx, auth.Emby)
	if err != nil {
		log.Warnw("could not connect to media library, watched status will not be updated", "url", auth.Emby.URL, "error", err)
		return library.New(nil)
	}

	log.Debugw("connected to media library", "url", auth.Emby.URL)
	return library.New(lib)
}
