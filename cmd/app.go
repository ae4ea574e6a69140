package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/kasuboski/showsync/config"
	"github.com/kasuboski/showsync/pkg/emby"
	showhttp "github.com/kasuboski/showsync/pkg/http"
	showio "github.com/kasuboski/showsync/pkg/io"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/manager"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/kasuboski/showsync/pkg/storage"
	"github.com/kasuboski/showsync/pkg/storage/sqlite"
	"github.com/kasuboski/showsync/pkg/transfer"
	"github.com/spf13/viper"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return cfg, fmt.Errorf("failed to read configurations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if cfg.Log.JSON {
		os.Setenv("SHOWSYNC_JSON_LOG", "true")
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadState(path string) (*state.Document, error) {
	doc, err := state.Load(path)
	if errors.Is(err, state.ErrNotExist) || errors.Is(err, state.ErrMalformed) {
		return nil, fmt.Errorf("%w, run showsync edit to set it up", err)
	}
	return doc, err
}

// openJournal returns nil when the journal is disabled
func openJournal(ctx context.Context, cfg config.Journal) (storage.Storage, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	store, err := sqlite.New(ctx, cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := store.RunMigrations(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return store, nil
}

func newManager(cfg config.Config, journal storage.Storage) *manager.Manager {
	connector := remote.NewConnector(
		remote.WithTimeout(cfg.SSH.Timeout),
		remote.WithKnownHosts(cfg.SSH.KnownHosts),
		remote.WithDefaultPort(cfg.SSH.DefaultPort),
	)

	fio := showio.NewLocalFileSystem(nil)

	execOpts := []transfer.Option{transfer.WithBufferSize(cfg.Transfer.BufferSize)}
	if cfg.Transfer.Progress && transfer.IsTerminal(os.Stdout) {
		execOpts = append(execOpts, transfer.WithProgress(transfer.BarProgress(os.Stdout)))
	}

	httpClient := showhttp.NewRetryClient(
		showhttp.WithMaxRetries(cfg.Emby.MaxRetries),
		showhttp.WithBaseBackoff(cfg.Emby.Backoff),
		showhttp.WithHTTPClient(&http.Client{Timeout: cfg.Emby.Timeout}),
	)
	libraries := manager.NewEmbyConnector(
		emby.WithHTTPClient(httpClient),
		emby.WithDevice(cfg.Emby.Client, cfg.Emby.Device),
	)

	opts := []manager.Option{
		manager.WithExecutor(transfer.NewExecutor(fio, execOpts...)),
		manager.WithLibraryConnector(libraries),
		manager.WithSaver(func(doc *state.Document) error {
			return state.Save(cfg.State.File, doc)
		}),
	}
	if journal != nil {
		opts = append(opts, manager.WithJournal(journal))
	}

	return manager.New(connector, fio, opts...)
}

// withState runs fn holding the state file lock with the loaded document and
// a fully wired manager.
func withState(ctx context.Context, fn func(ctx context.Context, doc *state.Document, m *manager.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	unlock, err := state.Lock(ctx, cfg.State.File, cfg.State.LockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warnw("failed to release state lock", "file", cfg.State.File, "error", err)
		}
	}()

	doc, err := loadState(cfg.State.File)
	if err != nil {
		return err
	}

	journal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	return fn(logger.WithCtx(ctx, log), doc, newManager(cfg, journal))
}

func syncAll(ctx context.Context) error {
	return withState(ctx, func(ctx context.Context, doc *state.Document, m *manager.Manager) error {
		return m.SyncAll(ctx, doc)
	})
}

func syncItem(ctx context.Context, name string) error {
	return withState(ctx, func(ctx context.Context, doc *state.Document, m *manager.Manager) error {
		return m.SyncItem(ctx, doc, name)
	})
}
