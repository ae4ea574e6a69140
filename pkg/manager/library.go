package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuboski/showsync/pkg/emby"
	"github.com/kasuboski/showsync/pkg/library"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/state"
)

// EmbyConnector opens emby libraries. A token stored in the state document is
// reused; otherwise, or once the server rejects it, the configured user logs
// in again and the new token is written back to cfg.
type EmbyConnector struct {
	opts []emby.Option
}

func NewEmbyConnector(opts ...emby.Option) *EmbyConnector {
	return &EmbyConnector{opts: opts}
}

func (c *EmbyConnector) Connect(ctx context.Context, cfg *state.Emby) (library.Library, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, library.ErrUnavailable
	}

	opts := append([]emby.Option{}, c.opts...)
	if cfg.Token != "" && cfg.UserID != "" {
		opts = append(opts, emby.WithCredentials(emby.Credentials{Token: cfg.Token, UserID: cfg.UserID}))
	}

	client, err := emby.New(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	lib := &embyLibrary{client: client, cfg: cfg}
	if cfg.Token == "" || cfg.UserID == "" {
		if err := lib.login(ctx); err != nil {
			return nil, err
		}
	}

	return lib, nil
}

type embyLibrary struct {
	client *emby.Client
	cfg    *state.Emby
}

func (l *embyLibrary) login(ctx context.Context) error {
	if l.cfg.Username == "" {
		return fmt.Errorf("%w: no username configured for %s", emby.ErrNotAuthenticated, l.cfg.URL)
	}

	creds, err := l.client.Authenticate(ctx, l.cfg.Username, l.cfg.Password)
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Debugw("logged in to media library", "url", l.cfg.URL, "user", l.cfg.Username)
	l.cfg.Token = creds.Token
	l.cfg.UserID = creds.UserID
	return nil
}

// withLogin runs fn and, when the stored token was rejected, logs in once and
// runs it again.
func withLogin[T any](ctx context.Context, l *embyLibrary, fn func() (T, error)) (T, error) {
	v, err := fn()
	if !errors.Is(err, emby.ErrUnauthorized) {
		return v, err
	}

	if loginErr := l.login(ctx); loginErr != nil {
		return v, errors.Join(err, loginErr)
	}
	return fn()
}

func (l *embyLibrary) Items(ctx context.Context) ([]emby.Item, error) {
	return withLogin(ctx, l, func() ([]emby.Item, error) {
		return l.client.Items(ctx)
	})
}

func (l *embyLibrary) Seasons(ctx context.Context, seriesID string) ([]emby.Season, error) {
	return withLogin(ctx, l, func() ([]emby.Season, error) {
		return l.client.Seasons(ctx, seriesID)
	})
}

func (l *embyLibrary) Episodes(ctx context.Context, seriesID, seasonID string) ([]emby.Episode, error) {
	return withLogin(ctx, l, func() ([]emby.Episode, error) {
		return l.client.Episodes(ctx, seriesID, seasonID)
	})
}

func (l *embyLibrary) MarkPlayed(ctx context.Context, itemID string) error {
	_, err := withLogin(ctx, l, func() (struct{}, error) {
		return struct{}{}, l.client.MarkPlayed(ctx, itemID)
	})
	return err
}
