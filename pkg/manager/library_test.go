package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kasuboski/showsync/pkg/emby"
	"github.com/kasuboski/showsync/pkg/library"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embyServer accepts one token and counts logins
type embyServer struct {
	logins int
}

func (e *embyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/Users/AuthenticateByName" {
		var req struct{ Username, Pw string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "viewer" || req.Pw != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		e.logins++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"AccessToken": "fresh", "User": map[string]string{"Id": "u1"}})
		return
	}

	if r.Header.Get("X-Emby-Token") != "fresh" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.URL.Path == "/Users/u1/Items" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Items":            []emby.Item{{ID: "1", Name: "Show", Path: "/media/Show", Type: emby.TypeSeries}},
			"TotalRecordCount": 1,
		})
		return
	}
	http.NotFound(w, r)
}

func newEmbyConnector(t *testing.T) (*EmbyConnector, *embyServer, string) {
	t.Helper()

	fake := &embyServer{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return NewEmbyConnector(emby.WithHTTPClient(server.Client())), fake, server.URL
}

func TestEmbyConnector_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("logs in and stores the token", func(t *testing.T) {
		c, fake, url := newEmbyConnector(t)
		cfg := &state.Emby{URL: url, Username: "viewer", Password: "pw"}

		lib, err := c.Connect(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, fake.logins)
		assert.Equal(t, "fresh", cfg.Token)
		assert.Equal(t, "u1", cfg.UserID)

		items, err := lib.Items(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("reuses a stored token", func(t *testing.T) {
		c, fake, url := newEmbyConnector(t)
		cfg := &state.Emby{URL: url, Token: "fresh", UserID: "u1"}

		lib, err := c.Connect(ctx, cfg)
		require.NoError(t, err)
		_, err = lib.Items(ctx)
		require.NoError(t, err)
		assert.Zero(t, fake.logins)
	})

	t.Run("logs in again when the stored token is rejected", func(t *testing.T) {
		c, fake, url := newEmbyConnector(t)
		cfg := &state.Emby{URL: url, Username: "viewer", Password: "pw", Token: "stale", UserID: "u1"}

		lib, err := c.Connect(ctx, cfg)
		require.NoError(t, err)
		assert.Zero(t, fake.logins)

		items, err := lib.Items(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, 1, fake.logins)
		assert.Equal(t, "fresh", cfg.Token)
	})

	t.Run("bad credentials", func(t *testing.T) {
		c, _, url := newEmbyConnector(t)

		_, err := c.Connect(ctx, &state.Emby{URL: url, Username: "viewer", Password: "wrong"})
		assert.ErrorIs(t, err, emby.ErrUnauthorized)
	})

	t.Run("no library configured", func(t *testing.T) {
		c, _, _ := newEmbyConnector(t)

		_, err := c.Connect(ctx, nil)
		assert.ErrorIs(t, err, library.ErrUnavailable)

		_, err = c.Connect(ctx, &state.Emby{URL: "http://emby:8096"})
		assert.ErrorIs(t, err, emby.ErrNotAuthenticated)
	})
}
