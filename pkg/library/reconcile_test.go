package library

import (
	"context"
	"errors"
	"testing"

	"github.com/kasuboski/showsync/pkg/emby"
	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/library/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testItems = []emby.Item{
	{ID: "movie", Name: "Steins Gate Movie", Path: "/mnt/media/Movies/Steins_Gate_Movie.mkv", Type: emby.TypeMovie},
	{ID: "sg0", Name: "Steins;Gate 0", Path: "/mnt/media/TV/Steins_Gate_0", Type: emby.TypeSeries},
	{ID: "sg", Name: "Steins;Gate", Path: "/mnt/media/TV/Steins_Gate", Type: emby.TypeSeries},
	{ID: "mob", Name: "Mob Psycho 100", Path: "/mnt/media/TV/Mob Psycho 100/", Type: emby.TypeSeries},
}

func downloaded(season int, eps ...int) episode.Set {
	s := episode.NewSet()
	for _, ep := range eps {
		s.Add(episode.ID{Season: season, Episode: ep})
	}
	return s
}

func TestReconciler_match(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name   string
		show   string
		wantID string
		found  bool
	}{
		{"series is a parent of the show path", "/mnt/media/TV/Steins_Gate/Season 1", "sg", true},
		{"exact path prefers the series with a slash boundary", "/mnt/media/TV/Steins_Gate_0", "sg0", true},
		{"trailing slash on the item path", "/mnt/media/TV/Mob Psycho 100", "mob", true},
		{"show path contained in item path ignoring case", "tv/steins_gate_0", "sg0", true},
		{"base name matches a different mount", "/home/az/downloads/MOB PSYCHO 100", "mob", true},
		{"unknown show", "/mnt/media/TV/Unknown Show", "", false},
		{"empty path", "", "", false},
		{"root path", "/", "", false},
		{"current directory", ".", "", false},
		{"current directory with slash", "./", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := r.match(testItems, tt.show)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, item.ID)
		})
	}
}

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("no library", func(t *testing.T) {
		res := New(nil).Reconcile(ctx, "/mnt/media/TV/Steins_Gate", downloaded(1, 1))
		assert.Equal(t, Unavailable, res.Outcome)
		assert.NoError(t, res.Err)
	})

	t.Run("library unreachable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lib := mocks.NewMockLibrary(ctrl)
		lib.EXPECT().Items(ctx).Return(nil, errors.New("connection refused"))

		res := New(lib).Reconcile(ctx, "/mnt/media/TV/Steins_Gate", downloaded(1, 1))
		assert.Equal(t, Unavailable, res.Outcome)
		assert.Error(t, res.Err)
	})

	t.Run("item not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lib := mocks.NewMockLibrary(ctrl)
		lib.EXPECT().Items(ctx).Return(testItems, nil)

		res := New(lib).Reconcile(ctx, "/srv/Other", downloaded(1, 1))
		assert.Equal(t, NotFound, res.Outcome)
	})

	t.Run("marks downloaded unwatched episodes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lib := mocks.NewMockLibrary(ctrl)
		lib.EXPECT().Items(ctx).Return(testItems, nil).Times(1)
		lib.EXPECT().Seasons(ctx, "sg0").Return([]emby.Season{{ID: "s1", IndexNumber: 1}, {ID: "s2", IndexNumber: 2}}, nil)
		lib.EXPECT().Episodes(ctx, "sg0", "s1").Return([]emby.Episode{
			{ID: "e1", IndexNumber: 1, UserData: emby.UserData{Played: true}},
			{ID: "e2", IndexNumber: 2},
			{ID: "e3", IndexNumber: 3},
			{ID: "e4", IndexNumber: 4},
		}, nil)
		lib.EXPECT().Episodes(ctx, "sg0", "s2").Return([]emby.Episode{{ID: "e21", IndexNumber: 1}}, nil)
		lib.EXPECT().MarkPlayed(ctx, "e2").Return(nil)
		lib.EXPECT().MarkPlayed(ctx, "e3").Return(nil)

		r := New(lib)
		res := r.Reconcile(ctx, "/mnt/media/TV/Steins_Gate_0", downloaded(1, 1, 2, 3))
		assert.Equal(t, Updated, res.Outcome)
		assert.Equal(t, 2, res.Marked)
		assert.Equal(t, "sg0", res.Item.ID)

		// items are listed once per reconciler
		names, err := r.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Steins_Gate_0/", "Steins_Gate/", "Mob Psycho 100/"}, names)
	})

	t.Run("already up to date", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lib := mocks.NewMockLibrary(ctrl)
		lib.EXPECT().Items(ctx).Return(testItems, nil)
		lib.EXPECT().Seasons(ctx, "sg").Return([]emby.Season{{ID: "s1", IndexNumber: 1}}, nil)
		lib.EXPECT().Episodes(ctx, "sg", "s1").Return([]emby.Episode{
			{ID: "e1", IndexNumber: 1, UserData: emby.UserData{Played: true}},
		}, nil)

		res := New(lib).Reconcile(ctx, "/mnt/media/TV/Steins_Gate", downloaded(1, 1))
		assert.Equal(t, UpToDate, res.Outcome)
		assert.Zero(t, res.Marked)
	})

	t.Run("falls back to marking the whole item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lib := mocks.NewMockLibrary(ctrl)
		lib.EXPECT().Items(ctx).Return(testItems, nil)
		lib.EXPECT().Seasons(ctx, "movie").Return(nil, errors.New("not a series"))
		lib.EXPECT().MarkPlayed(ctx, "movie").Return(nil)

		res := New(lib).Reconcile(ctx, "/mnt/media/Movies/Steins_Gate_Movie.mkv", episode.NewSet())
		assert.Equal(t, Updated, res.Outcome)
		assert.Equal(t, "movie", res.Item.ID)
	})

	t.Run("update failed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lib := mocks.NewMockLibrary(ctrl)
		lib.EXPECT().Items(ctx).Return(testItems, nil)
		lib.EXPECT().Seasons(ctx, "sg").Return([]emby.Season{{ID: "s1", IndexNumber: 1}}, nil)
		lib.EXPECT().Episodes(ctx, "sg", "s1").Return([]emby.Episode{{ID: "e1", IndexNumber: 1}}, nil)
		lib.EXPECT().MarkPlayed(ctx, "e1").Return(errors.New("boom"))
		lib.EXPECT().MarkPlayed(ctx, "sg").Return(errors.New("still broken"))

		res := New(lib).Reconcile(ctx, "/mnt/media/TV/Steins_Gate", downloaded(1, 1))
		assert.Equal(t, UpdateFailed, res.Outcome)
		assert.Error(t, res.Err)
	})
}

func TestReconciler_Search(t *testing.T) {
	ctx := context.Background()

	_, err := New(nil).Search(ctx, "Steins_Gate")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(nil).Names(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	ctrl := gomock.NewController(t)
	lib := mocks.NewMockLibrary(ctrl)
	lib.EXPECT().Items(ctx).Return(testItems, nil).Times(1)

	r := New(lib)
	got, err := r.Search(ctx, "Steins_Gate/")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/media/TV/Steins_Gate", got)

	got, err = r.Search(ctx, "Mob Psycho 100")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/media/TV/Mob Psycho 100/", got)

	got, err = r.Search(ctx, "Steins_Gate_Movie.mkv")
	require.NoError(t, err)
	assert.Empty(t, got)
}
