package manager

import (
	"context"
	"testing"

	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/transfer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remotePaths(items []transfer.Item) []string {
	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item.Remote)
	}
	return paths
}

func TestManager_Diff(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to do when every recorded file is present", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1, 2, 3, 4, 5}, 1, 2, 3, 4, 5)

		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: episode.Decode(ranges(1, 1, 5))}
		queue, err := f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Empty(t, queue)
		assert.Equal(t, ranges(1, 1, 5), episode.Encode(plan.Episodes))
	})

	t.Run("queues new episodes without marking them", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1, 2, 3, 4, 5, 6, 7}, 1, 2, 3, 4, 5)

		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: episode.Decode(ranges(1, 1, 5))}
		queue, err := f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Equal(t, []string{"/srv/Show/Show.1x06.mkv", "/srv/Show/Show.1x07.mkv"}, remotePaths(queue))
		assert.Equal(t, "/data/Show.1x06.mkv", queue[0].Local)
		assert.Equal(t, int64(len(episodeContent(6))), queue[0].Size)
		require.NotNil(t, queue[0].Episode)
		assert.Equal(t, episode.ID{Season: 1, Episode: 6}, *queue[0].Episode)

		assert.False(t, plan.Episodes.Has(episode.ID{Season: 1, Episode: 6}))
	})

	t.Run("irregular re-fetches recorded episodes", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1, 2, 3}, 1, 2)

		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: seasonOne(1, 2, 3)}
		queue, err := f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Empty(t, queue)

		plan.Irregular = true
		queue, err = f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Equal(t, []string{"/srv/Show/Show.1x03.mkv"}, remotePaths(queue))
	})

	t.Run("marks files already present locally", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1, 2}, 2)

		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: episode.NewSet()}
		queue, err := f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Equal(t, []string{"/srv/Show/Show.1x01.mkv"}, remotePaths(queue))
		assert.True(t, plan.Episodes.Has(episode.ID{Season: 1, Episode: 2}))
		assert.Equal(t, 1, plan.Episodes.Len())
	})

	t.Run("re-fetches a partial unrecorded file", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1})
		f.localFile(t, "/data/Show.1x01.mkv", "epi")

		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: episode.NewSet()}
		queue, err := f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Equal(t, []string{"/srv/Show/Show.1x01.mkv"}, remotePaths(queue))
	})

	t.Run("skips unidentified and non media files", func(t *testing.T) {
		f := newFixture(t)
		f.remoteFile(t, "/srv/Show/notes.txt", "hello")
		f.remoteFile(t, "/srv/Show/Show.S01E02.mkv", "sxxexx naming")
		f.remoteFile(t, "/srv/Show/Show.1x02.txt", "wrong extension")
		f.remoteFile(t, "/srv/Show/Season 2/show.2X01.MKV", "nested")

		plan := &Plan{Remote: "/srv/Show", Local: "/data"}
		queue, err := f.m.Diff(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Equal(t, []string{"/srv/Show/Season 2/show.2X01.MKV"}, remotePaths(queue))
		assert.Equal(t, "/data/show.2X01.MKV", queue[0].Local)
	})

	t.Run("missing show directory", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.m.Diff(ctx, f.session(), &Plan{Remote: "/srv/Missing", Local: "/data"})
		assert.ErrorIs(t, err, remote.ErrNotExist)
	})

	t.Run("show path is a file", func(t *testing.T) {
		f := newFixture(t)
		f.remoteFile(t, "/srv/Show.1x01.mkv", "file")

		_, err := f.m.Diff(ctx, f.session(), &Plan{Remote: "/srv/Show.1x01.mkv", Local: "/data"})
		assert.Error(t, err)
	})
}

func TestManager_SyncShow(t *testing.T) {
	ctx := context.Background()

	t.Run("records episodes after they transfer", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1, 2, 3, 4, 5, 6, 7}, 1, 2, 3, 4, 5)

		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: episode.Decode(ranges(1, 1, 5))}
		n, err := f.m.SyncShow(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, ranges(1, 1, 7), episode.Encode(plan.Episodes))
		assert.Equal(t, episodeContent(7), f.readLocal(t, "/data/Show.1x07.mkv"))

		n, err = f.m.SyncShow(ctx, f.session(), plan)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("failed transfer leaves it and later files unrecorded", func(t *testing.T) {
		f := newFixture(t)
		f.seedShow(t, "/srv/Show", "/data", []int{1, 2, 3})

		s := failingSession{Session: f.session(), fail: "/srv/Show/Show.1x02.mkv"}
		plan := &Plan{Remote: "/srv/Show", Local: "/data", Episodes: episode.NewSet()}
		n, err := f.m.SyncShow(ctx, s, plan)
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, ranges(1, 1, 1), episode.Encode(plan.Episodes))

		ok, _ := afero.Exists(f.localFs, "/data/Show.1x03.mkv")
		assert.False(t, ok)
	})
}
