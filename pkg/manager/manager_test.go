package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/kasuboski/showsync/pkg/episode"
	showio "github.com/kasuboski/showsync/pkg/io"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/kasuboski/showsync/pkg/remote/mocks"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/kasuboski/showsync/pkg/transfer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fixture is an in-memory remote and local disk with a manager wired between them
type fixture struct {
	remoteFs afero.Fs
	localFs  afero.Fs
	fio      showio.FileIO
	saves    []*state.Document
	m        *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		remoteFs: afero.NewMemMapFs(),
		localFs:  afero.NewMemMapFs(),
	}
	f.fio = showio.NewLocalFileSystem(f.localFs)

	saver := func(doc *state.Document) error {
		b, err := state.Marshal(doc)
		if err != nil {
			return err
		}
		snapshot, err := state.Parse(bytes.NewReader(b))
		if err != nil {
			return err
		}
		f.saves = append(f.saves, snapshot)
		return nil
	}

	opts = append([]Option{
		WithExecutor(transfer.NewExecutor(f.fio, transfer.WithProgress(nil))),
		WithSaver(saver),
	}, opts...)
	f.m = New(nil, f.fio, opts...)
	return f
}

// withConnector replaces the manager's connector after construction
func (f *fixture) withConnector(c remote.Connector) *fixture {
	f.m.connector = c
	return f
}

func (f *fixture) session() remote.Session {
	return remote.NewFsSession(f.remoteFs, "")
}

func (f *fixture) remoteFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.remoteFs, p, []byte(content), 0o644))
}

func (f *fixture) localFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.localFs, p, []byte(content), 0o644))
}

func (f *fixture) readLocal(t *testing.T, p string) string {
	t.Helper()
	b, err := afero.ReadFile(f.localFs, p)
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) lastSave(t *testing.T) *state.Document {
	t.Helper()
	require.NotEmpty(t, f.saves)
	return f.saves[len(f.saves)-1]
}

// seedShow writes episodes of season 1 to the remote and, for those listed in
// local, an identical copy to the local save directory.
func (f *fixture) seedShow(t *testing.T, remoteDir, localDir string, remoteEps []int, local ...int) {
	t.Helper()
	for _, ep := range remoteEps {
		f.remoteFile(t, fmt.Sprintf("%s/Show.1x%02d.mkv", remoteDir, ep), episodeContent(ep))
	}
	for _, ep := range local {
		f.localFile(t, fmt.Sprintf("%s/Show.1x%02d.mkv", localDir, ep), episodeContent(ep))
	}
}

func episodeContent(ep int) string {
	return fmt.Sprintf("episode %02d payload", ep)
}

func seasonOne(eps ...int) episode.Set {
	s := episode.NewSet()
	for _, ep := range eps {
		s.Add(episode.ID{Season: 1, Episode: ep})
	}
	return s
}

func ranges(season, start, end int) []episode.Range {
	return []episode.Range{{Season: season, Start: start, End: end}}
}

func singleShowDoc(host, remotePath, location string, downloaded []episode.Range) *state.Document {
	return &state.Document{Connections: []*state.Connection{{
		Auth: &state.Auth{Hostname: host},
		Groups: []*state.Group{{
			Location: location,
			Shows: []*state.Show{{
				RemotePath: remotePath,
				Downloaded: state.Downloaded{Ranges: downloaded},
			}},
		}},
	}}}
}

// fsConnector hands out sessions over the fixture's remote filesystem
func fsConnector(t *testing.T, f *fixture) *mocks.MockConnector {
	ctrl := gomock.NewController(t)
	c := mocks.NewMockConnector(ctrl)
	c.EXPECT().Connect(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _ state.Auth) (remote.Session, error) {
		return f.session(), nil
	}).AnyTimes()
	return c
}

// failingSession fails to open one remote path
type failingSession struct {
	remote.Session
	fail string
}

func (s failingSession) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if p == s.fail {
		return nil, errors.New("connection reset by peer")
	}
	return s.Session.Open(ctx, p)
}
