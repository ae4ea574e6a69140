package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <connection>
    <auth hostname="seedbox.example" port="2222" username="az" password="secret">
      <emby url="http://emby.local:8096" username="viewer" password="pw"/>
    </auth>
    <group location="/home/az/anime">
      <show>
        <remotepath>/media/Show A</remotepath>
        <downloaded>
          <range season="1" start="1" end="3"/>
          <range season="1" start="5" end="6"/>
        </downloaded>
      </show>
      <show>
        <remotepath>
          /media/Show B
        </remotepath>
        <downloaded/>
      </show>
    </group>
  </connection>
</config>
`

func TestParse(t *testing.T) {
	t.Run("attribute form", func(t *testing.T) {
		doc, err := Parse(strings.NewReader(sampleDocument))
		require.NoError(t, err)
		require.Len(t, doc.Connections, 1)

		auth := doc.Connections[0].Auth
		require.NotNil(t, auth)
		assert.Equal(t, "seedbox.example", auth.Hostname)
		assert.Equal(t, 2222, auth.Port)
		assert.Equal(t, "az", auth.Username)
		assert.Equal(t, "secret", auth.Password)
		require.NotNil(t, auth.Emby)
		assert.Equal(t, "http://emby.local:8096", auth.Emby.URL)

		groups := doc.Connections[0].Groups
		require.Len(t, groups, 1)
		assert.Equal(t, "/home/az/anime", groups[0].Location)
		require.Len(t, groups[0].Shows, 2)

		showA := groups[0].Shows[0]
		assert.Equal(t, "/media/Show A", showA.Path())
		assert.Equal(t, []int{1, 2, 3, 5, 6}, showA.Episodes().Episodes(1))

		assert.Equal(t, "/media/Show B", groups[0].Shows[1].Path())
		assert.Zero(t, groups[0].Shows[1].Episodes().Len())
	})

	t.Run("legacy element form", func(t *testing.T) {
		legacy := `<config><connection><auth>
			<hostname>old.example</hostname>
			<port>22</port>
			<username>az</username>
			<password></password>
			<key>/home/az/.ssh/id_ed25519</key>
			<root>/srv/share</root>
		</auth></connection></config>`

		doc, err := Parse(strings.NewReader(legacy))
		require.NoError(t, err)

		auth := doc.Connections[0].Auth
		assert.Equal(t, "old.example", auth.Hostname)
		assert.Equal(t, 22, auth.Port)
		assert.Equal(t, "/home/az/.ssh/id_ed25519", auth.Key)
		assert.Equal(t, "/srv/share", auth.Root)
		assert.Empty(t, auth.Password)
		assert.Nil(t, auth.Emby)
	})

	t.Run("recovers from minor errors", func(t *testing.T) {
		broken := `<config><connection><auth hostname="h" username="u"/>
			<group location=anime><show><remotepath>/r/Tom &amp; Jerry&nbsp;</remotepath></show></group>
			</connection></config>`

		doc, err := Parse(strings.NewReader(broken))
		require.NoError(t, err)

		require.Len(t, doc.Connections[0].Groups, 1)
		g := doc.Connections[0].Groups[0]
		assert.Equal(t, "anime", g.Location)
		require.Len(t, g.Shows, 1)
		assert.True(t, strings.HasPrefix(g.Shows[0].Path(), "/r/Tom & Jerry"))
	})

	t.Run("drops ranges that cannot be expanded", func(t *testing.T) {
		edited := `<config><connection><auth hostname="h"/><group location="/data"><show>
			<remotepath>/srv/Show</remotepath>
			<downloaded>
				<range season="1" start="1" end="2147483647"/>
				<range season="1" start="-4" end="2"/>
				<range season="2" start="1" end="3"/>
			</downloaded>
		</show></group></connection></config>`

		doc, err := Parse(strings.NewReader(edited))
		require.NoError(t, err)

		show := doc.Connections[0].Groups[0].Shows[0]
		assert.Equal(t, []episode.Range{{Season: 2, Start: 1, End: 3}}, show.Downloaded.Ranges)
		assert.Equal(t, 3, show.Episodes().Len())
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`<config><connection><auth hostname="h" port="abc"/></connection></config>`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("not xml", func(t *testing.T) {
		_, err := Parse(strings.NewReader("this is not a config"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "config.xml"))
		assert.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("save then load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.xml")

		doc, err := Parse(strings.NewReader(sampleDocument))
		require.NoError(t, err)

		show := doc.Connections[0].Groups[0].Shows[0]
		set := show.Episodes()
		set.Add(episode.ID{Season: 1, Episode: 4})
		set.Add(episode.ID{Season: 2, Episode: 1})
		show.SetEpisodes(set)

		require.NoError(t, Save(path, doc))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := Load(path)
		require.NoError(t, err)

		want := []episode.Range{
			{Season: 1, Start: 1, End: 6},
			{Season: 2, Start: 1, End: 1},
		}
		assert.Equal(t, want, loaded.Connections[0].Groups[0].Shows[0].Downloaded.Ranges)
		assert.Equal(t, "/media/Show B", loaded.Connections[0].Groups[0].Shows[1].RemotePath)
	})
}

func TestMarshal(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	// overlapping records written by hand are merged on the way out
	show := doc.Connections[0].Groups[0].Shows[0]
	show.Downloaded.Ranges = append(show.Downloaded.Ranges, episode.Range{Season: 1, Start: 4, End: 4})

	b, err := Marshal(doc)
	require.NoError(t, err)

	snaps.MatchSnapshot(t, string(b))
}

func TestDocument_MatchShow(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	ref, ok := doc.MatchShow("/media/Show A/Season 1")
	require.True(t, ok)
	assert.Equal(t, "/media/Show A", ref.Show.Path())
	assert.Equal(t, "/home/az/anime", ref.Group.Location)

	ref, ok = doc.MatchShow("Show B")
	require.True(t, ok)
	assert.Equal(t, "/media/Show B", ref.Show.Path())

	_, ok = doc.MatchShow("/elsewhere")
	assert.False(t, ok)

	// names sharing a prefix are different directories
	_, ok = doc.MatchShow("/media/Show A 2/Show A 2.1x01.mkv")
	assert.False(t, ok)
	_, ok = doc.MatchShow("Show")
	assert.False(t, ok)

	// a parent directory resolves to the first show below it
	ref, ok = doc.MatchShow("/media/")
	require.True(t, ok)
	assert.Equal(t, "/media/Show A", ref.Show.Path())

	_, ok = doc.MatchShow("")
	assert.False(t, ok)

	_, ok = doc.FindShow("/media/Show A/Season 1")
	assert.False(t, ok)

	ref, ok = doc.FindShow("/media/Show B")
	require.True(t, ok)
	assert.Equal(t, "/media/Show B", ref.Show.Path())
}

func TestDocument_OwningShow(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "show root", path: "/media/Show A", want: "/media/Show A"},
		{name: "trailing slash", path: "/media/Show B/", want: "/media/Show B"},
		{name: "file below show", path: "/media/Show B/Season 2/Show B.2x01.mkv", want: "/media/Show B"},
		{name: "sibling sharing a prefix", path: "/media/Show B 2/Show B 2.3x04.mkv"},
		{name: "parent directory", path: "/media"},
		{name: "relative name", path: "Show A"},
		{name: "empty", path: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := doc.OwningShow(tt.path)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, ref.Show.Path())
		})
	}
}

func TestDocument_Upsert(t *testing.T) {
	doc := &Document{}

	c := doc.UpsertConnection(Auth{Hostname: "h", Username: "u", Port: 22})
	c.Auth.Emby = &Emby{URL: "http://emby"}

	again := doc.UpsertConnection(Auth{Hostname: "h", Username: "u", Port: 2200})
	assert.Same(t, c, again)
	assert.Equal(t, 2200, again.Auth.Port)
	require.NotNil(t, again.Auth.Emby)
	assert.Equal(t, "http://emby", again.Auth.Emby.URL)

	g := c.UpsertGroup("/save")
	assert.Same(t, g, c.UpsertGroup("/save"))

	s := g.UpsertShow("/remote/show")
	assert.Same(t, s, g.UpsertShow("/remote/show"))
	assert.Len(t, doc.Shows(), 1)

	loc, ok := doc.FirstLocation()
	assert.True(t, ok)
	assert.Equal(t, "/save", loc)

	_, ok = (&Document{}).FirstLocation()
	assert.False(t, ok)
}

func TestAuth_Validate(t *testing.T) {
	assert.NoError(t, (&Auth{Hostname: "h", Port: 22}).Validate())
	assert.Error(t, (&Auth{Port: 22}).Validate())
	assert.Error(t, (&Auth{Hostname: "h", Port: 70000}).Validate())
	assert.Error(t, (&Auth{Hostname: "h", Emby: &Emby{URL: "not a url"}}).Validate())

	var missing *Auth
	assert.Error(t, missing.Validate())

	assert.Equal(t, "h:22", (&Auth{Hostname: "h"}).Address(22))
	assert.Equal(t, "h:2222", (&Auth{Hostname: "h", Port: 2222}).Address(22))
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	ctx := context.Background()

	unlock, err := Lock(ctx, path, time.Second)
	require.NoError(t, err)

	_, err = Lock(ctx, path, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())

	unlock, err = Lock(ctx, path, time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock())
}
