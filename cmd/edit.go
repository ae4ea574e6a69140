package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/state"
	"github.com/spf13/cobra"
)

type editOptions struct {
	host     string
	port     int
	user     string
	password string
	key      string
	root     string

	embyURL      string
	embyUser     string
	embyPassword string

	location   string
	show       string
	downloaded []string
}

var editOpts editOptions

// editCmd adds or updates a connection, group and show in the state file
var editCmd = &cobra.Command{
	Use:     "edit",
	Aliases: []string{"edt"},
	Short:   "add or update connections and shows",
	Long: `add or update a connection, a save location and a tracked show in the state file.

Connections are keyed by host and user. Only the flags given are changed on an
existing connection. Downloaded ranges are given as season:start-end and are
merged with what is already recorded.`,
	Example: `  showsync edit --host seedbox --user me --key ~/.ssh/id_ed25519
  showsync edit --host seedbox --user me --location /data/tv --show /srv/tv/Show --downloaded 1:1-6`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Get()

		unlock, err := state.Lock(cmd.Context(), cfg.State.File, cfg.State.LockTimeout)
		if err != nil {
			return err
		}
		defer unlock()

		doc, err := state.Load(cfg.State.File)
		if errors.Is(err, state.ErrNotExist) {
			log.Infow("creating state file", "file", cfg.State.File)
			doc = &state.Document{}
		} else if err != nil {
			return err
		}

		if err := applyEdit(doc, editOpts, cmd.Flags().Changed); err != nil {
			return err
		}

		if err := state.Save(cfg.State.File, doc); err != nil {
			return err
		}

		log.Infow("saved state", "file", cfg.State.File, "host", editOpts.host, "show", editOpts.show)
		return nil
	},
}

func init() {
	f := editCmd.Flags()
	f.StringVar(&editOpts.host, "host", "", "remote hostname, file:///path or local for a mounted directory")
	f.IntVar(&editOpts.port, "port", 0, "ssh port (default from ssh.defaultPort)")
	f.StringVar(&editOpts.user, "user", "", "ssh user")
	f.StringVar(&editOpts.password, "password", "", "ssh password or key passphrase")
	f.StringVar(&editOpts.key, "key", "", "ssh private key file")
	f.StringVar(&editOpts.root, "root", "", "directory relative remote paths resolve against")
	f.StringVar(&editOpts.embyURL, "emby-url", "", "media library url")
	f.StringVar(&editOpts.embyUser, "emby-user", "", "media library user")
	f.StringVar(&editOpts.embyPassword, "emby-password", "", "media library password")
	f.StringVar(&editOpts.location, "location", "", "local directory shows are saved into")
	f.StringVar(&editOpts.show, "show", "", "remote show directory to track")
	f.StringSliceVar(&editOpts.downloaded, "downloaded", nil, "already downloaded episodes as season:start-end")
	_ = editCmd.MarkFlagRequired("host")

	rootCmd.AddCommand(editCmd)
}

// applyEdit merges the options into doc. changed reports whether a flag was
// given so unset flags keep their stored values.
func applyEdit(doc *state.Document, opts editOptions, changed func(string) bool) error {
	if opts.show != "" && opts.location == "" {
		return errors.New("--show needs --location")
	}
	if len(opts.downloaded) > 0 && opts.show == "" {
		return errors.New("--downloaded needs --show")
	}

	ranges := make([]episode.Range, 0, len(opts.downloaded))
	for _, s := range opts.downloaded {
		r, err := parseRange(s)
		if err != nil {
			return err
		}
		ranges = append(ranges, r)
	}

	auth := existingAuth(doc, opts.host, opts.user)
	auth.Hostname = opts.host
	auth.Username = opts.user
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("password", &auth.Password, opts.password)
	set("key", &auth.Key, opts.key)
	set("root", &auth.Root, opts.root)
	if changed("port") {
		auth.Port = opts.port
	}

	if changed("emby-url") || changed("emby-user") || changed("emby-password") {
		e := state.Emby{}
		if auth.Emby != nil {
			e = *auth.Emby
		}
		set("emby-url", &e.URL, opts.embyURL)
		set("emby-user", &e.Username, opts.embyUser)
		set("emby-password", &e.Password, opts.embyPassword)
		// new credentials invalidate the cached login
		e.Token, e.UserID = "", ""
		auth.Emby = &e
	}

	if err := auth.Validate(); err != nil {
		return fmt.Errorf("invalid connection: %w", err)
	}

	conn := doc.UpsertConnection(auth)
	if opts.location == "" {
		return nil
	}

	group := conn.UpsertGroup(opts.location)
	if opts.show == "" {
		return nil
	}

	show := group.UpsertShow(opts.show)
	eps := show.Episodes()
	eps.Merge(episode.Decode(ranges))
	show.SetEpisodes(eps)
	return nil
}

func existingAuth(doc *state.Document, host, user string) state.Auth {
	for _, c := range doc.Connections {
		if c.Auth != nil && c.Auth.Hostname == host && c.Auth.Username == user {
			return *c.Auth
		}
	}
	return state.Auth{}
}

// parseRange reads season:start-end. A single episode may be given as season:episode.
func parseRange(s string) (episode.Range, error) {
	season, eps, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return episode.Range{}, fmt.Errorf("invalid range %q, expected season:start-end", s)
	}

	start, end, ok := strings.Cut(eps, "-")
	if !ok {
		end = start
	}

	var r episode.Range
	var err error
	if r.Season, err = strconv.Atoi(season); err != nil {
		return r, fmt.Errorf("invalid season in %q: %w", s, err)
	}
	if r.Start, err = strconv.Atoi(start); err != nil {
		return r, fmt.Errorf("invalid start in %q: %w", s, err)
	}
	if r.End, err = strconv.Atoi(end); err != nil {
		return r, fmt.Errorf("invalid end in %q: %w", s, err)
	}
	if r.End < r.Start {
		return r, fmt.Errorf("invalid range %q, end before start", s)
	}

	return r, nil
}
