package state

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is the root of the persisted state file.
type Document struct {
	XMLName     xml.Name      `xml:"config"`
	Connections []*Connection `xml:"connection"`
}

// Connection groups everything reachable with one set of credentials.
type Connection struct {
	Auth   *Auth    `xml:"auth"`
	Groups []*Group `xml:"group"`
}

// Auth holds the static credentials for a remote server. Older files store
// these as child elements; they are read in either form and always written as
// attributes.
type Auth struct {
	Hostname string `xml:"hostname,attr,omitempty" validate:"required"`
	Port     int    `xml:"port,attr,omitempty" validate:"gte=0,lte=65535"`
	Username string `xml:"username,attr,omitempty"`
	Password string `xml:"password,attr,omitempty"`
	Key      string `xml:"key,attr,omitempty"`
	Root     string `xml:"root,attr,omitempty"`
	Emby     *Emby  `xml:"emby,omitempty"`
}

// Emby holds the optional media library connection. Token and UserID are
// filled in after a successful login so later runs can skip it.
type Emby struct {
	URL      string `xml:"url,attr,omitempty" validate:"omitempty,url"`
	Username string `xml:"username,attr,omitempty"`
	Password string `xml:"password,attr,omitempty"`
	Token    string `xml:"token,attr,omitempty"`
	UserID   string `xml:"userid,attr,omitempty"`
}

// Group is a local save directory and the shows mirrored into it.
type Group struct {
	Location string  `xml:"location,attr"`
	Shows    []*Show `xml:"show"`
}

// Show is one remote directory tracked by its downloaded ranges.
type Show struct {
	RemotePath string     `xml:"remotepath"`
	Downloaded Downloaded `xml:"downloaded"`
}

type Downloaded struct {
	Ranges []episode.Range `xml:"range"`
}

type authXML struct {
	Hostname string `xml:"hostname,attr"`
	Port     string `xml:"port,attr"`
	Username string `xml:"username,attr"`
	Password string `xml:"password,attr"`
	Key      string `xml:"key,attr"`
	Root     string `xml:"root,attr"`

	HostnameElem string `xml:"hostname"`
	PortElem     string `xml:"port"`
	UsernameElem string `xml:"username"`
	PasswordElem string `xml:"password"`
	KeyElem      string `xml:"key"`
	RootElem     string `xml:"root"`

	Emby *Emby `xml:"emby"`
}

// UnmarshalXML accepts both the attribute and the element form of auth.
func (a *Auth) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw authXML
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	port := pick(raw.Port, raw.PortElem)
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		a.Port = p
	}

	a.Hostname = pick(raw.Hostname, raw.HostnameElem)
	a.Username = pick(raw.Username, raw.UsernameElem)
	a.Password = pick(raw.Password, raw.PasswordElem)
	a.Key = pick(raw.Key, raw.KeyElem)
	a.Root = pick(raw.Root, raw.RootElem)
	a.Emby = raw.Emby
	return nil
}

func pick(attr, elem string) string {
	if v := strings.TrimSpace(attr); v != "" {
		return v
	}
	return strings.TrimSpace(elem)
}

// Validate checks that the credentials are complete enough to dial.
func (a *Auth) Validate() error {
	if a == nil {
		return fmt.Errorf("connection has no auth")
	}
	return validate.Struct(a)
}

// Address is the host:port pair to dial. A zero port means the caller's default.
func (a *Auth) Address(defaultPort int) string {
	port := a.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", a.Hostname, port)
}

// Episodes decodes the show's downloaded ranges.
func (s *Show) Episodes() episode.Set {
	return episode.Decode(s.Downloaded.Ranges)
}

// SetEpisodes replaces the show's downloaded ranges with the encoding of set.
func (s *Show) SetEpisodes(set episode.Set) {
	s.Downloaded.Ranges = episode.Encode(set)
}

// Path is the remote path with surrounding whitespace from pretty printing removed.
func (s *Show) Path() string {
	return strings.TrimSpace(s.RemotePath)
}

// ShowRef locates a show inside a document.
type ShowRef struct {
	Connection *Connection
	Group      *Group
	Show       *Show
}

// FindShow returns the show whose remote path equals p.
func (d *Document) FindShow(p string) (ShowRef, bool) {
	for _, ref := range d.Shows() {
		if ref.Show.Path() == p {
			return ref, true
		}
	}
	return ShowRef{}, false
}

// OwningShow returns the show whose remote path is p or a directory above it.
// Paths are compared whole segments at a time.
func (d *Document) OwningShow(p string) (ShowRef, bool) {
	p = cleanPath(p)
	if p == "" {
		return ShowRef{}, false
	}

	for _, ref := range d.Shows() {
		if sp := cleanPath(ref.Show.Path()); sp != "" && within(p, sp) {
			return ref, true
		}
	}
	return ShowRef{}, false
}

// MatchShow resolves a request to a show. The owning show wins, then a show
// whose path ends in the relative request p, then a show below p.
func (d *Document) MatchShow(p string) (ShowRef, bool) {
	if ref, ok := d.OwningShow(p); ok {
		return ref, true
	}

	p = cleanPath(p)
	if p == "" {
		return ShowRef{}, false
	}

	refs := d.Shows()
	if !strings.HasPrefix(p, "/") {
		for _, ref := range refs {
			if strings.HasSuffix(cleanPath(ref.Show.Path()), "/"+p) {
				return ref, true
			}
		}
	}
	for _, ref := range refs {
		if sp := cleanPath(ref.Show.Path()); sp != "" && within(sp, p) {
			return ref, true
		}
	}
	return ShowRef{}, false
}

// within reports whether p is dir or lies below it
func within(p, dir string) bool {
	if p == dir || dir == "/" {
		return strings.HasPrefix(p, dir)
	}
	return strings.HasPrefix(p, dir+"/")
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return p
	}
	return strings.TrimRight(p, "/")
}

// Shows lists every show in document order.
func (d *Document) Shows() []ShowRef {
	var refs []ShowRef
	for _, c := range d.Connections {
		for _, g := range c.Groups {
			for _, s := range g.Shows {
				refs = append(refs, ShowRef{Connection: c, Group: g, Show: s})
			}
		}
	}
	return refs
}

// UpsertConnection returns the connection for the auth's host and user,
// creating it when missing. Credentials on an existing connection are replaced.
func (d *Document) UpsertConnection(auth Auth) *Connection {
	for _, c := range d.Connections {
		if c.Auth == nil {
			continue
		}
		if c.Auth.Hostname == auth.Hostname && c.Auth.Username == auth.Username {
			emby := c.Auth.Emby
			*c.Auth = auth
			if c.Auth.Emby == nil {
				c.Auth.Emby = emby
			}
			return c
		}
	}

	c := &Connection{Auth: &auth}
	d.Connections = append(d.Connections, c)
	return c
}

// UpsertGroup returns the group saving into location, creating it when missing.
func (c *Connection) UpsertGroup(location string) *Group {
	for _, g := range c.Groups {
		if g.Location == location {
			return g
		}
	}

	g := &Group{Location: location}
	c.Groups = append(c.Groups, g)
	return g
}

// UpsertShow returns the show for remotePath, creating it when missing.
func (g *Group) UpsertShow(remotePath string) *Show {
	for _, s := range g.Shows {
		if s.Path() == remotePath {
			return s
		}
	}

	s := &Show{RemotePath: remotePath}
	g.Shows = append(g.Shows, s)
	return s
}

// FirstLocation is the location of the first group in the document.
func (d *Document) FirstLocation() (string, bool) {
	for _, c := range d.Connections {
		for _, g := range c.Groups {
			return g.Location, true
		}
	}
	return "", false
}

// dropInvalidRanges removes range records that cannot describe real
// episodes, such as negative numbers or spans of billions.
func (d *Document) dropInvalidRanges() {
	for _, ref := range d.Shows() {
		kept := ref.Show.Downloaded.Ranges[:0]
		for _, r := range ref.Show.Downloaded.Ranges {
			if !r.Valid() {
				logger.Get().Warnw("ignoring invalid downloaded range", "show", ref.Show.Path(),
					"season", r.Season, "start", r.Start, "end", r.End)
				continue
			}
			kept = append(kept, r)
		}
		ref.Show.Downloaded.Ranges = kept
	}
}

// normalize re-merges every show's ranges so the written file never carries
// overlapping or adjacent records.
func (d *Document) normalize() {
	for _, ref := range d.Shows() {
		ref.Show.RemotePath = ref.Show.Path()
		ref.Show.SetEpisodes(ref.Show.Episodes())
	}
}
