package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kasuboski/showsync/pkg/state"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultPort    = 22
	DefaultTimeout = time.Second * 30
)

var _ Session = (*SFTPSession)(nil)

// SFTPSession is a remote tree served over SFTP.
type SFTPSession struct {
	conn   *ssh.Client
	client *sftp.Client
	root   string
}

func (s *SFTPSession) ReadDir(ctx context.Context, p string) ([]fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := s.client.ReadDir(s.resolve(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return infos, nil
}

func (s *SFTPSession) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.client.Stat(s.resolve(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return info, nil
}

func (s *SFTPSession) Exists(ctx context.Context, p string) (bool, error) {
	return exists(ctx, s, p)
}

func (s *SFTPSession) IsDir(ctx context.Context, p string) (bool, error) {
	return isDir(ctx, s, p)
}

func (s *SFTPSession) IsFile(ctx context.Context, p string) (bool, error) {
	return isFile(ctx, s, p)
}

func (s *SFTPSession) ReadLines(ctx context.Context, p string) ([]string, error) {
	f, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLines(f)
}

func (s *SFTPSession) Walk(ctx context.Context, root string, fn WalkFunc) error {
	walker := s.client.Walk(s.resolve(root))
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := walker.Err(); err != nil {
			if err := fn(walker.Path(), nil, err); err != nil {
				return err
			}
			continue
		}

		info := walker.Stat()
		if info.IsDir() {
			continue
		}

		if err := fn(walker.Path(), info, nil); err != nil {
			return err
		}
	}

	return nil
}

func (s *SFTPSession) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.client.Open(s.resolve(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return f, nil
}

// Normalize asks the server for the canonical form of p.
func (s *SFTPSession) Normalize(p string) (string, error) {
	canonical, err := s.client.RealPath(s.resolve(p))
	if err != nil {
		return "", fmt.Errorf("failed to normalize %s: %w", p, err)
	}
	return canonical, nil
}

func (s *SFTPSession) Close() error {
	return errors.Join(s.client.Close(), s.conn.Close())
}

func (s *SFTPSession) resolve(p string) string {
	return resolve(s.root, p)
}

// SSHConnector dials SFTP sessions. A hostname of "local" or a file:// URL
// opens the local filesystem instead.
type SSHConnector struct {
	timeout     time.Duration
	knownHosts  string
	defaultPort int
	mounted     func(base, root string) Session
}

// ConnectorOption configures an SSHConnector
type ConnectorOption func(*SSHConnector)

// WithTimeout bounds how long dialing and the ssh handshake may take
func WithTimeout(d time.Duration) ConnectorOption {
	return func(c *SSHConnector) {
		c.timeout = d
	}
}

// WithKnownHosts verifies host keys against an OpenSSH known_hosts file.
// Without it any host key is accepted.
func WithKnownHosts(file string) ConnectorOption {
	return func(c *SSHConnector) {
		c.knownHosts = file
	}
}

// WithDefaultPort sets the port used when a connection omits one
func WithDefaultPort(port int) ConnectorOption {
	return func(c *SSHConnector) {
		c.defaultPort = port
	}
}

// WithMountedSession overrides how local hostnames are served
func WithMountedSession(fn func(base, root string) Session) ConnectorOption {
	return func(c *SSHConnector) {
		c.mounted = fn
	}
}

func NewConnector(opts ...ConnectorOption) *SSHConnector {
	c := &SSHConnector{
		timeout:     DefaultTimeout,
		defaultPort: DefaultPort,
		mounted:     osSession,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *SSHConnector) Connect(ctx context.Context, auth state.Auth) (Session, error) {
	if err := auth.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth: %w", err)
	}

	if base, ok := mountedRoot(auth.Hostname); ok {
		return c.mounted(base, auth.Root), nil
	}

	config, err := c.clientConfig(auth)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	addr := auth.Address(c.defaultPort)
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})

	conn := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start sftp on %s: %w", addr, err)
	}

	return &SFTPSession{conn: conn, client: client, root: auth.Root}, nil
}

func (c *SSHConnector) clientConfig(auth state.Auth) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	if auth.Key != "" {
		signer, err := loadSigner(auth.Key, auth.Password)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if auth.Password != "" {
		methods = append(methods, ssh.Password(auth.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.knownHosts != "" {
		cb, err := knownhosts.New(expandHome(c.knownHosts))
		if err != nil {
			return nil, fmt.Errorf("failed to read known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            auth.Username,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         c.timeout,
	}, nil
}

// loadSigner reads a private key, using the password as its passphrase when
// the key is encrypted.
func loadSigner(keyFile, password string) (ssh.Signer, error) {
	b, err := os.ReadFile(expandHome(keyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", keyFile, err)
	}

	signer, err := ssh.ParsePrivateKey(b)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("failed to parse key %s: %w", keyFile, err)
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(b, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key %s: %w", keyFile, err)
	}
	return signer, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

func mountedRoot(hostname string) (string, bool) {
	if hostname == "local" {
		return "", true
	}
	if root, ok := strings.CutPrefix(hostname, "file://"); ok {
		if root == "" {
			root = "/"
		}
		return root, true
	}
	return "", false
}
