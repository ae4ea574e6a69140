package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/kasuboski/showsync/pkg/episode"
	showio "github.com/kasuboski/showsync/pkg/io"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/kasuboski/showsync/pkg/remote"
	"github.com/mattn/go-isatty"
)

const DefaultBufferSize = 32 * 1024

var ErrShortTransfer = errors.New("transferred size does not match remote size")

// Item is one remote file queued for download
type Item struct {
	Remote string
	Local  string
	Size   int64
	// Episode is nil for files fetched by explicit request that carry no episode token
	Episode *episode.ID
}

// ProgressFunc receives the bytes written so far and the expected total.
// Calls are monotonic and the last call on success has done == total.
type ProgressFunc func(done, total int64)

// ProgressFactory starts progress reporting for one item
type ProgressFactory func(item Item, index, total int) (ProgressFunc, func())

// Executor copies remote files into the local filesystem
type Executor struct {
	fio        showio.FileIO
	bufferSize int
	progress   ProgressFactory
}

// Option is a function that can be used to configure an Executor
type Option func(*Executor)

// WithBufferSize sets the copy buffer size
func WithBufferSize(size int) Option {
	return func(e *Executor) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// WithProgress sets how progress is reported
func WithProgress(p ProgressFactory) Option {
	return func(e *Executor) {
		e.progress = p
	}
}

func NewExecutor(fio showio.FileIO, opts ...Option) *Executor {
	e := &Executor{
		fio:        fio,
		bufferSize: DefaultBufferSize,
		progress:   LogProgress,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Transfer downloads item, replacing whatever is at the local path. index and
// total place the item within its queue for progress output. It returns the
// number of bytes written, which equals item.Size on success.
func (e *Executor) Transfer(ctx context.Context, s remote.Session, item Item, index, total int) (int64, error) {
	log := logger.FromCtx(ctx, "remote", item.Remote, "local", item.Local)

	if err := e.fio.MkdirAll(filepath.Dir(item.Local), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Dir(item.Local), err)
	}

	src, err := s.Open(ctx, item.Remote)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file: %w", err)
	}
	defer src.Close()

	dst, err := e.fio.Create(item.Local)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file: %w", err)
	}

	report, done := ProgressFunc(nil), func() {}
	if e.progress != nil {
		report, done = e.progress(item, index, total)
	}
	defer done()

	w := &progressWriter{w: dst, total: item.Size, report: report}
	buf := make([]byte, e.bufferSize)
	n, copyErr := io.CopyBuffer(w, &contextReader{ctx: ctx, r: src}, buf)
	closeErr := dst.Close()

	if copyErr != nil {
		return n, fmt.Errorf("failed to copy %s: %w", item.Remote, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("failed to close %s: %w", item.Local, closeErr)
	}
	if n != item.Size {
		return n, fmt.Errorf("%w: got %d of %d bytes for %s", ErrShortTransfer, n, item.Size, item.Remote)
	}

	w.finish()
	log.Debugw("transfer complete", "bytes", humanize.Bytes(uint64(n)))
	return n, nil
}

type progressWriter struct {
	w      io.Writer
	done   int64
	total  int64
	report ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.report != nil && n > 0 {
		p.report(p.done, p.total)
	}
	return n, err
}

// finish guarantees a final report with done == total even for empty files
func (p *progressWriter) finish() {
	if p.report != nil && p.done == 0 {
		p.report(p.done, p.total)
	}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
