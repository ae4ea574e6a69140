package state

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	ErrNotExist  = errors.New("state file does not exist")
	ErrMalformed = errors.New("state file is malformed")
	ErrLocked    = errors.New("state file is locked by another run")
)

// Load reads and parses the state file at path.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	return Parse(bytes.NewReader(b))
}

// Parse decodes a state document. A strict parse is tried first; when that
// fails the input is parsed again in recovery mode, which tolerates unknown
// entities, unquoted attributes and mismatched end tags.
func Parse(r io.Reader) (*Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc, strictErr := decode(b, true)
	if strictErr != nil {
		doc, err = decode(b, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, errors.Join(strictErr, err))
		}
	}

	doc.dropInvalidRanges()
	return doc, nil
}

func decode(b []byte, strict bool) (*Document, error) {
	d := xml.NewDecoder(bytes.NewReader(b))
	d.Strict = strict
	if !strict {
		d.AutoClose = xml.HTMLAutoClose
		d.Entity = xml.HTMLEntity
	}

	doc := new(Document)
	if err := d.Decode(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Marshal encodes the document with an XML declaration and two space indentation.
func Marshal(doc *Document) ([]byte, error) {
	doc.normalize()

	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(xml.Header)+len(b)+1)
	out = append(out, xml.Header...)
	out = append(out, b...)
	out = append(out, '\n')
	return out, nil
}

// Save writes the document to path. The file is replaced atomically so an
// interrupted save leaves the previous contents intact.
func Save(path string, doc *Document) error {
	b, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".showsync-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Lock takes an exclusive advisory lock next to the state file. The returned
// function releases it.
func Lock(ctx context.Context, path string, timeout time.Duration) (func() error, error) {
	lock := flock.New(path + ".lock")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return lock.Unlock, nil
}
