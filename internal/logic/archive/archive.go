// Package archive lays out capture batches on disk as
// <base>/<YYYY-MM-DD>/<batch-id>.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// ErrDirectoryUnwritable reports a destination that can't be created or written.
var ErrDirectoryUnwritable = errors.New("destination directory unwritable")

// Style selects the batch identifier format.
type Style int

const (
	// Timestamp names batches by Unix seconds.
	Timestamp Style = iota
	// Clock names batches by local HH:MM:SS.
	Clock
)

// ParseStyle maps the config spelling to a Style.
func ParseStyle(s string) (Style, error) {
	switch s {
	case "", "timestamp":
		return Timestamp, nil
	case "clock":
		return Clock, nil
	default:
		return 0, fmt.Errorf("unknown batch id style %q", s)
	}
}

// Namer derives batch directories under Base.
type Namer struct {
	Base  string
	Style Style
}

// BatchID returns the batch identifier for t.
func (n Namer) BatchID(t time.Time) string {
	if n.Style == Clock {
		return t.Format("15:04:05")
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// Dir returns <Base>/<YYYY-MM-DD>/<batch-id> for t.
func (n Namer) Dir(t time.Time) string {
	return filepath.Join(n.Base, t.Format("2006-01-02"), n.BatchID(t))
}

// Create makes the batch directory for t with its parents. An existing
// directory is not an error.
func (n Namer) Create(t time.Time) (string, error) {
	dir := n.Dir(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch directory: %w", err)
	}
	return dir, nil
}

// ResolveBase makes a relative destination absolute by joining it to exeDir.
func ResolveBase(dir, exeDir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(exeDir, dir)
}

// Prepare ensures base exists and is a writable directory.
func Prepare(base string) error {
	info, err := os.Stat(base)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(base, 0o755); err != nil {
			return fmt.Errorf("%w: creating %s: %v", ErrDirectoryUnwritable, base, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", ErrDirectoryUnwritable, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryUnwritable, base)
	}

	if err := unix.Access(base, unix.W_OK); err != nil {
		return fmt.Errorf("%w: no permission to write into %s: %v", ErrDirectoryUnwritable, base, err)
	}
	return nil
}
