// Package acquire makes remote media available as local files. Files are
// fetched at most once: an existing destination is never re-downloaded,
// regardless of its content or the locator it came from.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Fetcher streams the resource named by locator into w.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, w io.Writer) error
}

// EnsureLocal makes sure dest exists, fetching locator into it when it does
// not. It reports whether a fetch happened. Downloads land in a temporary
// file next to dest and are renamed into place only when complete.
func EnsureLocal(ctx context.Context, f Fetcher, locator, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return false, fmt.Errorf("create temp file: %w", err)
	}

	if err := f.Fetch(ctx, locator, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, fmt.Errorf("fetch %s: %w", locator, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return false, fmt.Errorf("move into %s: %w", dest, err)
	}
	return true, nil
}
