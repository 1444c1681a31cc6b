package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/multierr"

	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

const tempSuffix = ".tmp"

// Store owns the on-disk layout under the media root: one directory per
// record at <root>/<kind>/<id>/, holding the primary file and any derived
// artifacts.
type Store struct {
	root string
	logg *logger.Logger
}

// NewStore builds a store rooted at the given directory.
func NewStore(root string, logg *logger.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("media root directory required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	return &Store{root: abs, logg: logg}, nil
}

// Root returns the absolute media root directory.
func (s *Store) Root() string {
	return s.root
}

// Path allocates the store-relative location for a record's file. The
// record id is a path segment, which is why records with files need the
// two-phase save: the id must exist before the file can be placed.
func (s *Store) Path(kind enums.MediaKind, id uint, filename string) string {
	clean := sanitizeFileName(filename)
	if clean == "" {
		clean = strconv.FormatUint(uint64(id), 10)
	}
	return filepath.Join(kind.String(), strconv.FormatUint(uint64(id), 10), clean)
}

// Abs resolves a store-relative path to an absolute one.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, rel)
}

// Write streams the reader to the store-relative path, creating parent
// directories as needed. The bytes land in a sibling temp file first and
// are renamed into place, so a canceled upload never leaves a partial
// artifact under the final name.
func (s *Store) Write(ctx context.Context, rel string, r io.Reader) (int64, error) {
	dst := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp := dst + tempSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating artifact temp file: %w", err)
	}

	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("writing artifact: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("placing artifact: %w", err)
	}
	return n, nil
}

// Open returns the file and its metadata for a store-relative path.
func (s *Store) Open(rel string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(s.Abs(rel))
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, fi, nil
}

// Remove deletes every artifact attached to the record and then the
// record's directory. Each removal is attempted independently; a missing
// file counts as removed. The combined error is returned for logging but
// callers are expected to proceed regardless: record deletion is never
// blocked by filesystem state.
func (s *Store) Remove(ctx context.Context, m *models.Media) error {
	if m == nil {
		return nil
	}

	var errs error
	var dir string
	paths := []string{m.FilePath}
	if m.MP3Path != nil {
		paths = append(paths, *m.MP3Path)
	}
	if m.ThumbnailPath != nil {
		paths = append(paths, *m.ThumbnailPath)
	}
	for _, rel := range paths {
		if rel == "" {
			continue
		}
		if dir == "" {
			dir = filepath.Dir(rel)
		}
		if err := os.Remove(s.Abs(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, fmt.Errorf("removing %s: %w", rel, err))
		}
	}

	// Directory removal is best-effort: not-empty or already-gone is fine.
	if dir != "" && dir != "." {
		_ = os.Remove(s.Abs(dir))
	}

	if errs != nil && s.logg != nil {
		s.logg.Error(s.logg.WithMediaID(ctx, m.ID), "artifact cleanup incomplete", errs)
	}
	return errs
}

// SweepTempFiles removes stale *.tmp leftovers under the root, the residue
// of writes interrupted before their rename. Returns how many were removed.
func (s *Store) SweepTempFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), tempSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(p); err == nil {
			removed++
		}
		return nil
	})
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	return removed, err
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
