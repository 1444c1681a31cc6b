package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

type repository interface {
	Create(ctx context.Context, m *models.Media) error
	Update(ctx context.Context, m *models.Media) error
	FindByID(ctx context.Context, id uint) (*models.Media, error)
	Delete(ctx context.Context, id uint) error
	ListOrphansBefore(ctx context.Context, cutoff time.Time) ([]models.Media, error)
}

type artifactStore interface {
	Path(kind enums.MediaKind, id uint, filename string) string
	Abs(rel string) string
	Write(ctx context.Context, rel string, r io.Reader) (int64, error)
	Remove(ctx context.Context, m *models.Media) error
}

type converter interface {
	ToMP3(ctx context.Context, inputPath, outputPath string) error
	CompressImage(ctx context.Context, inputPath, outputPath string) error
	Duration(ctx context.Context, path string) *float64
}

// Upload carries one incoming file for a media record.
type Upload struct {
	FileName string
	Content  io.Reader
}

// Service owns the media record lifecycle: two-phase saves, mp3
// normalization, and artifact-aware deletes.
type Service struct {
	repo  repository
	store artifactStore
	conv  converter
	logg  *logger.Logger

	group singleflight.Group
}

func NewService(repo repository, store artifactStore, conv converter, logg *logger.Logger) *Service {
	return &Service{repo: repo, store: store, conv: conv, logg: logg}
}

// Create persists the record and, when an upload is attached, materializes
// the file in a second phase. The file path embeds the record id, so the
// row must exist before the file has a home; a failure between the two
// phases leaves a fileless row for the orphan sweep to collect.
func (s *Service) Create(ctx context.Context, m *models.Media, upload *Upload) (*models.Media, error) {
	if m == nil {
		return nil, errors.New(errors.CodeValidation, "media record is required")
	}
	if !m.Kind.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown media kind %q", m.Kind))
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	if upload == nil {
		return m, nil
	}

	ctx = s.logg.WithMediaID(ctx, m.ID)
	rel := s.store.Path(m.Kind, m.ID, upload.FileName)
	if _, err := s.store.Write(ctx, rel, upload.Content); err != nil {
		s.logg.Error(ctx, "media upload write failed, row left for orphan sweep", err)
		return nil, errors.Wrap(errors.CodeInternal, err, "storing uploaded file")
	}

	m.FilePath = rel
	s.probeDuration(ctx, m)
	s.deriveThumbnail(ctx, m)
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Update saves the record and runs the derived-data hooks.
func (s *Service) Update(ctx context.Context, m *models.Media) error {
	s.probeDuration(ctx, m)
	s.deriveThumbnail(ctx, m)
	return s.repo.Update(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Media, error) {
	return s.repo.FindByID(ctx, id)
}

// NormalizeToMP3 ensures the record has an mp3 playback variant, converting
// at most once per record at a time. A source that is already mp3 needs no
// variant.
func (s *Service) NormalizeToMP3(ctx context.Context, id uint) (*models.Media, error) {
	result, err, _ := s.group.Do(fmt.Sprintf("normalize:%d", id), func() (interface{}, error) {
		return s.normalize(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Media), nil
}

func (s *Service) normalize(ctx context.Context, id uint) (*models.Media, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.HasFile() {
		return nil, errors.New(errors.CodeValidation, "media record has no file")
	}
	if isMP3(m.PlaybackPath()) {
		return m, nil
	}

	rel := strings.TrimSuffix(m.FilePath, filepath.Ext(m.FilePath)) + ".mp3"
	if err := s.conv.ToMP3(ctx, s.store.Abs(m.FilePath), s.store.Abs(rel)); err != nil {
		return nil, err
	}

	m.MP3Path = &rel
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes the record and its artifacts. Artifact removal failures
// are logged and swallowed so filesystem state never blocks the delete.
func (s *Service) Delete(ctx context.Context, id uint) error {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if typed := errors.As(err); typed != nil && typed.Code() == errors.CodeNotFound {
			return nil
		}
		return err
	}
	_ = s.store.Remove(ctx, m)
	return s.repo.Delete(ctx, id)
}

// SweepOrphans removes fileless rows older than the retention window along
// with any artifacts that may have landed for them. Returns how many rows
// were removed.
func (s *Service) SweepOrphans(ctx context.Context, retention time.Duration) (int, error) {
	rows, err := s.repo.ListOrphansBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range rows {
		m := &rows[i]
		_ = s.store.Remove(ctx, m)
		if err := s.repo.Delete(ctx, m.ID); err != nil {
			s.logg.Error(s.logg.WithMediaID(ctx, m.ID), "orphan sweep could not delete row", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// probeDuration fills in DurationSeconds the first time a timed artifact is
// saved with a file. It never overwrites a known duration and never fails
// the surrounding save.
func (s *Service) probeDuration(ctx context.Context, m *models.Media) {
	if m == nil || !m.Kind.HasDuration() || m.DurationSeconds != nil || !m.HasFile() {
		return
	}
	if d := s.conv.Duration(ctx, s.store.Abs(m.FilePath)); d != nil {
		m.DurationSeconds = d
	}
}

// deriveThumbnail produces the compressed JPEG variant for image uploads.
// Like the duration probe it is advisory: a failed compression leaves the
// original as the only artifact and never fails the surrounding save.
func (s *Service) deriveThumbnail(ctx context.Context, m *models.Media) {
	if m == nil || m.Kind != enums.MediaKindImage || !m.HasFile() || m.ThumbnailPath != nil {
		return
	}
	rel := strings.TrimSuffix(m.FilePath, filepath.Ext(m.FilePath)) + "_compressed.jpg"
	if err := s.conv.CompressImage(ctx, s.store.Abs(m.FilePath), s.store.Abs(rel)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "path", m.FilePath), "image compression failed")
		return
	}
	m.ThumbnailPath = &rel
}

func isMP3(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}
