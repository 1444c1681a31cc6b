package posts

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/soundpost/soundpost-backend/internal/media"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

const maxHeadLength = 255

type repository interface {
	Create(ctx context.Context, p *models.Post) error
	Update(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id uint) (*models.Post, error)
	ListTopLevel(ctx context.Context) ([]models.Post, error)
	Delete(ctx context.Context, id uint) error
	DeleteWithReplies(ctx context.Context, id uint) error
}

type mediaService interface {
	Create(ctx context.Context, m *models.Media, upload *media.Upload) (*models.Media, error)
	Update(ctx context.Context, m *models.Media) error
	NormalizeToMP3(ctx context.Context, id uint) (*models.Media, error)
	Delete(ctx context.Context, id uint) error
}

type transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type artifactPaths interface {
	Abs(rel string) string
}

// Actor identifies the caller for the author-or-admin policy.
type Actor struct {
	UserID uint
	Admin  bool
}

func (a Actor) canMutate(p *models.Post) bool {
	return a.Admin || a.UserID == p.AuthorID
}

// MediaInput describes the media arriving with a post: either an inline
// upload or a reference to an object already uploaded through a presigned
// URL.
type MediaInput struct {
	Kind      enums.MediaKind
	FileName  string
	Content   io.Reader
	ObjectKey *string
	AltText   *string
}

// CreateInput carries everything needed to create a post.
type CreateInput struct {
	AuthorID uint
	Head     string
	Body     string
	ParentID *uint
	Media    *MediaInput
}

// UpdateInput carries the editable post fields; nil means unchanged.
type UpdateInput struct {
	Head *string
	Body *string
}

// Service owns the post lifecycle, including the media cascade and the
// transcription flow.
type Service struct {
	repo   repository
	medias mediaService
	trans  transcriber
	paths  artifactPaths
	logg   *logger.Logger

	group singleflight.Group
}

func NewService(repo repository, medias mediaService, trans transcriber, paths artifactPaths, logg *logger.Logger) *Service {
	return &Service{repo: repo, medias: medias, trans: trans, paths: paths, logg: logg}
}

// Create persists the post and, when an upload is attached, a media record
// sharing the post's id. If the media save fails the fresh post row is
// rolled back best-effort so no half-created pair is left visible.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Post, error) {
	head := strings.TrimSpace(input.Head)
	if head == "" {
		return nil, errors.New(errors.CodeValidation, "head is required")
	}
	if len(head) > maxHeadLength {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("head must be at most %d characters", maxHeadLength))
	}
	if input.ParentID != nil {
		if _, err := s.repo.FindByID(ctx, *input.ParentID); err != nil {
			if typed := errors.As(err); typed != nil && typed.Code() == errors.CodeNotFound {
				return nil, errors.New(errors.CodeValidation, "parent post not found")
			}
			return nil, err
		}
	}

	p := &models.Post{
		AuthorID: input.AuthorID,
		Head:     head,
		Body:     input.Body,
		ParentID: input.ParentID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	ctx = s.logg.WithPostID(ctx, p.ID)

	if input.Media != nil {
		// The media record takes the post's id so the pair shares one
		// identifier and the artifact path embeds it.
		m := &models.Media{
			ID:        p.ID,
			Kind:      input.Media.Kind,
			ObjectKey: input.Media.ObjectKey,
			AltText:   input.Media.AltText,
		}
		var upload *media.Upload
		if input.Media.Content != nil {
			upload = &media.Upload{FileName: input.Media.FileName, Content: input.Media.Content}
		}
		created, err := s.medias.Create(ctx, m, upload)
		if err != nil {
			if delErr := s.repo.Delete(ctx, p.ID); delErr != nil {
				s.logg.Error(ctx, "could not roll back post after media failure", delErr)
			}
			return nil, err
		}
		p.MediaID = &created.ID
		p.Media = created
		if err := s.repo.Update(ctx, p); err != nil {
			return nil, err
		}
	}

	return s.repo.FindByID(ctx, p.ID)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Post, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Post, error) {
	return s.repo.ListTopLevel(ctx)
}

// Update edits the post's text fields under the author-or-admin policy.
func (s *Service) Update(ctx context.Context, actor Actor, id uint, input UpdateInput) (*models.Post, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canMutate(p) {
		return nil, errors.New(errors.CodeForbidden, "only the author or an admin may edit this post")
	}

	if input.Head != nil {
		head := strings.TrimSpace(*input.Head)
		if head == "" {
			return nil, errors.New(errors.CodeValidation, "head is required")
		}
		if len(head) > maxHeadLength {
			return nil, errors.New(errors.CodeValidation, fmt.Sprintf("head must be at most %d characters", maxHeadLength))
		}
		p.Head = head
	}
	if input.Body != nil {
		p.Body = *input.Body
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// Delete removes the post, detaches its replies, and cascades to the
// owned media record. Artifact removal failures never block the delete.
func (s *Service) Delete(ctx context.Context, actor Actor, id uint) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canMutate(p) {
		return errors.New(errors.CodeForbidden, "only the author or an admin may delete this post")
	}

	ctx = s.logg.WithPostID(ctx, id)
	if err := s.repo.DeleteWithReplies(ctx, id); err != nil {
		return err
	}
	if p.MediaID != nil {
		if err := s.medias.Delete(ctx, *p.MediaID); err != nil {
			return err
		}
	}
	return nil
}

// Transcribe normalizes the post's media to mp3, sends it for
// transcription, and persists the transcript. At most one transcription
// runs per media record at a time.
func (s *Service) Transcribe(ctx context.Context, id uint) (*models.Post, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.MediaID == nil {
		return nil, errors.New(errors.CodeValidation, "no media file found for this post")
	}
	if s.trans == nil {
		return nil, errors.New(errors.CodeToolUnavailable, "transcription is not configured")
	}
	mediaID := *p.MediaID
	ctx = s.logg.WithFields(ctx, map[string]any{"post_id": id, "media_id": mediaID})

	_, err, _ = s.group.Do(fmt.Sprintf("transcribe:%d", mediaID), func() (interface{}, error) {
		m, err := s.medias.NormalizeToMP3(ctx, mediaID)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(filepath.Ext(m.PlaybackPath()), ".mp3") {
			return nil, errors.New(errors.CodeValidation, "media file is not mp3")
		}

		text, err := s.trans.Transcribe(ctx, s.paths.Abs(m.PlaybackPath()))
		if err != nil {
			return nil, err
		}

		m.Transcript = &text
		if err := s.medias.Update(ctx, m); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, id)
}
