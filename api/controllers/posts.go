package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soundpost/soundpost-backend/api/middleware"
	"github.com/soundpost/soundpost-backend/api/responses"
	"github.com/soundpost/soundpost-backend/api/validators"
	"github.com/soundpost/soundpost-backend/internal/posts"
	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
	pkgerrors "github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

const mediaFormField = "media"

// PostsService is the surface the post controllers depend on.
type PostsService interface {
	Create(ctx context.Context, input posts.CreateInput) (*models.Post, error)
	Get(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	Update(ctx context.Context, actor posts.Actor, id uint, input posts.UpdateInput) (*models.Post, error)
	Delete(ctx context.Context, actor posts.Actor, id uint) error
	Transcribe(ctx context.Context, id uint) (*models.Post, error)
}

type mediaResponse struct {
	ID              uint      `json:"id"`
	Kind            string    `json:"kind"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	Transcript      *string   `json:"transcript,omitempty"`
	AltText         *string   `json:"alt_text,omitempty"`
	HasFile         bool      `json:"has_file"`
	StreamPath      string    `json:"stream_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type postResponse struct {
	ID        uint           `json:"id"`
	AuthorID  uint           `json:"author_id"`
	Head      string         `json:"head"`
	Body      string         `json:"body,omitempty"`
	ParentID  *uint          `json:"parent_id,omitempty"`
	Media     *mediaResponse `json:"media,omitempty"`
	Replies   []postResponse `json:"replies,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toMediaResponse(postID uint, m *models.Media) *mediaResponse {
	if m == nil {
		return nil
	}
	resp := &mediaResponse{
		ID:              m.ID,
		Kind:            m.Kind.String(),
		DurationSeconds: m.DurationSeconds,
		Transcript:      m.Transcript,
		AltText:         m.AltText,
		HasFile:         m.HasFile(),
		CreatedAt:       m.CreatedAt,
	}
	if m.HasFile() {
		resp.StreamPath = "/api/v1/posts/" + strconv.FormatUint(uint64(postID), 10) + "/media"
	}
	return resp
}

func toPostResponse(p *models.Post) postResponse {
	resp := postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Head:      p.Head,
		Body:      p.Body,
		ParentID:  p.ParentID,
		Media:     toMediaResponse(p.ID, p.Media),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	for i := range p.Replies {
		resp.Replies = append(resp.Replies, toPostResponse(&p.Replies[i]))
	}
	return resp
}

func actorFromRequest(r *http.Request, cfg *config.Config) posts.Actor {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		userID = cfg.Media.AnonymousUserID
	}
	return posts.Actor{UserID: userID, Admin: middleware.IsAdminFromContext(r.Context())}
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name)
	}
	return uint(id), nil
}

type createPostRequest struct {
	Head      string `json:"head" validate:"required,max=255"`
	Body      string `json:"body"`
	ParentID  *uint  `json:"parent_id"`
	Kind      string `json:"kind" validate:"omitempty,oneof=audio video image"`
	ObjectKey string `json:"object_key"`
	AltText   string `json:"alt_text"`
}

// mediaInputFromRequest builds the media input for an object-store backed
// post, where the bytes were already uploaded through a presigned URL and
// the post only carries the key.
func mediaInputFromRequest(req createPostRequest) (*posts.MediaInput, error) {
	if req.ObjectKey == "" {
		return nil, nil
	}
	kind, err := enums.ParseMediaKind(req.Kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid media kind")
	}
	key := req.ObjectKey
	input := &posts.MediaInput{Kind: kind, ObjectKey: &key}
	if req.AltText != "" {
		alt := req.AltText
		input.AltText = &alt
	}
	return input, nil
}

// CreatePost accepts either a JSON body (no media) or a multipart form
// carrying a media file alongside the post fields.
func CreatePost(svc PostsService, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		actor := actorFromRequest(r, cfg)
		input := posts.CreateInput{AuthorID: actor.UserID}

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.Media.MaxUploadBytes())
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
				return
			}

			form := createPostRequest{Head: r.FormValue("head"), Body: r.FormValue("body")}
			if err := validators.ValidateStruct(&form); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Head = form.Head
			input.Body = form.Body
			if raw := r.FormValue("parent_id"); raw != "" {
				parentID, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid parent_id"))
					return
				}
				id := uint(parentID)
				input.ParentID = &id
			}

			file, header, err := r.FormFile(mediaFormField)
			if err == nil {
				defer file.Close()
				kind, kindErr := enums.ParseMediaKind(r.FormValue("kind"))
				if kindErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, kindErr, "invalid media kind"))
					return
				}
				media := &posts.MediaInput{
					Kind:     kind,
					FileName: header.Filename,
					Content:  file,
				}
				if alt := r.FormValue("alt_text"); alt != "" {
					media.AltText = &alt
				}
				input.Media = media
			} else if err != http.ErrMissingFile {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid media upload"))
				return
			}

			if key := r.FormValue("object_key"); key != "" {
				if input.Media == nil {
					kind, kindErr := enums.ParseMediaKind(r.FormValue("kind"))
					if kindErr != nil {
						responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, kindErr, "invalid media kind"))
						return
					}
					input.Media = &posts.MediaInput{Kind: kind}
					if alt := r.FormValue("alt_text"); alt != "" {
						input.Media.AltText = &alt
					}
				}
				input.Media.ObjectKey = &key
			}
		} else {
			var req createPostRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Head = req.Head
			input.Body = req.Body
			input.ParentID = req.ParentID

			mediaInput, err := mediaInputFromRequest(req)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Media = mediaInput
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPostResponse(created))
	}
}

func ListPosts(svc PostsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]postResponse, 0, len(rows))
		for i := range rows {
			out = append(out, toPostResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func GetPost(svc PostsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		id, err := pathID(r, "postID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPostResponse(p))
	}
}

type updatePostRequest struct {
	Head *string `json:"head" validate:"omitempty,min=1,max=255"`
	Body *string `json:"body"`
}

func UpdatePost(svc PostsService, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		id, err := pathID(r, "postID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updatePostRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), actorFromRequest(r, cfg), id, posts.UpdateInput{
			Head: req.Head,
			Body: req.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPostResponse(updated))
	}
}

func DeletePost(svc PostsService, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		id, err := pathID(r, "postID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actorFromRequest(r, cfg), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// TranscribePost runs the normalize-then-transcribe flow for the post's
// media and returns the updated post.
func TranscribePost(svc PostsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		id, err := pathID(r, "postID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Transcribe(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPostResponse(updated))
	}
}
