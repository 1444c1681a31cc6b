package controllers

import (
	"context"
	"net/http"

	"github.com/soundpost/soundpost-backend/api/middleware"
	"github.com/soundpost/soundpost-backend/api/responses"
	"github.com/soundpost/soundpost-backend/api/validators"
	"github.com/soundpost/soundpost-backend/internal/uploads"
	"github.com/soundpost/soundpost-backend/pkg/config"
	pkgerrors "github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

// UploadsService is the surface the presign controllers depend on.
type UploadsService interface {
	PresignUpload(ctx context.Context, userID uint, fileName, contentType string) (*uploads.PresignedUpload, error)
	PresignDownload(ctx context.Context, objectKey string) (string, error)
}

type presignRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
}

// PresignUpload hands the client a signed PUT URL for direct upload to
// object storage.
func PresignUpload(svc UploadsService, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		var req presignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == 0 {
			userID = cfg.Media.AnonymousUserID
		}

		out, err := svc.PresignUpload(r.Context(), userID, req.FileName, req.ContentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"object_key":         out.ObjectKey,
			"url":                out.URL,
			"expires_in_seconds": int(out.ExpiresIn.Seconds()),
		})
	}
}

// PresignDownload returns a signed GET URL for the post's uploaded object.
func PresignDownload(postsSvc PostsService, svc UploadsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || postsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		id, err := pathID(r, "postID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := postsSvc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if p.Media == nil || p.Media.ObjectKey == nil || *p.Media.ObjectKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no uploaded object for this post"))
			return
		}

		url, err := svc.PresignDownload(r.Context(), *p.Media.ObjectKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}
