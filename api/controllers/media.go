package controllers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/soundpost/soundpost-backend/api/responses"
	"github.com/soundpost/soundpost-backend/internal/httprange"
	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	pkgerrors "github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/metrics"
)

// ArtifactOpener is the filesystem surface the stream controllers need.
type ArtifactOpener interface {
	Open(rel string) (*os.File, os.FileInfo, error)
	Abs(rel string) string
}

func playbackFile(r *http.Request, svc PostsService, store ArtifactOpener) (*models.Media, *os.File, os.FileInfo, error) {
	id, err := pathID(r, "postID")
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := svc.Get(r.Context(), id)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Media == nil || !p.Media.HasFile() {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no media file found for this post")
	}

	f, fi, err := store.Open(p.Media.PlaybackPath())
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "no media file found for this post")
	}
	return p.Media, f, fi, nil
}

// fileETag derives a weak validator from size and mtime, which is enough
// to notice the artifact being replaced between requests.
func fileETag(fi os.FileInfo) string {
	return fmt.Sprintf("\"%x-%x\"", fi.ModTime().UnixNano(), fi.Size())
}

// StreamMedia serves the post's playback file with single-range
// partial-content support.
func StreamMedia(svc PostsService, store ArtifactOpener, cfg *config.Config, mm *metrics.MediaMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media streaming unavailable"))
			return
		}

		m, f, fi, err := playbackFile(r, svc, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer f.Close()

		res := httprange.Resource{
			ETag:         fileETag(fi),
			LastModified: fi.ModTime().UTC().Format(http.TimeFormat),
			Size:         fi.Size(),
		}
		plan := httprange.Resolve(r.Header.Get("Range"), r.Header.Get("If-Range"), res)
		mm.IncRangeRequest(string(plan.Kind))

		switch plan.Kind {
		case httprange.MultiRangeUnsupported:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "multiple byte ranges are not supported"))
			return
		case httprange.Unsatisfiable:
			w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(res.Size, 10))
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRangeNotSatisfied, "requested range not satisfiable"))
			return
		}

		contentType := detectMIME(store.Abs(m.PlaybackPath()))
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("ETag", res.ETag)
		w.Header().Set("Last-Modified", res.LastModified)

		buf := make([]byte, cfg.Media.StreamBufferBytes())
		if plan.Kind == httprange.PartialContent {
			w.Header().Set("Content-Range", plan.ContentRange())
			w.Header().Set("Content-Length", strconv.FormatInt(plan.Length(), 10))
			w.WriteHeader(http.StatusPartialContent)

			if _, err := f.Seek(plan.Start, io.SeekStart); err != nil {
				logg.Error(r.Context(), "seek failed mid-stream", err)
				return
			}
			n, err := io.CopyBuffer(w, io.LimitReader(f, plan.Length()), buf)
			mm.AddStreamedBytes(n)
			if err != nil {
				// Client disconnects surface here; nothing to send back.
				logg.Debug(logg.WithField(r.Context(), "written", n), "partial stream ended early")
			}
			return
		}

		w.Header().Set("Content-Length", strconv.FormatInt(res.Size, 10))
		w.WriteHeader(http.StatusOK)
		n, err := io.CopyBuffer(w, f, buf)
		mm.AddStreamedBytes(n)
		if err != nil {
			logg.Debug(logg.WithField(r.Context(), "written", n), "full stream ended early")
		}
	}
}

// MediaMimeType reports the playback file's MIME type as plain text,
// derived from content inspection rather than the file extension.
func MediaMimeType(svc PostsService, store ArtifactOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media streaming unavailable"))
			return
		}

		m, f, _, err := playbackFile(r, svc, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		f.Close()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(detectMIME(store.Abs(m.PlaybackPath()))))
	}
}

func detectMIME(absPath string) string {
	mtype, err := mimetype.DetectFile(absPath)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
