package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soundpost/soundpost-backend/internal/uploads"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
)

type stubUploadsService struct {
	upload *uploads.PresignedUpload
	url    string
	err    error

	userID      uint
	fileName    string
	contentType string
	objectKey   string
}

func (s *stubUploadsService) PresignUpload(ctx context.Context, userID uint, fileName, contentType string) (*uploads.PresignedUpload, error) {
	s.userID = userID
	s.fileName = fileName
	s.contentType = contentType
	return s.upload, s.err
}

func (s *stubUploadsService) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	s.objectKey = objectKey
	return s.url, s.err
}

func TestPresignUpload(t *testing.T) {
	svc := &stubUploadsService{upload: &uploads.PresignedUpload{
		ObjectKey: "post/audio/2/track.mp3",
		URL:       "https://storage.example.com/signed",
		ExpiresIn: 5 * time.Minute,
	}}
	handler := PresignUpload(svc, testConfig(), testLogger())

	body := strings.NewReader(`{"file_name":"track.mp3","content_type":"audio/mpeg"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/presign", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.userID != 2 {
		t.Fatalf("expected anonymous user id 2, got %d", svc.userID)
	}
	if svc.fileName != "track.mp3" || svc.contentType != "audio/mpeg" {
		t.Fatalf("unexpected forwarding: %q %q", svc.fileName, svc.contentType)
	}

	var envelope struct {
		Data struct {
			ObjectKey string `json:"object_key"`
			URL       string `json:"url"`
			ExpiresIn int    `json:"expires_in_seconds"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ObjectKey != "post/audio/2/track.mp3" || envelope.Data.ExpiresIn != 300 {
		t.Fatalf("unexpected response: %+v", envelope.Data)
	}
}

func TestPresignUploadMissingFields(t *testing.T) {
	handler := PresignUpload(&stubUploadsService{}, testConfig(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/presign", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPresignUploadDisabled(t *testing.T) {
	handler := PresignUpload(nil, testConfig(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/presign", strings.NewReader(`{"file_name":"a","content_type":"b"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestPresignDownload(t *testing.T) {
	key := "post/audio/2/track.mp3"
	postsSvc := &stubPostsService{post: &models.Post{
		ID:    1,
		Head:  "clip",
		Media: &models.Media{ID: 1, Kind: enums.MediaKindAudio, ObjectKey: &key},
	}}
	svc := &stubUploadsService{url: "https://storage.example.com/read"}
	handler := PresignDownload(postsSvc, svc, testLogger())

	req := withPostID(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/presign/1", nil), "1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.objectKey != key {
		t.Fatalf("unexpected object key: %q", svc.objectKey)
	}
}

func TestPresignDownloadNoObject(t *testing.T) {
	postsSvc := &stubPostsService{post: &models.Post{ID: 1, Head: "bare"}}
	handler := PresignDownload(postsSvc, &stubUploadsService{}, testLogger())

	req := withPostID(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/presign/1", nil), "1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
