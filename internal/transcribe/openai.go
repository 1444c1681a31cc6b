package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/metrics"
)

// Client sends audio files to the OpenAI transcription endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logg       *logger.Logger
	metrics    *metrics.MediaMetrics
}

// NewClient builds a transcription client from the OpenAI configuration.
func NewClient(cfg config.OpenAIConfig, logg *logger.Logger, mm *metrics.MediaMetrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logg:       logg,
		metrics:    mm,
	}, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file and returns the recognized text. The
// source is first copied to a private temp file so the upload reads a
// stable snapshot even if the original is replaced mid-request; the copy
// is removed on every path out of this function.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	tmpPath, err := c.stage(audioPath)
	if err != nil {
		c.metrics.IncTranscription("error")
		return "", errors.Wrap(errors.CodeTranscription, err, "staging audio for transcription")
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			c.logg.Warn(c.logg.WithField(ctx, "path", tmpPath), "could not remove staged transcription file")
		}
	}()

	body, contentType, err := c.buildRequestBody(tmpPath, filepath.Base(audioPath))
	if err != nil {
		c.metrics.IncTranscription("error")
		return "", errors.Wrap(errors.CodeTranscription, err, "building transcription request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		c.metrics.IncTranscription("error")
		return "", errors.Wrap(errors.CodeTranscription, err, "building transcription request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncTranscription("error")
		return "", errors.Wrap(errors.CodeTranscription, err, "calling transcription service")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncTranscription("error")
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logg.Error(
			c.logg.WithFields(ctx, map[string]any{"status": resp.StatusCode, "body": string(detail)}),
			"transcription service rejected the request",
			nil,
		)
		return "", errors.New(errors.CodeTranscription, fmt.Sprintf("transcription service returned status %d", resp.StatusCode))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.metrics.IncTranscription("error")
		return "", errors.Wrap(errors.CodeTranscription, err, "decoding transcription response")
	}

	c.metrics.IncTranscription("success")
	return parsed.Text, nil
}

// stage copies the source into a temp file that keeps the original
// extension, which the transcription service uses to sniff the format.
func (c *Client) stage(audioPath string) (string, error) {
	src, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "transcribe-*"+filepath.Ext(audioPath))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (c *Client) buildRequestBody(stagedPath, fileName string) (io.Reader, string, error) {
	f, err := os.Open(stagedPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, "", err
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
