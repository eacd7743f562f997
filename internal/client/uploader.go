package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
)

// Uploader sends photos to a room out of band. The resulting IMAGE message
// is never returned here: it arrives through the live channel like any other
// message. The busy flag is reset on every exit path so the control it
// drives can never stay disabled.
type Uploader struct {
	client *Client
	busy   atomic.Bool
}

// NewUploader creates an Uploader on top of an existing REST client.
func NewUploader(client *Client) *Uploader {
	return &Uploader{client: client}
}

// Busy reports whether an upload is currently in flight.
func (u *Uploader) Busy() bool {
	return u.busy.Load()
}

// Upload performs a single blocking photo upload to the room. One attempt,
// no retry. Failures map to the client error taxonomy where the status code
// allows it.
func (u *Uploader) Upload(ctx context.Context, roomID, fileName, mimeType string, file io.Reader) error {
	if !u.busy.CompareAndSwap(false, true) {
		return ErrUploadInProgress
	}
	defer u.busy.Store(false)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing multipart form: %w", err)
	}

	path := "/api/v1/rooms/" + strings.ToLower(strings.TrimSpace(roomID)) + "/photos"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.client.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.client.token)
	}

	resp, err := u.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading photo: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrRoomNotFound
	case http.StatusRequestEntityTooLarge:
		return ErrFileTooLarge
	case http.StatusUnsupportedMediaType:
		return ErrUnsupportedFile
	default:
		return fmt.Errorf("uploading photo: unexpected status %d", resp.StatusCode)
	}
}
