package wire

import (
	"context"
	"io"
)

// FileInfo describes a stored upload.
type FileInfo struct {
	URL      string `json:"url"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName"`
}

// BlobStore abstracts where uploaded photos end up ("local", later "s3").
type BlobStore interface {
	Save(ctx context.Context, reader io.Reader, size int64, fileName string, mimeType string) (*FileInfo, error)
}
