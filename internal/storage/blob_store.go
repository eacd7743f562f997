package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"plutochat/internal/config"
	"plutochat/internal/wire"

	"github.com/google/uuid"
)

// LocalBlobStore implements wire.BlobStore on the local filesystem.
type LocalBlobStore struct {
	basePath string // root directory for stored files, e.g. "./uploads"
	baseURL  string // URL prefix files are served under, e.g. "/uploads"
}

// NewLocalBlobStore creates a filesystem-backed blob store, creating the
// storage directory if needed.
func NewLocalBlobStore(cfg config.StorageConfig, baseURL string) (wire.BlobStore, error) {
	if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory %q: %w", cfg.LocalPath, err)
	}
	return &LocalBlobStore{
		basePath: cfg.LocalPath,
		baseURL:  baseURL,
	}, nil
}

// Save writes the upload to disk under a uuid name, keeping the original
// extension (or inferring one from the MIME type).
func (s *LocalBlobStore) Save(ctx context.Context, reader io.Reader, size int64, fileName string, mimeType string) (*wire.FileInfo, error) {
	ext := filepath.Ext(fileName)
	if ext == "" {
		extensions, _ := mime.ExtensionsByType(mimeType)
		if len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	uniqueName := uuid.New().String() + ext
	dstPath := filepath.Join(s.basePath, uniqueName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("creating target file %q: %w", dstPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if size > 0 && written != size {
		os.Remove(dstPath)
		return nil, fmt.Errorf("file size mismatch: expected %d, wrote %d", size, written)
	}

	fileURL := strings.TrimSuffix(s.baseURL, "/") + "/" + url.PathEscape(uniqueName)

	return &wire.FileInfo{
		URL:      fileURL,
		Path:     dstPath,
		Size:     written,
		MimeType: mimeType,
		FileName: fileName,
	}, nil
}
