package apiserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"plutochat/internal/config"
	"plutochat/internal/middleware"
	"plutochat/internal/services"
	"plutochat/internal/wire"
)

const defaultMaxMemory = 32 << 20 // 32 MB max in-memory multipart parsing

// PhotoHandler handles photo uploads into rooms. The upload response never
// carries the chat message itself: the IMAGE message is published on the
// room topic and reaches the uploader the same way it reaches everyone else.
type PhotoHandler struct {
	RoomService    services.RoomService
	MessageService services.MessageService
	Blobs          wire.BlobStore
	cfg            config.StorageConfig
}

// NewPhotoHandler creates a new PhotoHandler instance.
func NewPhotoHandler(roomService services.RoomService, messageService services.MessageService, blobs wire.BlobStore, cfg config.StorageConfig) *PhotoHandler {
	return &PhotoHandler{
		RoomService:    roomService,
		MessageService: messageService,
		Blobs:          blobs,
		cfg:            cfg,
	}
}

// UploadPhotoHandler accepts a multipart photo upload for a room.
func (h *PhotoHandler) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	username, _ := middleware.GetUsernameFromContext(r.Context())

	maxUploadSize := h.cfg.MaxFileSizeMB << 20
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxMemory
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			msg := fmt.Sprintf("file too large, the limit is %d MB", maxUploadSize>>20)
			writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, fmt.Sprintf("parsing form: %v", err), http.StatusBadRequest)
		}
		return
	}

	room, err := h.RoomService.Get(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "could not load room", http.StatusInternalServerError)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			writeJSONError(w, "missing 'file' field", http.StatusBadRequest)
		} else {
			writeJSONError(w, fmt.Sprintf("reading file: %v", err), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	mimeType := handler.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		writeJSONError(w, "only image uploads are allowed", http.StatusUnsupportedMediaType)
		return
	}
	if handler.Size > maxUploadSize {
		msg := fmt.Sprintf("file too large, the limit is %d MB", maxUploadSize>>20)
		writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		return
	}

	fileInfo, err := h.Blobs.Save(r.Context(), file, handler.Size, handler.Filename, mimeType)
	if err != nil {
		writeJSONError(w, "storing file failed", http.StatusInternalServerError)
		return
	}

	msg := wire.Message{
		Sender:    username,
		Content:   "📷 Photo",
		MediaURL:  fileInfo.URL,
		Type:      wire.ImageMessage,
		Timestamp: time.Now(),
		FileName:  handler.Filename,
		FileSize:  handler.Size,
	}
	if err := h.MessageService.Publish(r.Context(), room.Slug, msg); err != nil {
		writeJSONError(w, "could not publish photo message", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"imageUrl": fileInfo.URL,
	})
}
