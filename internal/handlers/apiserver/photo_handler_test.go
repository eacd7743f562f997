package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plutochat/internal/config"
	"plutochat/internal/middleware"
	"plutochat/internal/models"
	"plutochat/internal/services"
	"plutochat/internal/storage"
	"plutochat/internal/wire"
)

type stubRoomService struct {
	room *models.Room
	err  error
}

func (s *stubRoomService) CreateRoom(ctx context.Context, roomID string, userID uint) (*models.Room, error) {
	return s.room, s.err
}

func (s *stubRoomService) JoinRoom(ctx context.Context, roomID string, userID uint) (*models.Room, error) {
	return s.room, s.err
}

func (s *stubRoomService) CreateOrJoin(ctx context.Context, roomID string, userID uint) (*models.Room, error) {
	return s.room, s.err
}

func (s *stubRoomService) Get(ctx context.Context, roomID string) (*models.Room, error) {
	return s.room, s.err
}

func (s *stubRoomService) Snapshot(ctx context.Context, roomID string) (*wire.RoomSnapshot, error) {
	return nil, s.err
}

func (s *stubRoomService) RoomsForUser(ctx context.Context, userID uint) ([]*models.Room, error) {
	return nil, s.err
}

func (s *stubRoomService) AppendMessage(ctx context.Context, roomID string, msg wire.Message) (*models.Message, error) {
	return nil, s.err
}

type stubMessageService struct {
	mu        sync.Mutex
	published []wire.Message
	rooms     []string
	err       error
}

func (s *stubMessageService) Publish(ctx context.Context, room string, msg wire.Message) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, msg)
	s.rooms = append(s.rooms, room)
	return nil
}

func (s *stubMessageService) ProcessInbound(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	return nil
}

func multipartBody(t *testing.T, fieldName, fileName, mimeType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func newPhotoRequest(t *testing.T, roomID string, body *bytes.Buffer, contentType string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/"+roomID+"/photos", body)
	req.Header.Set("Content-Type", contentType)
	req = mux.SetURLVars(req, map[string]string{"roomID": roomID})
	ctx := context.WithValue(req.Context(), middleware.UsernameKey, "alice")
	return req.WithContext(ctx)
}

func newTestPhotoHandler(t *testing.T, roomSvc services.RoomService, msgSvc services.MessageService) *PhotoHandler {
	t.Helper()
	blobs, err := storage.NewLocalBlobStore(config.StorageConfig{Type: "local", LocalPath: t.TempDir()}, "/uploads")
	require.NoError(t, err)
	return NewPhotoHandler(roomSvc, msgSvc, blobs, config.StorageConfig{Type: "local", MaxFileSizeMB: 10})
}

func TestUploadPhotoPublishesImageMessage(t *testing.T) {
	room := &models.Room{RoomID: "Lobby", Slug: "lobby"}
	msgSvc := &stubMessageService{}
	h := newTestPhotoHandler(t, &stubRoomService{room: room}, msgSvc)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", []byte("pngbytes"))
	rec := httptest.NewRecorder()
	h.UploadPhotoHandler(rec, newPhotoRequest(t, "lobby", body, contentType))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["imageUrl"])
	assert.NotContains(t, resp, "message", "the chat message travels through the pipeline, not the response")

	require.Len(t, msgSvc.published, 1)
	msg := msgSvc.published[0]
	assert.Equal(t, "lobby", msgSvc.rooms[0])
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, wire.ImageMessage, msg.Type)
	assert.Equal(t, "📷 Photo", msg.Content)
	assert.Equal(t, "cat.png", msg.FileName)
	assert.NotEmpty(t, msg.MediaURL)
}

func TestUploadPhotoRoomNotFound(t *testing.T) {
	msgSvc := &stubMessageService{}
	h := newTestPhotoHandler(t, &stubRoomService{err: services.ErrRoomNotFound}, msgSvc)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", []byte("x"))
	rec := httptest.NewRecorder()
	h.UploadPhotoHandler(rec, newPhotoRequest(t, "ghost", body, contentType))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, msgSvc.published)
}

func TestUploadPhotoRejectsNonImage(t *testing.T) {
	room := &models.Room{RoomID: "lobby", Slug: "lobby"}
	msgSvc := &stubMessageService{}
	h := newTestPhotoHandler(t, &stubRoomService{room: room}, msgSvc)

	body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	rec := httptest.NewRecorder()
	h.UploadPhotoHandler(rec, newPhotoRequest(t, "lobby", body, contentType))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, msgSvc.published)
}

func TestUploadPhotoMissingFileField(t *testing.T) {
	room := &models.Room{RoomID: "lobby", Slug: "lobby"}
	h := newTestPhotoHandler(t, &stubRoomService{room: room}, &stubMessageService{})

	body, contentType := multipartBody(t, "wrongfield", "cat.png", "image/png", []byte("x"))
	rec := httptest.NewRecorder()
	h.UploadPhotoHandler(rec, newPhotoRequest(t, "lobby", body, contentType))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
