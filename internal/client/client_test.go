package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plutochat/internal/wire"
)

func TestFetchRoomSnapshot(t *testing.T) {
	snapshot := wire.RoomSnapshot{
		RoomID:  "lobby",
		Members: []string{"alice", "bob"},
		Online:  []string{"alice"},
		Messages: []wire.Message{
			{ID: "m1", Sender: "alice", Content: "hello", Type: wire.TextMessage, Timestamp: time.Now().UTC()},
		},
	}

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-abc")
	got, err := c.FetchRoom(context.Background(), "  LOBBY ")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/rooms/lobby", gotPath, "room ids are normalized to lowercase")
	assert.Equal(t, "Bearer tok-abc", gotAuth)
	assert.Equal(t, snapshot.Members, got.Members)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestFetchRoomNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"room not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.FetchRoom(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestFetchRoomServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.FetchRoom(context.Background(), "lobby")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRoomNotFound, "a server failure is not a missing room")
}

func TestFetchRoomTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "tok")
	_, err := c.FetchRoom(context.Background(), "lobby")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRoomNotFound)
}

func TestUploaderSendsMultipart(t *testing.T) {
	var gotPath string
	var gotFileName string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename
		buf, err := io.ReadAll(file)
		require.NoError(t, err)
		gotBody = buf
		json.NewEncoder(w).Encode(map[string]any{"success": true, "imageUrl": "/uploads/x.png"})
	}))
	defer srv.Close()

	u := NewUploader(NewClient(srv.URL, "tok"))
	err := u.Upload(context.Background(), "Lobby", "cat.png", "image/png", strings.NewReader("pngbytes"))
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/rooms/lobby/photos", gotPath)
	assert.Equal(t, "cat.png", gotFileName)
	assert.Equal(t, "pngbytes", string(gotBody))
	assert.False(t, u.Busy(), "busy flag is cleared after a successful upload")
}

func TestUploaderBusyFlagResetOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "room missing", status: http.StatusNotFound, wantErr: ErrRoomNotFound},
		{name: "file too large", status: http.StatusRequestEntityTooLarge, wantErr: ErrFileTooLarge},
		{name: "not an image", status: http.StatusUnsupportedMediaType, wantErr: ErrUnsupportedFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			u := NewUploader(NewClient(srv.URL, "tok"))
			err := u.Upload(context.Background(), "lobby", "cat.png", "image/png", strings.NewReader("x"))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, u.Busy(), "busy flag must be cleared on every failure path")
		})
	}
}

func TestUploaderBusyFlagResetOnTransportError(t *testing.T) {
	u := NewUploader(NewClient("http://127.0.0.1:1", "tok"))
	err := u.Upload(context.Background(), "lobby", "cat.png", "image/png", strings.NewReader("x"))
	require.Error(t, err)
	assert.False(t, u.Busy())
}

func TestUploaderRejectsConcurrentUpload(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	u := NewUploader(NewClient(srv.URL, "tok"))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- u.Upload(context.Background(), "lobby", "a.png", "image/png", strings.NewReader("x"))
	}()

	waitFor(t, 2*time.Second, func() bool { return u.Busy() })

	err := u.Upload(context.Background(), "lobby", "b.png", "image/png", strings.NewReader("y"))
	assert.ErrorIs(t, err, ErrUploadInProgress)

	close(release)
	require.NoError(t, <-firstDone)
	assert.False(t, u.Busy())
}
