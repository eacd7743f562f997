package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"plutochat/internal/middleware"
	"plutochat/internal/services"
	"plutochat/internal/wire"
)

// RoomHandler bundles the room HTTP handlers.
type RoomHandler struct {
	RoomService    services.RoomService
	MessageService services.MessageService
}

// NewRoomHandler creates a new RoomHandler instance.
func NewRoomHandler(roomService services.RoomService, messageService services.MessageService) *RoomHandler {
	return &RoomHandler{RoomService: roomService, MessageService: messageService}
}

// RoomRequest is the body of create/join requests.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// MessageRequest is the body of the REST message-append endpoint.
type MessageRequest struct {
	Content string `json:"content"`
}

func (h *RoomHandler) decodeRoomRequest(w http.ResponseWriter, r *http.Request) (RoomRequest, bool) {
	var req RoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	defer r.Body.Close()
	if strings.TrimSpace(req.RoomID) == "" {
		writeJSONError(w, "roomId is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// CreateOrJoinRoomHandler creates the room if needed and joins it.
func (h *RoomHandler) CreateOrJoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRoomRequest(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	room, err := h.RoomService.CreateOrJoin(r.Context(), req.RoomID, userID)
	if err != nil {
		writeJSONError(w, "could not create or join room", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, room)
}

// CreateRoomHandler creates a new room; fails if the name is taken.
func (h *RoomHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRoomRequest(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	room, err := h.RoomService.CreateRoom(r.Context(), req.RoomID, userID)
	if err != nil {
		if errors.Is(err, services.ErrRoomExists) {
			writeJSONError(w, "Room name already exists. Please choose a different name.", http.StatusConflict)
			return
		}
		writeJSONError(w, "could not create room", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, room)
}

// JoinRoomHandler joins an existing room; fails if it does not exist.
func (h *RoomHandler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRoomRequest(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	room, err := h.RoomService.JoinRoom(r.Context(), req.RoomID, userID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, "Room not found. Please check the room code.", http.StatusNotFound)
			return
		}
		writeJSONError(w, "could not join room", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, room)
}

// GetRoomHandler returns the room snapshot: members plus the full ordered
// message history.
func (h *RoomHandler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	snapshot, err := h.RoomService.Snapshot(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "could not load room", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, snapshot)
}

// GetUserRoomsHandler lists the rooms the caller has joined.
func (h *RoomHandler) GetUserRoomsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	rooms, err := h.RoomService.RoomsForUser(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "could not list rooms", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, rooms)
}

// AddMessageHandler appends a text message to a room over REST. The message
// goes through the same broker pipeline as websocket publishes, so it also
// reaches live subscribers.
func (h *RoomHandler) AddMessageHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	username, _ := middleware.GetUsernameFromContext(r.Context())

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeJSONError(w, "content is required", http.StatusBadRequest)
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

	msg := wire.Message{
		Sender:  username,
		Content: content,
		Type:    wire.TextMessage,
	}
	if err := h.MessageService.Publish(r.Context(), room.Slug, msg); err != nil {
		writeJSONError(w, "could not publish message", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
