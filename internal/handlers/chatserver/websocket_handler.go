package chatserver

import (
	"context"
	"log"
	"net/http"
	"strings"

	"plutochat/internal/auth"
	"plutochat/internal/config"
	"plutochat/internal/services"
	appWS "plutochat/internal/websocket"
	"plutochat/internal/wire"
)

// WebSocketHandler authenticates upgrade requests and hands accepted
// connections to the hub.
type WebSocketHandler struct {
	hub            *appWS.Hub
	messageService services.MessageService
	cfg            config.Config
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *appWS.Hub, messageService services.MessageService, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageService: messageService,
		cfg:            cfg,
	}
}

// ServeWS handles websocket upgrade requests. The token travels in the
// `token` query parameter (browsers cannot set headers on websocket dials)
// or a standard Authorization header.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			tokenString = authHeader[len("Bearer "):]
		}
	}
	if tokenString == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), tokenString, h.cfg.Auth.JWTSecretKey, nil)
	if err != nil {
		log.Printf("websocket auth failed: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	publish := func(ctx context.Context, room string, msg wire.Message) error {
		return h.messageService.Publish(ctx, room, msg)
	}

	appWS.ServeConnection(h.hub, publish, claims.Username, w, r, h.cfg.WebSocket)
}
