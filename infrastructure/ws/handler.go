// Package ws serves the push channel: one WebSocket per client, server to client only.
package ws

import (
	"comms-lab/contract"
	"comms-lab/domain"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const Path = "/ws/comms/"

type Authenticator interface {
	Authenticate(r *http.Request) (domain.Actor, error)
}

type Handler struct {
	log                  *slog.Logger
	auth                 Authenticator
	registry             contract.IRegistry
	upgrader             websocket.Upgrader
	connectionBufferSize int
}

func NewHandler(log *slog.Logger, auth Authenticator, registry contract.IRegistry,
	origins OriginChecker, connectionBufferSize int) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		connectionBufferSize: connectionBufferSize,
	}
}

// ServeHTTP authenticates before upgrading: a rejected request leaves no trace in the registry.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.Authenticate(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied
		h.log.Debug("Websocket upgrade failed", "user_id", actor.ID, "error", err)
		return
	}

	client := NewClient(h.log, actor.ID, conn, h.connectionBufferSize)
	if err := h.registry.Register(actor.ID, client); err != nil {
		h.log.Error("Unable to register connection", "user_id", actor.ID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registration failed"),
			time.Now().Add(writeWait))
		client.Close()
		return
	}
	defer h.registry.Unregister(actor.ID, client)

	go client.writePump()
	client.readPump()
}
