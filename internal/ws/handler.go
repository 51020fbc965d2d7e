package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/gorilla/websocket"

	"tvcontrol/internal/protocol"
	"tvcontrol/internal/rooms"
)

const readTimeout = 60 * time.Second

type Handler struct {
	manager  *rooms.Manager
	upgrader websocket.Upgrader
}

func NewHandler(manager *rooms.Manager) *Handler {
	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic, err := extractTopic(r.URL.Path)
	if err != nil {
		ilog.EventInfo(ctx, "ws_invalid_path", "path", r.URL.Path)
		http.Error(w, "invalid channel path", http.StatusBadRequest)
		return
	}

	role := protocol.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		http.Error(w, rooms.ErrInvalidRole.Error(), http.StatusBadRequest)
		return
	}
	if !rooms.ValidTopic(topic) {
		http.Error(w, rooms.ErrInvalidTopic.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the failure response
		ilog.EventInfo(ctx, "ws_upgrade_failed", "topic", topic, "error", err)
		return
	}

	room, participant, err := h.manager.Join(context.Background(), topic, role)
	if err != nil {
		_ = conn.Close()
		return
	}

	participant.BindConnection(conn)
	go participant.SendLoop()
	room.Announce(participant)

	h.readLoop(room, participant, conn)
	h.manager.Leave(context.Background(), room, participant.ID)
}

func (h *Handler) readLoop(room *rooms.Room, participant *rooms.Participant, conn *websocket.Conn) {
	defer participant.Close()
	ctx := context.Background()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ilog.EventInfo(ctx, "ws_read_error", "topic", room.ID(), "member", participant.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		room.HandleFrame(ctx, participant, data)
	}
}

func extractTopic(path string) (string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "ws" || parts[1] != "channels" {
		return "", errors.New("invalid path")
	}
	return parts[2], nil
}
