package hertzws

import (
	"context"
	"errors"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"

	"tvcontrol/internal/protocol"
	"tvcontrol/internal/rooms"
)

const readTimeout = 60 * time.Second

// Handler WebSocket处理器
type Handler struct {
	manager  *rooms.Manager
	upgrader websocket.HertzUpgrader
}

// NewHandler 创建新的WebSocket处理器
func NewHandler(manager *rooms.Manager) *Handler {
	return &Handler{
		manager: manager,
		upgrader: websocket.HertzUpgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(ctx *app.RequestContext) bool {
				return true
			},
		},
	}
}

// HandleWebSocket 处理频道订阅连接
func (h *Handler) HandleWebSocket(c context.Context, ctx *app.RequestContext) {
	topic := ctx.Param("topic")
	role := protocol.Role(ctx.Query("role"))

	if !role.Valid() {
		ctx.String(consts.StatusBadRequest, rooms.ErrInvalidRole.Error())
		return
	}
	if !rooms.ValidTopic(topic) {
		ctx.String(consts.StatusBadRequest, rooms.ErrInvalidTopic.Error())
		return
	}

	err := h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		room, participant, err := h.manager.Join(c, topic, role)
		if err != nil {
			_ = conn.Close()
			return
		}

		// 绑定连接并启动发送循环
		participant.BindConnection(conn)
		go participant.SendLoop()
		room.Announce(participant)

		h.readLoop(c, room, participant, conn)
		h.manager.Leave(c, room, participant.ID)
	})
	if err != nil {
		ilog.EventInfo(c, "ws_upgrade_failed", "topic", topic, "error", err)
	}
}

// readLoop 读取WebSocket消息循环
func (h *Handler) readLoop(c context.Context, room *rooms.Room, participant *rooms.Participant, conn *websocket.Conn) {
	defer participant.Close()

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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				ilog.EventInfo(c, "ws_read_error", "topic", room.ID(), "member", participant.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		// 只处理文本消息
		if msgType != websocket.TextMessage {
			continue
		}
		room.HandleFrame(c, participant, data)
	}
}
