package hertzapi

import (
	"context"
	"errors"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"tvcontrol/internal/hertzws"
	"tvcontrol/internal/protocol"
	"tvcontrol/internal/rooms"
)

// NewRouter 初始化Hertz路由
func NewRouter(h *server.Hertz, roomManager *rooms.Manager) *server.Hertz {
	wsHandler := hertzws.NewHandler(roomManager)

	// 注册中间件
	h.Use(recoveryMiddleware())
	h.Use(loggerMiddleware())

	// 健康检查接口
	h.GET("/healthz", func(c context.Context, ctx *app.RequestContext) {
		ctx.String(consts.StatusOK, "ok")
	})

	api := h.Group("/api")
	{
		api.GET("/channels", handleListChannels(roomManager))
		api.GET("/channels/:topic", handleGetPresence(roomManager))
	}

	// 频道订阅
	h.GET("/ws/channels/:topic", wsHandler.HandleWebSocket)

	return h
}

// recoveryMiddleware 恢复中间件
func recoveryMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				ilog.EventInfo(c, "handler_panic", "path", string(ctx.Path()), "error", err)
				ctx.String(consts.StatusInternalServerError, "Internal Server Error")
			}
		}()
		ctx.Next(c)
	}
}

// loggerMiddleware 日志中间件
func loggerMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.Next(c)
		ilog.EventInfo(c, "http_request",
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"status", ctx.Response.StatusCode())
	}
}

// handleListChannels 列出活跃频道
func handleListChannels(roomManager *rooms.Manager) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, map[string]interface{}{
			"topics": roomManager.Topics(),
		})
	}
}

// handleGetPresence 获取频道在线状态
func handleGetPresence(roomManager *rooms.Manager) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		topic := ctx.Param("topic")
		presence, err := roomManager.Presence(topic)
		if err != nil {
			if errors.Is(err, rooms.ErrRoomNotFound) {
				respondError(ctx, consts.StatusNotFound, "channel_not_found", err.Error())
				return
			}
			respondError(ctx, consts.StatusInternalServerError, "presence_failed", err.Error())
			return
		}

		ctx.JSON(consts.StatusOK, protocol.PresenceSyncPayload{Presences: presence})
	}
}

// respondError 返回错误响应
func respondError(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, protocol.Envelope{
		Type:    protocol.TypeSystem,
		Event:   protocol.EventError,
		Payload: protocol.ErrorPayload{Code: code, Message: message},
	})
}
