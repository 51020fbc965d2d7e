package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tvcontrol/internal/protocol"
	"tvcontrol/internal/rooms"
	"tvcontrol/internal/ws"
)

// Server is the net/http flavour of the hub. It serves the same rooms as the
// hertz router and also exposes /metrics.
type Server struct {
	rooms  *rooms.Manager
	ws     *ws.Handler
	router *echo.Echo
}

func NewServer(manager *rooms.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	server := &Server{
		rooms:  manager,
		ws:     ws.NewHandler(manager),
		router: e,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/api/channels", server.handleListChannels)
	e.GET("/api/channels/:topic", server.handleGetPresence)
	e.GET("/ws/channels/:topic", server.handleWebSocket)

	return server
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleListChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"topics": s.rooms.Topics()})
}

func (s *Server) handleGetPresence(c echo.Context) error {
	topic := c.Param("topic")
	presence, err := s.rooms.Presence(topic)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return respondError(c, http.StatusNotFound, "channel_not_found", err.Error())
		}
		return respondError(c, http.StatusInternalServerError, "presence_failed", err.Error())
	}
	return c.JSON(http.StatusOK, protocol.PresenceSyncPayload{Presences: presence})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	// the websocket handler takes over the connection and parses the topic
	// from the path itself
	c.Request().URL.Path = "/ws/channels/" + c.Param("topic")
	s.ws.ServeHTTP(c.Response(), c.Request())
	return nil
}

func respondError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, protocol.Envelope{
		Type:    protocol.TypeSystem,
		Event:   protocol.EventError,
		Payload: protocol.ErrorPayload{Code: code, Message: message},
	})
}
