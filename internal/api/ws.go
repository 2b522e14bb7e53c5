package api

import (
	"context"
	"net/http"
	"time"

	"support-assistant/backend/internal/service"
	"support-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// wsWriteWait bounds how long a single frame write may take
	wsWriteWait = 10 * time.Second
	// wsCloseWait bounds the closing handshake
	wsCloseWait = time.Second
)

// socketEvent is the JSON frame sent for each stream event.
type socketEvent struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// AIResponseSocketHandler streams generated support replies over a
// WebSocket connection, as an alternative to the SSE transport for
// clients behind proxies that buffer event streams.
type AIResponseSocketHandler struct {
	streams  *service.StreamService
	upgrader websocket.Upgrader
}

func NewAIResponseSocketHandler(streams *service.StreamService) *AIResponseSocketHandler {
	return &AIResponseSocketHandler{
		streams: streams,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Bearer auth already gates this endpoint
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream serves one AI response over a WebSocket. Authorization and
// not-found failures are reported as JSON before the upgrade; after
// the upgrade each stream event becomes one JSON text frame.
func (h *AIResponseSocketHandler) Stream(c *gin.Context) {
	user, ticketID, ok := callerAndTicketID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream, err := h.streams.StreamResponse(ctx, user, ticketID)
	if err != nil {
		c.Error(mapTicketError(err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromContext(c).LogError(err, "websocket upgrade failed", "ticketID", ticketID)
		return
	}
	defer conn.Close()

	// The client sends nothing; the read loop only detects disconnects
	// so the producer can be stopped early.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range stream.Events {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

		var frame socketEvent
		switch event.Type {
		case service.EventFragment:
			frame = socketEvent{Type: "fragment", Data: event.Data}
		case service.EventInfo:
			frame = socketEvent{Type: "info", Data: event.Data}
		case service.EventDone:
			frame = socketEvent{Type: "done"}
		case service.EventError:
			frame = socketEvent{Type: "error", Data: event.Data}
		}

		if err := conn.WriteJSON(frame); err != nil {
			cancel()
			return
		}
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsCloseWait),
	)
}
