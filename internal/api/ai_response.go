package api

import (
	"fmt"
	"io"

	"support-assistant/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// sseDoneEvent terminates every successfully completed stream. It is a
// protocol sentinel, never literal model output.
const sseDoneEvent = "data: [DONE]\n\n"

// AIResponseHandler streams generated support replies over
// server-sent events.
type AIResponseHandler struct {
	streams *service.StreamService
}

func NewAIResponseHandler(streams *service.StreamService) *AIResponseHandler {
	return &AIResponseHandler{streams: streams}
}

// Stream serves one AI response as an SSE stream. Authorization and
// not-found failures surface as normal JSON errors before any stream
// bytes are written; once streaming starts, failures are reported as
// an SSE error event and the done sentinel is withheld.
func (h *AIResponseHandler) Stream(c *gin.Context) {
	user, ticketID, ok := callerAndTicketID(c)
	if !ok {
		return
	}

	stream, err := h.streams.StreamResponse(c.Request.Context(), user, ticketID)
	if err != nil {
		c.Error(mapTicketError(err))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()

	// Disconnects cancel the request context, which the producer
	// watches, so draining the channel is the whole write loop.
	for event := range stream.Events {
		switch event.Type {
		case service.EventFragment:
			fmt.Fprintf(c.Writer, "data: %s\n\n", event.Data)
		case service.EventInfo:
			// Fixed rejection payloads are written as-is, without the
			// done sentinel.
			io.WriteString(c.Writer, event.Data)
		case service.EventDone:
			io.WriteString(c.Writer, sseDoneEvent)
		case service.EventError:
			fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", event.Data)
		}
		c.Writer.Flush()
	}
}
