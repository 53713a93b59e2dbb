// README: SSE stream of synchronized order views for observing clients.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/tracking"
	"courier/internal/types"
)

type StreamHandler struct {
	sync *tracking.Synchronizer
}

func NewStreamHandler(sync *tracking.Synchronizer) *StreamHandler {
	return &StreamHandler{sync: sync}
}

type streamEvent struct {
	DisplayStatus    string    `json:"display_status"`
	RemainingSeconds *int      `json:"remaining_seconds"`
	DriverID         string    `json:"driver_id,omitempty"`
	Fee              moneyView `json:"fee"`
	Negotiation      *negEvent `json:"negotiation,omitempty"`
}

type negEvent struct {
	Status           string     `json:"status"`
	DriverProposed   *moneyView `json:"driver_proposed,omitempty"`
	CustomerProposed *moneyView `json:"customer_proposed,omitempty"`
	Negotiated       *moneyView `json:"negotiated,omitempty"`
}

func streamEventOf(v tracking.View) streamEvent {
	e := streamEvent{
		DisplayStatus:    v.DisplayStatus,
		RemainingSeconds: v.RemainingSeconds,
		Fee:              moneyViewOf(v.Fee),
	}
	if v.DriverID != nil {
		e.DriverID = string(*v.DriverID)
	}
	if v.Negotiation.Status != "" {
		n := &negEvent{Status: string(v.Negotiation.Status)}
		if v.Negotiation.DriverProposed != nil {
			m := moneyViewOf(*v.Negotiation.DriverProposed)
			n.DriverProposed = &m
		}
		if v.Negotiation.CustomerProposed != nil {
			m := moneyViewOf(*v.Negotiation.CustomerProposed)
			n.CustomerProposed = &m
		}
		if v.Negotiation.Negotiated != nil {
			m := moneyViewOf(*v.Negotiation.Negotiated)
			n.Negotiated = &m
		}
		e.Negotiation = n
	}
	return e
}

// Stream observes one order and emits its view as server-sent events until
// the search or order reaches a terminal state, or the client disconnects.
// Disconnecting cancels the request context, which tears the synchronizer
// instance down with it.
func (h *StreamHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	views, cancel := h.sync.Observe(c.Request.Context(), types.ID(id))
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		v, ok := <-views
		if !ok {
			return false
		}
		c.SSEvent("order", streamEventOf(v))
		return true
	})
}
