// README: Driver handlers: claim, status advance, availability, quick offers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/location"
	"courier/internal/modules/order"
	"courier/internal/modules/pricing"
	"courier/internal/types"
)

type DriverHandler struct {
	order    *order.Service
	location *location.Service
}

func NewDriverHandler(orderSvc *order.Service, locationSvc *location.Service) *DriverHandler {
	return &DriverHandler{order: orderSvc, location: locationSvc}
}

func requireDriver(c *gin.Context) (order.Actor, bool) {
	actor := caller(c)
	if actor.Role != order.RoleDriver && actor.Role != order.RoleAdmin {
		writeError(c, http.StatusForbidden, "driver role required")
		return order.Actor{}, false
	}
	return actor, true
}

// Claim races the calling driver for a pending order. A 409 means another
// driver won or the customer cancelled first.
func (h *DriverHandler) Claim(c *gin.Context) {
	actor, ok := requireDriver(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	err := h.order.Claim(c.Request.Context(), order.ClaimCommand{
		OrderID:  types.ID(id),
		DriverID: actor.ID,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusAccepted})
}

type advanceReq struct {
	Next string `json:"next"`
}

func (h *DriverHandler) Advance(c *gin.Context) {
	actor, ok := requireDriver(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	next := order.Status(req.Next)
	switch next {
	case order.StatusPickedUp, order.StatusInTransit, order.StatusCompleted:
	default:
		writeError(c, http.StatusBadRequest, "next must be picked_up, in_transit or completed")
		return
	}
	err := h.order.Advance(c.Request.Context(), order.AdvanceCommand{
		OrderID: types.ID(id),
		Next:    next,
		Actor:   actor,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": next})
}

type availabilityReq struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Available bool    `json:"available"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	actor, ok := requireDriver(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.location.SetAvailability(c.Request.Context(), location.AvailabilityUpdate{
		DriverID:  actor.ID,
		Position:  types.Point{Lat: req.Lat, Lng: req.Lng},
		Available: req.Available,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

type deviceTokenReq struct {
	Token string `json:"token"`
}

// RegisterDeviceToken stores the caller's FCM token. Open to any
// authenticated user, not just drivers.
func (h *DriverHandler) RegisterDeviceToken(c *gin.Context) {
	var req deviceTokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.location.RegisterDeviceToken(c.Request.Context(), caller(c).ID, req.Token); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

// QuickOffers returns the deterministic proposal shortcuts for the order's
// quoted fee, shown on the driver's proposal screen.
func (h *DriverHandler) QuickOffers(c *gin.Context) {
	if _, ok := requireDriver(c); !ok {
		return
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	offers := pricing.QuickOffers(o.TotalFee)
	out := make([]moneyView, 0, len(offers))
	for _, m := range offers {
		out = append(out, moneyViewOf(m))
	}
	writeJSON(c, http.StatusOK, gin.H{"base": moneyViewOf(o.TotalFee), "offers": out})
}
