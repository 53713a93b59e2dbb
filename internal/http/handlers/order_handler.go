// README: Order handlers: create, get, cancel, restart search, negotiate.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/order"
	"courier/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type stopReq struct {
	Address     string   `json:"address"`
	Description string   `json:"description"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Items       []string `json:"items"`
	ImageRefs   []string `json:"image_refs"`
}

type createOrderReq struct {
	Lat   float64   `json:"lat"`
	Lng   float64   `json:"lng"`
	Stops []stopReq `json:"stops"`
}

type moneyView struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type orderView struct {
	OrderID           string     `json:"order_id"`
	Status            string     `json:"status"`
	SearchStatus      string     `json:"search_status,omitempty"`
	SearchExpiresAt   *time.Time `json:"search_expires_at,omitempty"`
	DriverID          string     `json:"driver_id,omitempty"`
	NegotiationStatus string     `json:"negotiation_status,omitempty"`
	DriverProposed    *moneyView `json:"driver_proposed_price,omitempty"`
	CustomerProposed  *moneyView `json:"customer_proposed_price,omitempty"`
	Fee               moneyView  `json:"fee"`
}

func viewOf(o *order.Order) orderView {
	v := orderView{
		OrderID:           string(o.ID),
		Status:            string(o.Status),
		SearchStatus:      string(o.SearchStatus),
		SearchExpiresAt:   o.SearchExpiresAt,
		NegotiationStatus: string(o.NegotiationStatus),
		Fee:               moneyViewOf(o.BillableFee()),
	}
	if o.DriverID != nil {
		v.DriverID = string(*o.DriverID)
	}
	if o.DriverProposedPrice != nil {
		m := moneyViewOf(*o.DriverProposedPrice)
		v.DriverProposed = &m
	}
	if o.CustomerProposedPrice != nil {
		m := moneyViewOf(*o.CustomerProposedPrice)
		v.CustomerProposed = &m
	}
	return v
}

func moneyViewOf(m types.Money) moneyView {
	return moneyView{Amount: m.Amount, Currency: m.Currency}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Stops) == 0 {
		writeError(c, http.StatusBadRequest, "at least one stop is required")
		return
	}
	stops := make([]order.Stop, len(req.Stops))
	for i, s := range req.Stops {
		stops[i] = order.Stop{
			Address:     s.Address,
			Description: s.Description,
			Position:    types.Point{Lat: s.Lat, Lng: s.Lng},
			Items:       s.Items,
			ImageRefs:   s.ImageRefs,
		}
	}
	id, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:  caller(c).ID,
		CustomerPos: types.Point{Lat: req.Lat, Lng: req.Lng},
		Stops:       stops,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusPending})
}

func (h *OrderHandler) Get(c *gin.Context) {
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
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(id),
		Actor:   caller(c),
		Reason:  "user_cancel",
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}

func (h *OrderHandler) RestartSearch(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	err := h.order.RestartSearch(c.Request.Context(), order.RestartSearchCommand{
		OrderID:    types.ID(id),
		CustomerID: caller(c).ID,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"search_status": order.SearchSearching})
}

type proposeReq struct {
	Amount int64 `json:"amount"`
}

// Propose serves both parties: the role claim decides which side of the
// negotiation the amount lands on.
func (h *OrderHandler) Propose(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	var req proposeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.Propose(c.Request.Context(), order.ProposeCommand{
		OrderID: types.ID(id),
		Actor:   caller(c),
		Amount:  req.Amount,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) AcceptProposal(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	err := h.order.AcceptProposal(c.Request.Context(), order.AcceptProposalCommand{
		OrderID: types.ID(id),
		Actor:   caller(c),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"negotiation_status": order.NegotiationAccepted})
}
