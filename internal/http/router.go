// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/handlers"
	"courier/internal/http/middleware"
	"courier/internal/infra"
	"courier/internal/modules/location"
	"courier/internal/modules/order"
	"courier/internal/modules/tracking"
)

type ServerDeps struct {
	Order    *order.Service
	Location *location.Service
	Tracking *tracking.Synchronizer
	Verifier infra.TokenVerifier
}

// NewRouter wires the gin engine: health check open, everything else
// behind bearer-token auth.
func NewRouter(deps ServerDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/restart_search", orderHandler.RestartSearch)
	api.POST("/orders/:id/propose", orderHandler.Propose)
	api.POST("/orders/:id/accept_price", orderHandler.AcceptProposal)

	driverHandler := handlers.NewDriverHandler(deps.Order, deps.Location)
	api.POST("/orders/:id/claim", driverHandler.Claim)
	api.POST("/orders/:id/advance", driverHandler.Advance)
	api.GET("/orders/:id/quick_offers", driverHandler.QuickOffers)
	api.PUT("/drivers/availability", driverHandler.SetAvailability)
	api.PUT("/devices/token", driverHandler.RegisterDeviceToken)

	streamHandler := handlers.NewStreamHandler(deps.Tracking)
	api.GET("/orders/:id/stream", streamHandler.Stream)

	return r
}
