// README: Base handler utilities (JSON helpers, error mapping, caller identity).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID ensures IDs are hex and at most 32 chars (matches the ID
// generator).
func isValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch err {
	case order.ErrBadRequest, order.ErrProposalInvalid:
		writeError(c, http.StatusBadRequest, err.Error())
	case order.ErrActorNotPermitted:
		writeError(c, http.StatusForbidden, err.Error())
	case order.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	case order.ErrInvalidTransition, order.ErrStaleWrite, order.ErrNoProposal:
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// caller maps the auth middleware's identity onto a state-machine actor.
// An account without a role claim is a customer.
func caller(c *gin.Context) order.Actor {
	role := order.Role(middleware.CallerRole(c))
	switch role {
	case order.RoleDriver, order.RoleAdmin:
	default:
		role = order.RoleCustomer
	}
	return order.Actor{ID: types.ID(middleware.CallerUID(c)), Role: role}
}
