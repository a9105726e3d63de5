// README: Order handlers: driver claim and the merged active-order list.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"antar/internal/http/middleware"
	"antar/internal/modules/identity"
	"antar/internal/modules/order"
	"antar/internal/types"
)

type OrderHandler struct {
	claims   *order.Service
	active   *order.Aggregator
	resolver *identity.Resolver
}

func NewOrderHandler(claims *order.Service, active *order.Aggregator, resolver *identity.Resolver) *OrderHandler {
	return &OrderHandler{claims: claims, active: active, resolver: resolver}
}

type claimReq struct {
	// Driver is either an account ID or the driver's human key; it is
	// resolved before the claim.
	Driver string `json:"driver"`
}

func (h *OrderHandler) Claim(c *gin.Context) {
	if middleware.CallerRole(c) != string(types.RoleDriver) {
		writeError(c, http.StatusForbidden, "driver role required")
		return
	}
	kind, ok := pathKind(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req claimReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Driver == "" {
		writeError(c, http.StatusBadRequest, "missing driver")
		return
	}

	driverID, err := h.resolver.Resolve(c.Request.Context(), req.Driver, types.RoleDriver)
	if err != nil {
		writeIdentityError(c, err)
		return
	}
	o, err := h.claims.Take(c.Request.Context(), kind, id, driverID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Active(c *gin.Context) {
	role, err := types.ParseRole(c.Query("role"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	account := c.Query("account")
	if account == "" {
		writeError(c, http.StatusBadRequest, "missing account")
		return
	}

	accountID, err := h.resolver.Resolve(c.Request.Context(), account, role)
	if err != nil {
		writeIdentityError(c, err)
		return
	}
	orders, err := h.active.Poll(c.Request.Context(), accountID, role)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}
