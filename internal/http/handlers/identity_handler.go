// README: Account resolution handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"antar/internal/modules/identity"
	"antar/internal/types"
)

type IdentityHandler struct {
	resolver *identity.Resolver
}

func NewIdentityHandler(resolver *identity.Resolver) *IdentityHandler {
	return &IdentityHandler{resolver: resolver}
}

type resolveReq struct {
	Key  string `json:"key"`
	Role string `json:"role"`
}

func (h *IdentityHandler) Resolve(c *gin.Context) {
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	role, err := types.ParseRole(req.Role)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		writeError(c, http.StatusBadRequest, "missing key")
		return
	}
	id, err := h.resolver.Resolve(c.Request.Context(), req.Key, role)
	if err != nil {
		writeIdentityError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"account_id": id})
}
