// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"antar/internal/modules/chat"
	"antar/internal/modules/identity"
	"antar/internal/modules/order"
	"antar/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrAlreadyClaimed):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeIdentityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrAmbiguous):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type orderResponse struct {
	ID         string  `json:"order_id"`
	Kind       string  `json:"kind"`
	CustomerID string  `json:"customer_id"`
	DriverID   *string `json:"driver_id"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		Kind:       string(o.Kind),
		CustomerID: string(o.CustomerID),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
	if o.DriverID != nil {
		id := string(*o.DriverID)
		resp.DriverID = &id
	}
	return resp
}

type messageResponse struct {
	Seq       int64  `json:"seq"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

func toMessageResponse(m chat.Message) messageResponse {
	return messageResponse{
		Seq:       m.Seq,
		Sender:    string(m.Sender),
		Text:      m.Text,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// pathKind parses the :kind path parameter, writing the error response itself
// on failure.
func pathKind(c *gin.Context) (types.Kind, bool) {
	kind, err := types.ParseKind(c.Param("kind"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}
