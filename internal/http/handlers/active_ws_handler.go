// README: WebSocket stream of active-order snapshots, backed by the watcher.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"antar/internal/modules/identity"
	"antar/internal/modules/order"
	"antar/internal/types"
)

type ActiveWSHandler struct {
	active   *order.Aggregator
	resolver *identity.Resolver
	interval time.Duration
	log      zerolog.Logger
}

func NewActiveWSHandler(active *order.Aggregator, resolver *identity.Resolver, interval time.Duration, log zerolog.Logger) *ActiveWSHandler {
	return &ActiveWSHandler{
		active:   active,
		resolver: resolver,
		interval: interval,
		log:      log.With().Str("component", "active_ws").Logger(),
	}
}

type wsRefresh struct {
	Action string `json:"action"`
}

// Stream pushes the account's merged active-order snapshot on the poll
// interval and whenever the client asks for a refresh. Snapshots are whole
// lists; the client replaces its view rather than patching it.
func (h *ActiveWSHandler) Stream(c *gin.Context) {
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

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The watcher must stop when this handler returns, not when the server
	// decides to cancel the hijacked request's context.
	ctx, cancel := context.WithCancel(c.Request.Context())
	w := h.active.Watch(ctx, accountID, role, h.interval)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for orders := range w.Orders() {
			out := make([]orderResponse, len(orders))
			for i := range orders {
				out[i] = toOrderResponse(&orders[i])
			}
			if err := conn.WriteJSON(gin.H{"orders": out}); err != nil {
				return
			}
		}
	}()
	defer func() {
		cancel()
		<-writerDone
	}()

	for {
		var in wsRefresh
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Action == "refresh" {
			w.Refresh()
		}
	}
}
