// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"antar/internal/http/handlers"
	"antar/internal/http/middleware"
	"antar/internal/infra"
	"antar/internal/modules/chat"
	"antar/internal/modules/identity"
	"antar/internal/modules/order"
)

type RouterDeps struct {
	Resolver     *identity.Resolver
	Claims       *order.Service
	Active       *order.Aggregator
	Chat         *chat.Service
	Verifier     infra.TokenVerifier
	PollInterval time.Duration
	Log          zerolog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	identityHandler := handlers.NewIdentityHandler(deps.Resolver)
	api.POST("/accounts/resolve", identityHandler.Resolve)

	orderHandler := handlers.NewOrderHandler(deps.Claims, deps.Active, deps.Resolver)
	api.POST("/orders/:kind/:id/claim", orderHandler.Claim)
	api.GET("/orders/active", orderHandler.Active)

	activeWS := handlers.NewActiveWSHandler(deps.Active, deps.Resolver, deps.PollInterval, deps.Log)
	api.GET("/orders/active/ws", activeWS.Stream)

	chatHandler := handlers.NewChatHandler(deps.Chat)
	api.GET("/orders/:kind/:id/chat", chatHandler.History)
	api.POST("/orders/:kind/:id/chat", chatHandler.Send)

	wsHandler := handlers.NewChatWSHandler(deps.Chat, deps.Log)
	api.GET("/orders/:kind/:id/chat/ws", wsHandler.Stream)

	return r
}
