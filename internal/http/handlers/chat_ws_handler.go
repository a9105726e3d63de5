// README: WebSocket bridge onto a chat channel: history, live updates, sends.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"antar/internal/http/middleware"
	"antar/internal/modules/chat"
	"antar/internal/types"
)

type ChatWSHandler struct {
	chat *chat.Service
	log  zerolog.Logger
}

func NewChatWSHandler(svc *chat.Service, log zerolog.Logger) *ChatWSHandler {
	return &ChatWSHandler{chat: svc, log: log.With().Str("component", "chat_ws").Logger()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsInbound struct {
	Text string `json:"text"`
}

// Stream upgrades the request and bridges the socket onto a channel: the full
// history is written first, live updates follow, and inbound frames become
// sends. The socket sees each message exactly once regardless of how it
// travelled, since the channel dedups before Updates.
func (h *ChatWSHandler) Stream(c *gin.Context) {
	role, err := types.ParseRole(c.Query("as"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if middleware.CallerRole(c) != string(role) {
		writeError(c, http.StatusForbidden, "role does not match caller")
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

	// Open before upgrading so failures still map to plain HTTP statuses.
	ch, err := h.chat.Open(c.Request.Context(), kind, id)
	if err != nil {
		writeChatError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ch.Close()
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Single writer goroutine. The history snapshot and the updates buffer
	// can overlap (a message applied while the socket was being set up sits
	// in both), and a notification can be dropped on a slow consumer, so the
	// socket is driven off the transcript itself: on every wake-up, write
	// whatever History holds beyond the highest seq already sent.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		var lastSeq int64
		writeNewer := func() error {
			for _, m := range ch.History() {
				if m.Seq <= lastSeq {
					continue
				}
				if err := conn.WriteJSON(toMessageResponse(m)); err != nil {
					return err
				}
				lastSeq = m.Seq
			}
			return nil
		}
		if err := writeNewer(); err != nil {
			return
		}
		for range ch.Updates() {
			if err := writeNewer(); err != nil {
				return
			}
		}
	}()
	defer func() {
		ch.Close()
		<-writerDone
	}()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Text == "" {
			continue
		}
		if err := ch.Send(c.Request.Context(), role, in.Text); err != nil {
			h.log.Warn().Err(err).
				Str("kind", string(kind)).Str("order_id", id).
				Msg("websocket send failed")
		}
	}
}
