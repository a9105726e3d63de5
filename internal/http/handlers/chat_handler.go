// README: Chat REST handlers: history read and one-shot send.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"antar/internal/http/middleware"
	"antar/internal/modules/chat"
	"antar/internal/types"
)

type ChatHandler struct {
	chat *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{chat: svc}
}

func (h *ChatHandler) History(c *gin.Context) {
	kind, ok := pathKind(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	msgs, err := h.chat.History(c.Request.Context(), kind, id)
	if err != nil {
		writeChatError(c, err)
		return
	}
	out := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessageResponse(m)
	}
	writeJSON(c, http.StatusOK, gin.H{"messages": out})
}

type sendReq struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func (h *ChatHandler) Send(c *gin.Context) {
	kind, ok := pathKind(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	sender, err := types.ParseRole(req.Sender)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if middleware.CallerRole(c) != string(sender) {
		writeError(c, http.StatusForbidden, "sender does not match caller role")
		return
	}

	m, err := h.chat.Send(c.Request.Context(), kind, id, sender, req.Text)
	if err != nil {
		writeChatError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toMessageResponse(*m))
}
