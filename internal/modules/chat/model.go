// README: Chat message model and chat error taxonomy.
package chat

import (
	"errors"
	"time"

	"antar/internal/types"
)

// Message is one chat line within an order's conversation. Seq is assigned
// by the store on insert, is monotonically increasing per order, and is the
// sole dedup and ordering key. Messages are immutable once stored.
type Message struct {
	Seq       int64
	Kind      types.Kind
	OrderID   string
	Sender    types.Role
	Text      string
	CreatedAt time.Time
}

var (
	ErrClosed      = errors.New("chat channel closed")
	ErrUnavailable = errors.New("chat store unavailable")
	ErrBadRequest  = errors.New("bad request")
)

// Topic derives the realtime topic for an order's conversation. The feed
// filters events to exactly this conversation.
func Topic(kind types.Kind, orderID string) string {
	return "chat:" + string(kind) + ":" + orderID
}
