// README: Realtime feed over Redis pub/sub; at-most-once, no ordering guarantee.
package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"antar/internal/types"
)

// wireMessage is the JSON payload published on a conversation topic.
type wireMessage struct {
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	OrderID   string    `json:"order_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription is one live topic subscription. Events() closes when the
// subscription drops; the owner reconnects and resyncs.
type Subscription interface {
	Events() <-chan Message
	Close()
}

// Feed hands out topic subscriptions. Delivery is unreliable by contract:
// events may be dropped, duplicated, or overlap a concurrent bulk read.
// Consumers rely on seq-keyed dedup, never on the feed's guarantees.
type Feed interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

type RedisFeed struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisFeed(rdb *redis.Client, log zerolog.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, log: log.With().Str("component", "chat_feed").Logger()}
}

func (f *RedisFeed) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := f.rdb.Subscribe(ctx, topic)
	// Force the SUBSCRIBE round-trip so a dead broker fails here, not
	// silently in the receive loop.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, out: make(chan Message, 64)}
	go sub.pump(f.log, topic)
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan Message
}

func (s *redisSubscription) Events() <-chan Message { return s.out }

func (s *redisSubscription) Close() { _ = s.ps.Close() }

func (s *redisSubscription) pump(log zerolog.Logger, topic string) {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		var w wireMessage
		if err := json.Unmarshal([]byte(msg.Payload), &w); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("malformed feed payload dropped")
			continue
		}
		s.out <- Message{
			Seq:       w.Seq,
			Kind:      types.Kind(w.Kind),
			OrderID:   w.OrderID,
			Sender:    types.Role(w.Sender),
			Text:      w.Text,
			CreatedAt: w.CreatedAt,
		}
	}
}
