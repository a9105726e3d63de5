// README: Chat service; opens per-order channels with shared store, feed and tuning.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

type Service struct {
	store MessageStore
	feed  Feed
	opts  Options
	log   zerolog.Logger
}

func NewService(store MessageStore, feed Feed, opts Options, log zerolog.Logger) *Service {
	opts.withDefaults()
	return &Service{store: store, feed: feed, opts: opts, log: log}
}

// Open starts a channel for one order's conversation. The caller owns the
// returned channel and must Close it.
func (s *Service) Open(ctx context.Context, kind types.Kind, orderID string) (*Channel, error) {
	return Open(ctx, s.store, s.feed, kind, orderID, s.opts, s.log)
}

// History is the one-shot read used by the plain REST endpoint; no
// subscription is established.
func (s *Service) History(ctx context.Context, kind types.Kind, orderID string) ([]Message, error) {
	msgs, err := s.store.ListByOrder(ctx, kind, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return msgs, nil
}

// Send stores one message without keeping a channel open. Like channel
// sends, a transport failure is retried once before being surfaced.
func (s *Service) Send(ctx context.Context, kind types.Kind, orderID string, sender types.Role, text string) (*Message, error) {
	if _, err := types.ParseRole(string(sender)); err != nil {
		return nil, ErrBadRequest
	}
	if text == "" {
		return nil, ErrBadRequest
	}
	m, err := s.store.Insert(ctx, kind, orderID, sender, text)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("send failed; retrying once")
		select {
		case <-time.After(s.opts.SendRetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		if m, err = s.store.Insert(ctx, kind, orderID, sender, text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return m, nil
}
