// README: Active-order aggregator; merges the three kinds into one polled view.
package order

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

// ActiveLister is the store dependency of the aggregator.
type ActiveLister interface {
	ActiveByAccount(ctx context.Context, kind types.Kind, accountID types.AccountID, role types.Role) ([]Order, error)
}

type Aggregator struct {
	store ActiveLister
	log   zerolog.Logger
}

func NewAggregator(store ActiveLister, log zerolog.Logger) *Aggregator {
	return &Aggregator{store: store, log: log.With().Str("component", "active_orders").Logger()}
}

// Poll reads the account's active orders of every kind and merges them
// newest-first. It is a stateless read reflecting committed store state at
// call time; staleness up to one poll interval is acceptable to its callers.
func (a *Aggregator) Poll(ctx context.Context, accountID types.AccountID, role types.Role) ([]Order, error) {
	if accountID == "" {
		return nil, ErrBadRequest
	}

	merged := make([]Order, 0)
	for _, kind := range types.Kinds {
		orders, err := a.store.ActiveByAccount(ctx, kind, accountID, role)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s orders: %v", ErrUnavailable, kind, err)
		}
		merged = append(merged, orders...)
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

// Watcher re-derives one account's active-order snapshot on an interval and
// on demand. The dashboard drains Orders(); only the latest snapshot is
// retained when the consumer falls behind.
type Watcher struct {
	agg       *Aggregator
	accountID types.AccountID
	role      types.Role
	interval  time.Duration
	refresh   chan struct{}
	out       chan []Order
}

func (a *Aggregator) Watch(ctx context.Context, accountID types.AccountID, role types.Role, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	w := &Watcher{
		agg:       a,
		accountID: accountID,
		role:      role,
		interval:  interval,
		refresh:   make(chan struct{}, 1),
		out:       make(chan []Order, 1),
	}
	go w.run(ctx)
	return w
}

// Orders delivers snapshots. The channel is closed when the watcher's
// context ends.
func (w *Watcher) Orders() <-chan []Order { return w.out }

// Refresh requests an immediate re-poll (pull-to-refresh). Coalesced if one
// is already queued.
func (w *Watcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.out)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		case <-w.refresh:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	orders, err := w.agg.Poll(ctx, w.accountID, w.role)
	if err != nil {
		if ctx.Err() == nil {
			w.agg.log.Warn().Err(err).
				Str("account_id", string(w.accountID)).
				Msg("active-order poll failed; keeping previous snapshot")
		}
		return
	}

	// Latest snapshot wins; a stale queued one is dropped first.
	for {
		select {
		case w.out <- orders:
			return
		default:
			select {
			case <-w.out:
			default:
			}
		}
	}
}
