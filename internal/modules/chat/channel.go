// README: Per-order chat channel: history + subscription, seq-keyed dedup,
// reconnect with resync, and a periodic reconcile read.
package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

// MessageStore is the store dependency of a channel.
type MessageStore interface {
	Insert(ctx context.Context, kind types.Kind, orderID string, sender types.Role, text string) (*Message, error)
	ListByOrder(ctx context.Context, kind types.Kind, orderID string) ([]Message, error)
}

// Options tune a channel. Zero values select the defaults.
type Options struct {
	// ReconcileInterval is how often the channel re-reads history even
	// while the subscription looks healthy, covering silently lost events.
	ReconcileInterval time.Duration
	// SendRetryDelay is the pause before the single retry of a failed send.
	SendRetryDelay time.Duration
	// ReconnectBackoff is the initial pause before re-subscribing after a
	// drop; it doubles per consecutive failure up to ten times the base.
	ReconnectBackoff time.Duration
}

func (o *Options) withDefaults() {
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = 30 * time.Second
	}
	if o.SendRetryDelay <= 0 {
		o.SendRetryDelay = 300 * time.Millisecond
	}
	if o.ReconnectBackoff <= 0 {
		o.ReconnectBackoff = 500 * time.Millisecond
	}
}

// Channel maintains one order's transcript. The transcript is a set keyed by
// seq, rendered in seq order; applying a message twice is a no-op, which is
// what makes the bulk-read/subscription overlap and every reconnect safe.
type Channel struct {
	kind    types.Kind
	orderID string
	store   MessageStore
	feed    Feed
	opts    Options
	log     zerolog.Logger

	mu         sync.Mutex
	transcript map[int64]Message
	duplicates int
	closed     bool

	updates chan Message
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// Open loads the order's full history, then starts the subscription loop.
// Both steps are required: the bulk read covers messages written before the
// subscription existed, the subscription covers liveness afterwards, and
// dedup makes their overlap harmless. ctx bounds the initial read only; the
// channel lives until Close.
func Open(ctx context.Context, store MessageStore, feed Feed, kind types.Kind, orderID string, opts Options, log zerolog.Logger) (*Channel, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if orderID == "" {
		return nil, ErrBadRequest
	}
	opts.withDefaults()

	c := &Channel{
		kind:    kind,
		orderID: orderID,
		store:   store,
		feed:    feed,
		opts:    opts,
		log: log.With().
			Str("component", "chat_channel").
			Str("kind", string(kind)).
			Str("order_id", orderID).
			Logger(),
		transcript: make(map[int64]Message),
		updates:    make(chan Message, 64),
	}

	history, err := store.ListByOrder(ctx, kind, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", ErrUnavailable, err)
	}
	for _, m := range history {
		c.apply(m, false)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)
	return c, nil
}

// History returns the transcript so far, in seq order.
func (c *Channel) History() []Message {
	c.mu.Lock()
	out := make([]Message, 0, len(c.transcript))
	for _, m := range c.transcript {
		out = append(out, m)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Updates streams messages as they are first applied, in arrival order. The
// channel closes after Close. Slow consumers lose update notifications, not
// messages: History stays complete.
func (c *Channel) Updates() <-chan Message { return c.updates }

// Duplicates reports how many redeliveries the dedup rule has absorbed.
func (c *Channel) Duplicates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duplicates
}

// Send stores one message from the given sender. There is no local echo: the
// stored copy comes back through the feed (or a reconcile read) like any
// other message and is deduplicated on arrival. A transport failure is
// retried once, then surfaced as ErrUnavailable.
func (c *Channel) Send(ctx context.Context, sender types.Role, text string) error {
	if _, err := types.ParseRole(string(sender)); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if text == "" {
		return fmt.Errorf("%w: empty message", ErrBadRequest)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	_, err := c.store.Insert(ctx, c.kind, c.orderID, sender, text)
	if err != nil {
		c.log.Warn().Err(err).Msg("send failed; retrying once")
		select {
		case <-time.After(c.opts.SendRetryDelay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		if _, err = c.store.Insert(ctx, c.kind, c.orderID, sender, text); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Close cancels the subscription and the reconnect/reconcile loops, then
// closes Updates. Messages are never lost by closing: they stay in the store
// and a fresh Open replays the full history.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		c.wg.Wait()
	})
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.updates)

	ticker := time.NewTicker(c.opts.ReconcileInterval)
	defer ticker.Stop()

	backoff := c.opts.ReconnectBackoff
	for ctx.Err() == nil {
		sub, err := c.feed.Subscribe(ctx, Topic(c.kind, c.orderID))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Dur("backoff", backoff).Msg("subscribe failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 10*c.opts.ReconnectBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = c.opts.ReconnectBackoff

		// Messages inserted between the last read and this subscribe are
		// invisible to the feed; a fresh bulk read fills the gap.
		c.resync(ctx)
		c.consume(ctx, sub, ticker.C)
		sub.Close()

		if ctx.Err() == nil {
			c.log.Info().Msg("subscription dropped; reconnecting")
		}
	}
}

// consume drains the subscription until it drops or the channel closes,
// reconciling against the store on every tick.
func (c *Channel) consume(ctx context.Context, sub Subscription, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Events():
			if !ok {
				return
			}
			c.apply(m, true)
		case <-ticks:
			c.resync(ctx)
		}
	}
}

// resync re-reads the full history and applies whatever the transcript is
// missing. Failures are logged and left to the next tick.
func (c *Channel) resync(ctx context.Context) {
	history, err := c.store.ListByOrder(ctx, c.kind, c.orderID)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("reconcile read failed")
		}
		return
	}
	for _, m := range history {
		c.apply(m, true)
	}
}

// apply admits a message into the transcript exactly once. Duplicates are
// counted, logged at debug, and otherwise ignored.
func (c *Channel) apply(m Message, emit bool) {
	c.mu.Lock()
	if _, seen := c.transcript[m.Seq]; seen {
		c.duplicates++
		c.mu.Unlock()
		c.log.Debug().Int64("seq", m.Seq).Msg("duplicate delivery ignored")
		return
	}
	c.transcript[m.Seq] = m
	c.mu.Unlock()

	if !emit {
		return
	}
	select {
	case c.updates <- m:
	default:
		c.log.Warn().Int64("seq", m.Seq).Msg("updates consumer too slow; notification dropped")
	}
}
