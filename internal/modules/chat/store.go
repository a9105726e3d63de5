// README: Chat store backed by PostgreSQL, publishing inserts to the Redis feed.
package chat

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"antar/internal/types"
)

type Store struct {
	db  *pgxpool.Pool
	rdb *redis.Client
	log zerolog.Logger
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *Store {
	return &Store{db: db, rdb: rdb, log: log.With().Str("component", "chat_store").Logger()}
}

// Insert writes one message, populating exactly one of the two text columns
// according to the sender role, and publishes the stored copy to the
// conversation topic. The publish is fire-and-forget: subscribers that miss
// it recover through their reconcile read.
func (s *Store) Insert(ctx context.Context, kind types.Kind, orderID string, sender types.Role, text string) (*Message, error) {
	var customerText, driverText *string
	switch sender {
	case types.RoleCustomer:
		customerText = &text
	case types.RoleDriver:
		driverText = &text
	default:
		return nil, types.ErrInvalidRole
	}

	m := &Message{Kind: kind, OrderID: orderID, Sender: sender, Text: text}
	err := s.db.QueryRow(ctx, `
        INSERT INTO chat_messages (kind, order_id, customer_text, driver_text)
        VALUES ($1, $2, $3, $4)
        RETURNING seq, created_at`,
		string(kind), orderID, customerText, driverText,
	).Scan(&m.Seq, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(wireMessage{
		Seq:       m.Seq,
		Kind:      string(m.Kind),
		OrderID:   m.OrderID,
		Sender:    string(m.Sender),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	})
	if err == nil {
		err = s.rdb.Publish(ctx, Topic(kind, orderID), payload).Err()
	}
	if err != nil {
		s.log.Warn().Err(err).
			Str("topic", Topic(kind, orderID)).Int64("seq", m.Seq).
			Msg("publish failed; subscribers will pick the message up on reconcile")
	}
	return m, nil
}

// ListByOrder returns the full conversation in sequence order.
func (s *Store) ListByOrder(ctx context.Context, kind types.Kind, orderID string) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
        SELECT seq, customer_text, driver_text, created_at
        FROM chat_messages
        WHERE kind = $1 AND order_id = $2
        ORDER BY seq ASC`,
		string(kind), orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m                        Message
			customerText, driverText *string
		)
		if err := rows.Scan(&m.Seq, &customerText, &driverText, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = kind
		m.OrderID = orderID
		if customerText != nil {
			m.Sender, m.Text = types.RoleCustomer, *customerText
		} else if driverText != nil {
			m.Sender, m.Text = types.RoleDriver, *driverText
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
