// README: Order store backed by PostgreSQL; one table per kind, one claim statement.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"antar/internal/types"
)

// kindTables is the single place the kind → table mapping lives.
var kindTables = map[types.Kind]string{
	types.KindRide: "ride_orders",
	types.KindFood: "food_orders",
	types.KindSend: "send_orders",
}

func tableFor(kind types.Kind) (string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrBadRequest, kind)
	}
	return t, nil
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = "id, customer_id, driver_id, status, detail, created_at"

// Claim performs the atomic conditional update that assigns a driver to a
// pending order. It is the sole concurrency control for claiming: the WHERE
// clause only matches while driver_id is still null, so of any number of
// racing drivers exactly one update affects a row. Never split this into a
// read followed by a write.
func (s *Store) Claim(ctx context.Context, kind types.Kind, orderID string, driverID types.AccountID) (*Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET driver_id = $1, status = $2
        WHERE id = $3 AND driver_id IS NULL AND status = $4
        RETURNING %s`, table, orderColumns),
		string(driverID), string(StatusOnProgress), orderID, string(StatusPending),
	)

	o, err := scanOrder(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row matched: either the order is gone or somebody else holds
		// it. The follow-up read only picks the error; the claim decision
		// above stays a single statement.
		var exists bool
		checkErr := s.db.QueryRow(ctx,
			fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table), orderID,
		).Scan(&exists)
		if checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ActiveByAccount lists the account's not-yet-finished orders of one kind.
func (s *Store) ActiveByAccount(ctx context.Context, kind types.Kind, accountID types.AccountID, role types.Role) ([]Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	accountColumn := "customer_id"
	if role == types.RoleDriver {
		accountColumn = "driver_id"
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE %s = $1 AND status IN ($2, $3)
        ORDER BY created_at DESC`, orderColumns, table, accountColumn),
		string(accountID), string(StatusPending), string(StatusOnProgress),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, kind types.Kind, orderID string) (*Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", orderColumns, table), orderID)
	o, err := scanOrder(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts a pending order. Order creation itself belongs to the
// customer-facing CRUD surface; this exists for seeding (tests, bench).
func (s *Store) Create(ctx context.Context, o *Order) error {
	table, err := tableFor(o.Kind)
	if err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Status = StatusPending
	_, err = s.db.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, customer_id, driver_id, status, detail, created_at)
        VALUES ($1, $2, NULL, $3, $4, $5)`, table),
		o.ID, string(o.CustomerID), string(o.Status), o.Detail, o.CreatedAt,
	)
	return err
}

func scanOrder(row pgx.Row, kind types.Kind) (*Order, error) {
	var (
		o        Order
		driverID *string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &driverID, &o.Status, &o.Detail, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Kind = kind
	if driverID != nil {
		d := types.AccountID(*driverID)
		o.DriverID = &d
	}
	return &o, nil
}
