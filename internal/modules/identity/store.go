// README: Account store backed by PostgreSQL.
package identity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"antar/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// FindByHumanKey returns the single account carrying humanKey in the given
// role. Zero matches is ErrNotFound; more than one is ErrAmbiguous rather
// than a silent first-row pick, so the uniqueness invariant stays checked.
func (s *Store) FindByHumanKey(ctx context.Context, role types.Role, humanKey string) (*Account, error) {
	rows, err := s.db.Query(ctx, `
        SELECT account_id, human_key, role, name, created_at
        FROM accounts
        WHERE role = $1 AND human_key = $2
        LIMIT 2`,
		string(role), humanKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.HumanKey, &a.Role, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		found = append(found, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, ErrAmbiguous
	}
}
