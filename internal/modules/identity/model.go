// README: Account model and identity error taxonomy.
package identity

import (
	"errors"
	"time"

	"antar/internal/types"
)

// Account pairs an operator-assigned human key (a student-style ID) with the
// system-assigned account ID. Human keys may collide across roles; within a
// role a key resolves to at most one account.
type Account struct {
	ID        types.AccountID
	HumanKey  string
	Role      types.Role
	Name      string
	CreatedAt time.Time
}

var (
	// ErrNotFound means no account carries the human key for that role.
	// Recoverable: callers retry with the other role or surface the miss.
	ErrNotFound = errors.New("account not found")
	// ErrAmbiguous means multiple accounts matched, which violates the
	// per-role uniqueness invariant. Never resolved by picking one.
	ErrAmbiguous = errors.New("human key is ambiguous")
)
