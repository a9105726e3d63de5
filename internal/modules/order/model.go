// README: Order model shared by the three kinds, and the order error taxonomy.
package order

import (
	"encoding/json"
	"errors"
	"time"

	"antar/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusOnProgress Status = "on_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Order carries the fields common to all three kinds. Kind-specific
// descriptive fields (pickup/destination, restaurant/items, package and
// recipient) live in Detail and never influence claim or polling logic.
//
// Invariant: DriverID is non-nil exactly when Status != pending. The only
// transition that sets DriverID is the atomic claim in Store.Claim.
type Order struct {
	ID         string
	Kind       types.Kind
	CustomerID types.AccountID
	DriverID   *types.AccountID
	Status     Status
	Detail     json.RawMessage
	CreatedAt  time.Time
}

var (
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyClaimed is the distinguished lost-race outcome, not a
	// failure: another driver's conditional update won. Callers refresh
	// their order list instead of retrying.
	ErrAlreadyClaimed = errors.New("order already claimed")
	ErrUnavailable    = errors.New("order store unavailable")
	ErrBadRequest     = errors.New("bad request")
)
