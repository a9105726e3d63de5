// README: Shared value types: order kinds, account roles, typed account IDs.
package types

import (
	"errors"

	"github.com/google/uuid"
)

// Kind is one of the three parallel order categories. They differ only in
// their descriptive schema; claim and chat logic is identical across kinds.
type Kind string

const (
	KindRide Kind = "ride"
	KindFood Kind = "food"
	KindSend Kind = "send"
)

// Kinds lists every valid kind, in a stable order.
var Kinds = []Kind{KindRide, KindFood, KindSend}

// Role distinguishes the two sides of an order.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
)

var (
	ErrInvalidKind = errors.New("invalid order kind")
	ErrInvalidRole = errors.New("invalid role")
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRide, KindFood, KindSend:
		return Kind(s), nil
	}
	return "", ErrInvalidKind
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleDriver:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// AccountID is the system-assigned identifier of an account. It is always a
// UUID, which keeps it distinguishable from operator-assigned human keys
// (student-style IDs) without resorting to format sniffing at call sites.
type AccountID string

// ParseAccountID reports whether s already is an account ID. Callers that
// accept either form use this instead of guessing from the string shape.
func ParseAccountID(s string) (AccountID, bool) {
	if _, err := uuid.Parse(s); err != nil {
		return "", false
	}
	return AccountID(s), true
}

func (id AccountID) String() string { return string(id) }
