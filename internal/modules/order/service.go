// README: Claim service; wraps the store's conditional update with retry and logging.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

// ClaimStore is the store dependency of the claim service.
type ClaimStore interface {
	Claim(ctx context.Context, kind types.Kind, orderID string, driverID types.AccountID) (*Order, error)
}

type Service struct {
	store      ClaimStore
	log        zerolog.Logger
	retryDelay time.Duration
}

func NewService(store ClaimStore, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		log:        log.With().Str("component", "claim").Logger(),
		retryDelay: 300 * time.Millisecond,
	}
}

// Take assigns the order to the driver if, and only if, nobody got there
// first. driverID must already be a resolved account ID. A lost race comes
// back as ErrAlreadyClaimed and is never retried; transport failures are
// retried once after a short delay, then surfaced as ErrUnavailable.
func (s *Service) Take(ctx context.Context, kind types.Kind, orderID string, driverID types.AccountID) (*Order, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if orderID == "" || driverID == "" {
		return nil, ErrBadRequest
	}

	o, err := s.claimOnce(ctx, kind, orderID, driverID)
	if err != nil && isTransient(err) {
		s.log.Warn().Err(err).
			Str("kind", string(kind)).Str("order_id", orderID).
			Msg("claim attempt failed; retrying once")
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		o, err = s.claimOnce(ctx, kind, orderID, driverID)
	}
	if err != nil {
		if isTransient(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return o, nil
}

func (s *Service) claimOnce(ctx context.Context, kind types.Kind, orderID string, driverID types.AccountID) (*Order, error) {
	o, err := s.store.Claim(ctx, kind, orderID, driverID)
	switch {
	case err == nil:
		s.log.Info().
			Str("kind", string(kind)).Str("order_id", orderID).
			Str("driver_id", string(driverID)).
			Msg("order claimed")
	case errors.Is(err, ErrAlreadyClaimed):
		// Expected and frequent under contention; logged so races stay
		// observable, never escalated to a retry.
		s.log.Info().
			Str("kind", string(kind)).Str("order_id", orderID).
			Str("driver_id", string(driverID)).
			Msg("claim lost to another driver")
	}
	return o, err
}

// isTransient reports whether err is a transport/store failure rather than a
// logical outcome of the claim.
func isTransient(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrAlreadyClaimed) &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrBadRequest)
}
