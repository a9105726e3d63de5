// README: Identity resolver; caches human-key lookups for the session.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

// Lookup is the store dependency of the resolver.
type Lookup interface {
	FindByHumanKey(ctx context.Context, role types.Role, humanKey string) (*Account, error)
}

type cacheKey struct {
	role types.Role
	key  string
}

// Resolver maps human keys to account IDs. Successful resolutions are cached
// in-process for the lifetime of the resolver; entries never expire and are
// never invalidated, since account IDs are immutable.
type Resolver struct {
	lookup Lookup
	log    zerolog.Logger

	mu       sync.Mutex
	cache    map[cacheKey]types.AccountID
	inflight map[cacheKey]chan struct{}
}

func NewResolver(lookup Lookup, log zerolog.Logger) *Resolver {
	return &Resolver{
		lookup:   lookup,
		log:      log.With().Str("component", "identity").Logger(),
		cache:    make(map[cacheKey]types.AccountID),
		inflight: make(map[cacheKey]chan struct{}),
	}
}

// Resolve returns the account ID for a human key within a role. Input that
// already is an account ID is returned as-is without a lookup. Concurrent
// calls for the same (role, key) share a single underlying lookup.
func (r *Resolver) Resolve(ctx context.Context, humanKey string, role types.Role) (types.AccountID, error) {
	if id, ok := types.ParseAccountID(humanKey); ok {
		return id, nil
	}

	key := cacheKey{role: role, key: humanKey}
	for {
		r.mu.Lock()
		if id, ok := r.cache[key]; ok {
			r.mu.Unlock()
			return id, nil
		}
		wait, busy := r.inflight[key]
		if !busy {
			done := make(chan struct{})
			r.inflight[key] = done
			r.mu.Unlock()
			return r.resolveOnce(ctx, key, done)
		}
		r.mu.Unlock()

		// Another goroutine owns the lookup; wait for it and re-check the
		// cache. A failed lookup is not cached, so we may become the owner
		// on the next pass.
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (r *Resolver) resolveOnce(ctx context.Context, key cacheKey, done chan struct{}) (types.AccountID, error) {
	acct, err := r.lookup.FindByHumanKey(ctx, key.role, key.key)

	r.mu.Lock()
	delete(r.inflight, key)
	if err == nil {
		r.cache[key] = acct.ID
	}
	r.mu.Unlock()
	close(done)

	if err != nil {
		if errors.Is(err, ErrAmbiguous) {
			r.log.Warn().
				Str("role", string(key.role)).
				Str("human_key", key.key).
				Msg("ambiguous human key; uniqueness invariant violated")
		}
		return "", err
	}
	return acct.ID, nil
}
