// README: Claim service tests (exactly-one winner, conflict handling, retry).
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

// memStore is an in-memory ClaimStore/ActiveLister. Claim holds the lock for
// the whole check-and-set, mirroring the atomicity the SQL statement gives
// the real store.
type memStore struct {
	mu       sync.Mutex
	orders   map[types.Kind]map[string]*Order
	failures int // countdown of injected transient errors
}

func newMemStore() *memStore {
	m := &memStore{orders: make(map[types.Kind]map[string]*Order)}
	for _, k := range types.Kinds {
		m.orders[k] = make(map[string]*Order)
	}
	return m
}

func (m *memStore) add(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.Kind][o.ID] = o
}

func (m *memStore) get(kind types.Kind, id string) *Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := *m.orders[kind][id]
	return &o
}

func (m *memStore) Claim(_ context.Context, kind types.Kind, orderID string, driverID types.AccountID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("connection reset")
	}
	o, ok := m.orders[kind][orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.DriverID != nil {
		return nil, ErrAlreadyClaimed
	}
	d := driverID
	o.DriverID = &d
	o.Status = StatusOnProgress
	cp := *o
	return &cp, nil
}

func (m *memStore) ActiveByAccount(_ context.Context, kind types.Kind, accountID types.AccountID, role types.Role) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders[kind] {
		if o.Status != StatusPending && o.Status != StatusOnProgress {
			continue
		}
		switch role {
		case types.RoleCustomer:
			if o.CustomerID == accountID {
				out = append(out, *o)
			}
		case types.RoleDriver:
			if o.DriverID != nil && *o.DriverID == accountID {
				out = append(out, *o)
			}
		}
	}
	return out, nil
}

func newTestService(store ClaimStore) *Service {
	svc := NewService(store, zerolog.Nop())
	svc.retryDelay = time.Millisecond
	return svc
}

func pendingOrder(kind types.Kind, id string) *Order {
	return &Order{
		ID:         id,
		Kind:       kind,
		CustomerID: "c1",
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

func TestTakeConcurrentExactlyOneWinner(t *testing.T) {
	store := newMemStore()
	store.add(pendingOrder(types.KindRide, "order42"))
	svc := newTestService(store)
	ctx := context.Background()

	const drivers = 8
	type outcome struct {
		driver types.AccountID
		order  *Order
		err    error
	}
	start := make(chan struct{})
	results := make(chan outcome, drivers)
	var wg sync.WaitGroup

	for i := 0; i < drivers; i++ {
		did := types.AccountID(fmt.Sprintf("driver%d", i))
		wg.Add(1)
		go func(did types.AccountID) {
			defer wg.Done()
			<-start
			o, err := svc.Take(ctx, types.KindRide, "order42", did)
			results <- outcome{driver: did, order: o, err: err}
		}(did)
	}
	close(start)
	wg.Wait()
	close(results)

	var winner types.AccountID
	wins, losses := 0, 0
	for r := range results {
		switch {
		case r.err == nil:
			wins++
			winner = r.driver
			if r.order.Status != StatusOnProgress {
				t.Errorf("winner got status %s, want %s", r.order.Status, StatusOnProgress)
			}
		case errors.Is(r.err, ErrAlreadyClaimed):
			losses++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if wins != 1 || losses != drivers-1 {
		t.Fatalf("expected 1 winner and %d losers, got %d/%d", drivers-1, wins, losses)
	}

	final := store.get(types.KindRide, "order42")
	if final.DriverID == nil || *final.DriverID != winner {
		t.Fatalf("stored driver is not the winner: %v", final.DriverID)
	}
	if final.Status != StatusOnProgress {
		t.Fatalf("stored status = %s, want %s", final.Status, StatusOnProgress)
	}

	// A late attempt also loses.
	if _, err := svc.Take(ctx, types.KindRide, "order42", "late-driver"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("late take: expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestTakeDriverSetIffNotPending(t *testing.T) {
	store := newMemStore()
	store.add(pendingOrder(types.KindFood, "f1"))
	svc := newTestService(store)

	before := store.get(types.KindFood, "f1")
	if (before.DriverID != nil) != (before.Status != StatusPending) {
		t.Fatalf("invariant broken before claim: driver=%v status=%s", before.DriverID, before.Status)
	}

	if _, err := svc.Take(context.Background(), types.KindFood, "f1", "d1"); err != nil {
		t.Fatalf("take: %v", err)
	}

	after := store.get(types.KindFood, "f1")
	if (after.DriverID != nil) != (after.Status != StatusPending) {
		t.Fatalf("invariant broken after claim: driver=%v status=%s", after.DriverID, after.Status)
	}
}

func TestTakeUnknownOrder(t *testing.T) {
	svc := newTestService(newMemStore())
	if _, err := svc.Take(context.Background(), types.KindSend, "nope", "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTakeValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	if _, err := svc.Take(ctx, types.Kind("taxi"), "o1", "d1"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad kind: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Take(ctx, types.KindRide, "", "d1"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty order id: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Take(ctx, types.KindRide, "o1", ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty driver id: expected ErrBadRequest, got %v", err)
	}
}

func TestTakeRetriesTransientOnce(t *testing.T) {
	store := newMemStore()
	store.add(pendingOrder(types.KindRide, "r1"))
	store.failures = 1
	svc := newTestService(store)

	o, err := svc.Take(context.Background(), types.KindRide, "r1", "d1")
	if err != nil {
		t.Fatalf("take with one transient failure: %v", err)
	}
	if o.DriverID == nil || *o.DriverID != "d1" {
		t.Fatalf("unexpected driver: %v", o.DriverID)
	}
}

func TestTakeGivesUpAfterSecondFailure(t *testing.T) {
	store := newMemStore()
	store.add(pendingOrder(types.KindRide, "r2"))
	store.failures = 2
	svc := newTestService(store)

	if _, err := svc.Take(context.Background(), types.KindRide, "r2", "d1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	// The order is untouched and a later attempt succeeds.
	o, err := svc.Take(context.Background(), types.KindRide, "r2", "d2")
	if err != nil {
		t.Fatalf("take after recovery: %v", err)
	}
	if *o.DriverID != "d2" {
		t.Fatalf("unexpected driver %s", *o.DriverID)
	}
}
