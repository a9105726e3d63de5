// README: Aggregator tests (empty result, cross-kind merge ordering, watcher).
package order

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

func TestPollNoActiveOrders(t *testing.T) {
	agg := NewAggregator(newMemStore(), zerolog.Nop())

	orders, err := agg.Poll(context.Background(), "acct1", types.RoleDriver)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected empty result, got %d orders", len(orders))
	}
}

func TestPollMergesAllKindsNewestFirst(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driver := types.AccountID("d1")

	for i, kind := range []types.Kind{types.KindFood, types.KindRide, types.KindSend} {
		o := pendingOrder(kind, string(kind)+"-active")
		o.DriverID = &driver
		o.Status = StatusOnProgress
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		store.add(o)
	}
	// Finished and foreign orders never show up.
	done := pendingOrder(types.KindRide, "ride-done")
	done.DriverID = &driver
	done.Status = StatusDone
	store.add(done)
	other := pendingOrder(types.KindRide, "ride-other")
	otherDriver := types.AccountID("d2")
	other.DriverID = &otherDriver
	other.Status = StatusOnProgress
	store.add(other)

	agg := NewAggregator(store, zerolog.Nop())
	orders, err := agg.Poll(context.Background(), driver, types.RoleDriver)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	want := []string{"send-active", "ride-active", "food-active"}
	if len(orders) != len(want) {
		t.Fatalf("expected %d orders, got %d", len(want), len(orders))
	}
	for i, id := range want {
		if orders[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, orders[i].ID, id)
		}
	}
}

func TestPollCustomerSeesOwnPending(t *testing.T) {
	store := newMemStore()
	o := pendingOrder(types.KindFood, "food-pending")
	o.CustomerID = "cust1"
	store.add(o)

	agg := NewAggregator(store, zerolog.Nop())
	orders, err := agg.Poll(context.Background(), "cust1", types.RoleCustomer)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "food-pending" {
		t.Fatalf("unexpected result: %+v", orders)
	}
}

func TestWatcherRefreshDeliversSnapshot(t *testing.T) {
	store := newMemStore()
	agg := NewAggregator(store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Long interval so only the initial poll and Refresh drive delivery.
	w := agg.Watch(ctx, "d1", types.RoleDriver, time.Hour)

	select {
	case orders := <-w.Orders():
		if len(orders) != 0 {
			t.Fatalf("initial snapshot should be empty, got %d", len(orders))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	driver := types.AccountID("d1")
	o := pendingOrder(types.KindRide, "r1")
	o.DriverID = &driver
	o.Status = StatusOnProgress
	store.add(o)

	w.Refresh()
	select {
	case orders := <-w.Orders():
		if len(orders) != 1 || orders[0].ID != "r1" {
			t.Fatalf("unexpected snapshot: %+v", orders)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after refresh")
	}

	cancel()
	select {
	case _, ok := <-w.Orders():
		if ok {
			// A final queued snapshot may arrive; the channel must close after.
			if _, ok := <-w.Orders(); ok {
				t.Fatal("orders channel still open after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("orders channel not closed after cancel")
	}
}
