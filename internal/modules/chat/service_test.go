// README: Service-level send tests (retry, error wrapping).
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"antar/internal/types"
)

func newTestChatService(store *fakeStore) *Service {
	return NewService(store, newFakeFeed(), quietOpts, zerolog.Nop())
}

func TestServiceSendRetriesOnce(t *testing.T) {
	store := &fakeStore{failInserts: 1}
	svc := newTestChatService(store)

	m, err := svc.Send(context.Background(), types.KindRide, "o1", types.RoleCustomer, "hello")
	if err != nil {
		t.Fatalf("send with one failure: %v", err)
	}
	if m == nil || m.Text != "hello" {
		t.Fatalf("unexpected message: %+v", m)
	}

	store.mu.Lock()
	stored := len(store.msgs)
	store.mu.Unlock()
	if stored != 1 {
		t.Fatalf("expected 1 stored message, got %d", stored)
	}
}

func TestServiceSendWrapsTransportFailure(t *testing.T) {
	store := &fakeStore{failInserts: 2}
	svc := newTestChatService(store)

	_, err := svc.Send(context.Background(), types.KindRide, "o1", types.RoleCustomer, "hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// The cause travels with the sentinel.
	if !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("cause missing from error: %v", err)
	}
}

func TestServiceSendValidation(t *testing.T) {
	svc := newTestChatService(&fakeStore{})
	ctx := context.Background()

	if _, err := svc.Send(ctx, types.KindRide, "o1", types.Role("admin"), "x"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad sender: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Send(ctx, types.KindRide, "o1", types.RoleDriver, ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty text: expected ErrBadRequest, got %v", err)
	}
}

func TestServiceHistoryWrapsFailure(t *testing.T) {
	store := &fakeStore{failLists: 1}
	svc := newTestChatService(store)

	if _, err := svc.History(context.Background(), types.KindRide, "o1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
