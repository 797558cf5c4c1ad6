// internal/syncer/syncer.go

// Package syncer mirrors local cart mutations to the remote backend without
// ever blocking or failing the mutation that triggered them. Every call runs
// on a detached goroutine; failures are logged and swallowed, and a missed
// sync is only corrected by the next full reconciliation.
package syncer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/identity"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

// CartBackend is the slice of the backend client the syncer needs.
type CartBackend interface {
	AddItem(ctx context.Context, req backend.AddItemRequest) (*backend.RemoteCartItem, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
	IncrementItem(ctx context.Context, itemID string) error
	DecrementItem(ctx context.Context, itemID string) error
	RemoveItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
}

// Syncer is the best-effort bridge between local mutations and the backend.
type Syncer struct {
	backend CartBackend
	logger  *logrus.Logger

	// group coalesces concurrent adds for the same product/variant/color
	// tuple: the UI can fire an add twice in quick succession and the
	// backend has no idempotency key, so the second caller awaits the
	// first flight instead of issuing a duplicate request.
	group singleflight.Group

	wg sync.WaitGroup

	mu         sync.Mutex
	onRemoteID func(localID, remoteID string)
}

func New(cartBackend CartBackend, logger *logrus.Logger) *Syncer {
	return &Syncer{backend: cartBackend, logger: logger}
}

// OnRemoteID registers the callback invoked when the backend echoes the
// record id assigned to a freshly added item.
func (s *Syncer) OnRemoteID(fn func(localID, remoteID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoteID = fn
}

// Wait blocks until all in-flight syncs have settled. Used by tests and by
// graceful shutdown; normal operation never waits.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// Add mirrors a local add. The item carries the per-unit delta (quantity 1);
// the backend merges repeats into the existing record.
func (s *Syncer) Add(item models.CartLineItem) {
	s.dispatch(func(ctx context.Context) {
		_, err, _ := s.group.Do(item.LocalID, func() (interface{}, error) {
			remote, err := s.backend.AddItem(ctx, backend.AddItemRequest{
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				ColorID:     item.ColorID,
				Quantity:    1,
				Accessories: item.Accessories,
				TotalPrice:  item.UnitPrice,
			})
			if err != nil {
				return nil, err
			}
			if remote != nil && remote.ID != "" {
				s.notifyRemoteID(item.LocalID, remote.ID)
			}
			return remote, nil
		})
		if err != nil {
			s.logFailure("add", item.LocalID, err)
		}
	})
}

// UpdateQuantity mirrors a local quantity change. Without a backend-shaped id
// there is no remote record to target yet, so the call is a logged no-op.
func (s *Syncer) UpdateQuantity(itemID string, quantity int) {
	if s.skipWithoutBackendID("update_quantity", itemID) {
		return
	}
	s.dispatch(func(ctx context.Context) {
		if err := s.backend.UpdateQuantity(ctx, itemID, quantity); err != nil {
			s.logFailure("update_quantity", itemID, err)
		}
	})
}

func (s *Syncer) Increment(itemID string) {
	if s.skipWithoutBackendID("increment", itemID) {
		return
	}
	s.dispatch(func(ctx context.Context) {
		if err := s.backend.IncrementItem(ctx, itemID); err != nil {
			s.logFailure("increment", itemID, err)
		}
	})
}

func (s *Syncer) Decrement(itemID string) {
	if s.skipWithoutBackendID("decrement", itemID) {
		return
	}
	s.dispatch(func(ctx context.Context) {
		if err := s.backend.DecrementItem(ctx, itemID); err != nil {
			s.logFailure("decrement", itemID, err)
		}
	})
}

func (s *Syncer) Remove(itemID string) {
	if s.skipWithoutBackendID("remove", itemID) {
		return
	}
	s.dispatch(func(ctx context.Context) {
		if err := s.backend.RemoveItem(ctx, itemID); err != nil {
			s.logFailure("remove", itemID, err)
		}
	})
}

func (s *Syncer) Clear() {
	s.dispatch(func(ctx context.Context) {
		if err := s.backend.ClearCart(ctx); err != nil {
			s.logFailure("clear", "", err)
		}
	})
}

func (s *Syncer) dispatch(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(context.Background())
	}()
}

func (s *Syncer) notifyRemoteID(localID, remoteID string) {
	s.mu.Lock()
	fn := s.onRemoteID
	s.mu.Unlock()
	if fn != nil {
		fn(localID, remoteID)
	}
}

func (s *Syncer) skipWithoutBackendID(operation, itemID string) bool {
	if identity.IsBackendID(itemID) {
		return false
	}
	s.logger.WithFields(logrus.Fields{
		"component": "syncer",
		"operation": operation,
		"item_id":   itemID,
	}).Debug("skipping remote sync: no backend id for item yet")
	return true
}

func (s *Syncer) logFailure(operation, itemID string, err error) {
	s.logger.WithFields(logrus.Fields{
		"component": "syncer",
		"operation": operation,
		"item_id":   itemID,
	}).WithError(err).Warn("remote cart sync failed; local cart remains source of truth")
}
