// internal/cart/store.go

// Package cart holds the authoritative-for-the-UI cart state. Mutations are
// applied synchronously, the durable snapshot is written before the mutation
// returns, and the matching remote sync is scheduled afterwards so the
// network is never in the mutation's critical path.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/identity"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

// Persistence is the durable snapshot store injected into the cart.
type Persistence interface {
	SaveSnapshot(snapshot *models.CartSnapshot) error
	LoadSnapshot() (*models.CartSnapshot, error)
}

// RemoteSync mirrors mutations to the backend. Implementations must return
// immediately; see the syncer package.
type RemoteSync interface {
	Add(item models.CartLineItem)
	UpdateQuantity(itemID string, quantity int)
	Increment(itemID string)
	Decrement(itemID string)
	Remove(itemID string)
	Clear()
}

// RemoteCart is the read side of the backend used for hydration.
type RemoteCart interface {
	GetCart(ctx context.Context) ([]backend.RemoteCartItem, error)
}

// Store is the Local Cart Store. It owns the in-memory line items and the
// cart-level aggregates, which are always pure reductions over the items.
type Store struct {
	mu          sync.Mutex
	items       []*models.CartLineItem
	totalItems  int
	totalPrice  float64
	persistence Persistence
	remoteSync  RemoteSync
	remote      RemoteCart
	logger      *logrus.Logger
}

func NewStore(persistence Persistence, remoteSync RemoteSync, remote RemoteCart, logger *logrus.Logger) *Store {
	return &Store{
		persistence: persistence,
		remoteSync:  remoteSync,
		remote:      remote,
		logger:      logger,
	}
}

// Add merges the selected configuration into the cart. An existing line item
// for the same product/variant/color tuple gains quantity and the union of
// accessories; otherwise a new item starts at quantity 1.
func (s *Store) Add(product models.ProductSelection, variant models.VariantSelection, color models.ColorSelection, accessories []models.Accessory) models.CartLineItem {
	s.mu.Lock()

	localID := models.LocalItemID(product.ID, variant.ID, color.ID)
	item := s.findByLocalID(localID)
	if item != nil {
		item.Quantity++
		item.MergeAccessories(accessories)
		item.Recalculate()
	} else {
		item = &models.CartLineItem{
			LocalID:     localID,
			ProductID:   product.ID,
			VariantID:   variant.ID,
			ColorID:     color.ID,
			ProductName: product.Name,
			VariantName: variant.Name,
			ColorName:   color.Name,
			Quantity:    1,
			BasePrice:   variant.Price,
			AddedAt:     time.Now(),
		}
		item.MergeAccessories(accessories)
		item.Recalculate()
		s.items = append(s.items, item)
	}
	s.recalculate()
	s.persist()
	out := item.Clone()
	s.mu.Unlock()

	s.remoteSync.Add(out)
	return out
}

// UpdateQuantity sets the item's quantity. Zero or negative removes the item.
func (s *Store) UpdateQuantity(id string, quantity int) bool {
	if quantity <= 0 {
		return s.Remove(id)
	}

	s.mu.Lock()
	item := s.find(id)
	if item == nil {
		s.mu.Unlock()
		return false
	}
	item.Quantity = quantity
	item.TotalPrice = item.UnitPrice * float64(quantity)
	s.recalculate()
	s.persist()
	syncID := s.syncID(item, id)
	s.mu.Unlock()

	s.remoteSync.UpdateQuantity(syncID, quantity)
	return true
}

// Increment raises the quantity by one.
func (s *Store) Increment(id string) bool {
	s.mu.Lock()
	item := s.find(id)
	if item == nil {
		s.mu.Unlock()
		return false
	}
	item.Quantity++
	item.TotalPrice = item.UnitPrice * float64(item.Quantity)
	s.recalculate()
	s.persist()
	syncID := s.syncID(item, id)
	s.mu.Unlock()

	s.remoteSync.Increment(syncID)
	return true
}

// Decrement lowers the quantity by one; an item at quantity 1 is removed
// instead of being left at zero.
func (s *Store) Decrement(id string) bool {
	s.mu.Lock()
	item := s.find(id)
	if item == nil {
		s.mu.Unlock()
		return false
	}
	if item.Quantity <= 1 {
		s.mu.Unlock()
		return s.Remove(id)
	}
	item.Quantity--
	item.TotalPrice = item.UnitPrice * float64(item.Quantity)
	s.recalculate()
	s.persist()
	syncID := s.syncID(item, id)
	s.mu.Unlock()

	s.remoteSync.Decrement(syncID)
	return true
}

// Remove deletes the item identified by either its backend id or its local
// composite key. The backend id form is tried first.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	item := s.items[idx]
	syncID := s.syncID(item, id)
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.recalculate()
	s.persist()
	s.mu.Unlock()

	s.remoteSync.Remove(syncID)
	return true
}

// Clear empties the cart and resets aggregates.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.recalculate()
	s.persist()
	s.mu.Unlock()

	s.remoteSync.Clear()
}

// Load replaces the item list wholesale. Used for hydration; no remote sync
// is scheduled since the data just came from (or stands in for) the backend.
func (s *Store) Load(items []models.CartLineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]*models.CartLineItem, 0, len(items))
	for i := range items {
		item := items[i].Clone()
		s.items = append(s.items, &item)
	}
	s.recalculate()
	s.persist()
}

// Hydrate fills the cart from the backend, falling back to the durable local
// snapshot when the backend is unreachable or reports an empty cart.
func (s *Store) Hydrate(ctx context.Context) {
	remoteItems, err := s.remote.GetCart(ctx)
	if err == nil && len(remoteItems) > 0 {
		items := make([]models.CartLineItem, 0, len(remoteItems))
		for _, ri := range remoteItems {
			items = append(items, fromRemote(ri))
		}
		s.Load(items)
		return
	}
	if err != nil {
		s.logger.WithField("component", "cart").WithError(err).Warn("remote hydration failed; falling back to local snapshot")
	}

	snapshot, loadErr := s.persistence.LoadSnapshot()
	if loadErr != nil {
		s.logger.WithField("component", "cart").WithError(loadErr).Warn("local snapshot unavailable")
		return
	}
	if snapshot != nil && len(snapshot.Items) > 0 {
		s.Load(snapshot.Items)
	}
}

// SetRemoteID records the backend-assigned id echoed for a local item. An id
// already present is never overwritten: backend ids are stable and must not
// be reused across items.
func (s *Store) SetRemoteID(localID, remoteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.findByLocalID(localID)
	if item == nil || item.RemoteID == remoteID {
		return
	}
	if item.RemoteID != "" {
		s.logger.WithFields(logrus.Fields{
			"component": "cart",
			"local_id":  localID,
			"have":      item.RemoteID,
			"got":       remoteID,
		}).Warn("ignoring conflicting remote id for line item")
		return
	}
	item.RemoteID = remoteID
	s.persist()
}

// Items returns copies of the line items in insertion order.
func (s *Store) Items() []models.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CartLineItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalItems
}

func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPrice
}

// Snapshot returns the current state in the durable snapshot shape.
func (s *Store) Snapshot() *models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// find resolves either identifier form: backend-shaped ids match RemoteID
// first, anything else falls through to the local composite key.
func (s *Store) find(id string) *models.CartLineItem {
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx]
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	if identity.IsBackendID(id) {
		for i, item := range s.items {
			if item.RemoteID == id {
				return i
			}
		}
	}
	for i, item := range s.items {
		if item.LocalID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findByLocalID(localID string) *models.CartLineItem {
	for _, item := range s.items {
		if item.LocalID == localID {
			return item
		}
	}
	return nil
}

// syncID picks the identifier handed to the sync adapter: the backend id when
// known, otherwise whatever the caller gave us (the adapter will no-op on
// non-backend ids).
func (s *Store) syncID(item *models.CartLineItem, requested string) string {
	if item.RemoteID != "" {
		return item.RemoteID
	}
	return requested
}

func (s *Store) recalculate() {
	totalItems := 0
	totalPrice := 0.0
	for _, item := range s.items {
		totalItems += item.Quantity
		totalPrice += item.TotalPrice
	}
	s.totalItems = totalItems
	s.totalPrice = totalPrice
}

// persist writes the snapshot synchronously. A failed write is logged but
// does not fail the mutation: memory stays the source of truth for the UI.
func (s *Store) persist() {
	if err := s.persistence.SaveSnapshot(s.snapshotLocked()); err != nil {
		s.logger.WithField("component", "cart").WithError(err).Error("failed to persist cart snapshot")
	}
}

func (s *Store) snapshotLocked() *models.CartSnapshot {
	items := make([]models.CartLineItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.Clone())
	}
	return &models.CartSnapshot{
		Items:       items,
		TotalItems:  s.totalItems,
		TotalPrice:  s.totalPrice,
		LastUpdated: time.Now(),
	}
}

// fromRemote converts a backend record into the local line item shape.
func fromRemote(ri backend.RemoteCartItem) models.CartLineItem {
	quantity := ri.Quantity
	if quantity < 1 {
		quantity = 1
	}
	unit := ri.TotalPrice / float64(quantity)
	base := unit
	for _, a := range ri.Accessories {
		base -= a.Price
	}
	item := models.CartLineItem{
		LocalID:     models.LocalItemID(ri.ProductID, ri.VariantID, ri.ColorID),
		RemoteID:    ri.ID,
		ProductID:   ri.ProductID,
		VariantID:   ri.VariantID,
		ColorID:     ri.ColorID,
		Quantity:    quantity,
		BasePrice:   base,
		UnitPrice:   unit,
		TotalPrice:  ri.TotalPrice,
		Accessories: ri.Accessories,
		AddedAt:     time.Now(),
	}
	return item
}
