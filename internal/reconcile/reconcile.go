// internal/reconcile/reconcile.go

// Package reconcile aligns the local cart with the remote cart at a single
// checkpoint, typically right before checkout navigation. The diff is a pure
// function over the two item lists; the reconciler applies it one-directionally,
// pushing local intent and never deleting remote records it cannot match.
package reconcile

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

// MatchedPair is a local item paired with its remote counterpart, found
// either by stored backend id or by structural tuple equality.
type MatchedPair struct {
	Local  models.CartLineItem
	Remote backend.RemoteCartItem
}

// QuantityDiffers reports whether the pair needs a remote quantity update.
func (p MatchedPair) QuantityDiffers() bool {
	return p.Local.Quantity != p.Remote.Quantity
}

// Diff is the outcome of comparing the two carts.
type Diff struct {
	Matched    []MatchedPair
	LocalOnly  []models.CartLineItem
	RemoteOnly []backend.RemoteCartItem
}

// Compute matches local items against remote items in two phases: exact
// backend-id equality first, then structural equality on the
// (product, variant, color) tuple for items whose remote echo never arrived.
// Remote items left unmatched end up in RemoteOnly and are never touched.
func Compute(local []models.CartLineItem, remote []backend.RemoteCartItem) Diff {
	diff := Diff{}

	remoteByID := make(map[string]int, len(remote))
	remoteByTuple := make(map[string]int, len(remote))
	for i, ri := range remote {
		remoteByID[ri.ID] = i
		if _, exists := remoteByTuple[ri.TupleKey()]; !exists {
			remoteByTuple[ri.TupleKey()] = i
		}
	}

	claimed := make(map[int]bool, len(remote))
	for _, li := range local {
		idx := -1
		if li.RemoteID != "" {
			if i, ok := remoteByID[li.RemoteID]; ok && !claimed[i] {
				idx = i
			}
		}
		if idx < 0 {
			if i, ok := remoteByTuple[li.TupleKey()]; ok && !claimed[i] {
				idx = i
			}
		}
		if idx >= 0 {
			claimed[idx] = true
			diff.Matched = append(diff.Matched, MatchedPair{Local: li, Remote: remote[idx]})
		} else {
			diff.LocalOnly = append(diff.LocalOnly, li)
		}
	}

	for i, ri := range remote {
		if !claimed[i] {
			diff.RemoteOnly = append(diff.RemoteOnly, ri)
		}
	}
	return diff
}

// CartBackend is the mutation surface the reconciler is allowed to use.
// Deliberately has no remove operation: an unmatched remote item may belong
// to another device or the local cart may be stale, and a stray remote item
// is recoverable where a deleted one is not.
type CartBackend interface {
	GetCart(ctx context.Context) ([]backend.RemoteCartItem, error)
	AddItem(ctx context.Context, req backend.AddItemRequest) (*backend.RemoteCartItem, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
}

// LocalCart is the slice of the local store the reconciler reads and
// annotates.
type LocalCart interface {
	Items() []models.CartLineItem
	SetRemoteID(localID, remoteID string)
}

// Report summarizes one reconciliation pass.
type Report struct {
	Matched    int `json:"matched"`
	Updated    int `json:"updated"`
	Added      int `json:"added"`
	RemoteOnly int `json:"remote_only"`
	Failed     int `json:"failed"`
}

type Reconciler struct {
	backend CartBackend
	cart    LocalCart
	logger  *logrus.Logger
}

func New(cartBackend CartBackend, cart LocalCart, logger *logrus.Logger) *Reconciler {
	return &Reconciler{backend: cartBackend, cart: cart, logger: logger}
}

// Run executes one sequential reconciliation pass. Individual mutation
// failures are counted and logged but do not abort the pass; only a failed
// fetch of the remote cart aborts, since there is nothing to diff against.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	remote, err := r.backend.GetCart(ctx)
	if err != nil {
		return Report{}, err
	}

	diff := Compute(r.cart.Items(), remote)
	report := Report{Matched: len(diff.Matched), RemoteOnly: len(diff.RemoteOnly)}

	for _, pair := range diff.Matched {
		if pair.Local.RemoteID == "" {
			r.cart.SetRemoteID(pair.Local.LocalID, pair.Remote.ID)
		}
		if !pair.QuantityDiffers() {
			continue
		}
		if err := r.backend.UpdateQuantity(ctx, pair.Remote.ID, pair.Local.Quantity); err != nil {
			report.Failed++
			r.logFailure("update_quantity", pair.Remote.ID, err)
			continue
		}
		report.Updated++
	}

	for _, li := range diff.LocalOnly {
		created, err := r.backend.AddItem(ctx, backend.AddItemRequest{
			ProductID:   li.ProductID,
			VariantID:   li.VariantID,
			ColorID:     li.ColorID,
			Quantity:    li.Quantity,
			Accessories: li.Accessories,
			TotalPrice:  li.TotalPrice,
		})
		if err != nil {
			report.Failed++
			r.logFailure("add", li.LocalID, err)
			continue
		}
		if created != nil && created.ID != "" {
			r.cart.SetRemoteID(li.LocalID, created.ID)
		}
		report.Added++
	}

	if report.RemoteOnly > 0 {
		r.logger.WithFields(logrus.Fields{
			"component": "reconcile",
			"count":     report.RemoteOnly,
		}).Info("remote items without local counterpart left untouched")
	}
	return report, nil
}

func (r *Reconciler) logFailure(operation, id string, err error) {
	r.logger.WithFields(logrus.Fields{
		"component": "reconcile",
		"operation": operation,
		"item_id":   id,
	}).WithError(err).Warn("reconcile mutation failed")
}
