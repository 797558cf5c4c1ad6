// internal/transfer/transfer.go

// Package transfer moves a guest's remote cart into the authenticated user's
// remote cart after login. The attempted flag is written before any network
// call so the process runs at most once per session, even when the
// surrounding app fires the trigger twice.
package transfer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result reports counts rather than an all-or-nothing outcome: the fallback
// path pushes items one at a time and keeps going past individual failures.
type Result struct {
	Status       Status `json:"status"`
	Transferred  int    `json:"transferred"`
	FallbackUsed bool   `json:"fallback_used,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Store is the durable state the process reads and clears.
type Store interface {
	TransferAttempted() (bool, error)
	MarkTransferAttempted() error
	LoadSnapshot() (*models.CartSnapshot, error)
	DeleteSnapshot() error
	GuestSessionID() (string, error)
	DeleteGuestSessionID() error
}

// Backend is the remote surface the process uses: the server-side merge as
// the preferred path, item-by-item adds as the fallback.
type Backend interface {
	TransferGuestCart(ctx context.Context, guestSessionID string) (*backend.TransferResult, error)
	AddItem(ctx context.Context, req backend.AddItemRequest) (*backend.RemoteCartItem, error)
}

type Process struct {
	store   Store
	backend Backend
	logger  *logrus.Logger
}

func New(store Store, cartBackend Backend, logger *logrus.Logger) *Process {
	return &Process{store: store, backend: cartBackend, logger: logger}
}

// Run executes the transfer. Callers invoke it right after the identity
// resolver has adopted the authenticated token.
func (p *Process) Run(ctx context.Context) (Result, error) {
	attempted, err := p.store.TransferAttempted()
	if err != nil {
		return Result{Status: StatusFailed, Reason: "storage unavailable"}, err
	}
	if attempted {
		return Result{Status: StatusSkipped, Reason: "already attempted"}, nil
	}
	if err := p.store.MarkTransferAttempted(); err != nil {
		return Result{Status: StatusFailed, Reason: "storage unavailable"}, err
	}

	guestID, err := p.store.GuestSessionID()
	if err != nil {
		return Result{Status: StatusFailed, Reason: "storage unavailable"}, err
	}
	snapshot, _ := p.store.LoadSnapshot()
	hasLocalItems := snapshot != nil && len(snapshot.Items) > 0

	if guestID == "" && !hasLocalItems {
		return Result{Status: StatusSkipped, Reason: "nothing to transfer"}, nil
	}

	// Preferred path: server-side merge keyed by the guest session id.
	if guestID != "" {
		result, err := p.backend.TransferGuestCart(ctx, guestID)
		if err == nil && result.Transferred > 0 {
			p.cleanup()
			p.logger.WithFields(logrus.Fields{
				"component":   "transfer",
				"transferred": result.Transferred,
			}).Info("guest cart transferred server-side")
			return Result{Status: StatusSucceeded, Transferred: result.Transferred}, nil
		}
		if err != nil {
			p.logger.WithField("component", "transfer").WithError(err).Warn("server-side transfer failed; falling back to item push")
		}
	}

	// Fallback: push the durable snapshot into the authenticated cart item
	// by item, continue-on-error.
	if !hasLocalItems {
		p.cleanup()
		return Result{Status: StatusSkipped, Reason: "guest cart empty"}, nil
	}

	moved := 0
	for _, item := range snapshot.Items {
		_, err := p.backend.AddItem(ctx, backend.AddItemRequest{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ColorID:     item.ColorID,
			Quantity:    item.Quantity,
			Accessories: item.Accessories,
			TotalPrice:  item.TotalPrice,
		})
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"component": "transfer",
				"local_id":  item.LocalID,
			}).WithError(err).Warn("failed to push guest cart item")
			continue
		}
		moved++
	}

	if moved == 0 {
		p.logger.WithField("component", "transfer").Warn("guest cart transfer moved no items")
		return Result{Status: StatusFailed, FallbackUsed: true, Reason: "no items could be pushed"}, nil
	}

	p.cleanup()
	p.logger.WithFields(logrus.Fields{
		"component":   "transfer",
		"transferred": moved,
		"total":       len(snapshot.Items),
	}).Info("guest cart transferred via item push")
	return Result{Status: StatusSucceeded, Transferred: moved, FallbackUsed: true}, nil
}

// cleanup discards the guest session id and the durable snapshot so a later
// login cannot transfer or merge the same cart twice.
func (p *Process) cleanup() {
	if err := p.store.DeleteGuestSessionID(); err != nil {
		p.logger.WithField("component", "transfer").WithError(err).Warn("failed to discard guest session")
	}
	if err := p.store.DeleteSnapshot(); err != nil {
		p.logger.WithField("component", "transfer").WithError(err).Warn("failed to discard local cart snapshot")
	}
}
