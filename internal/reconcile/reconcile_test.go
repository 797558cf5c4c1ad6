// internal/reconcile/reconcile_test.go
package reconcile

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

type fakeCartBackend struct {
	items    []backend.RemoteCartItem
	fetchErr error

	qtyCalls map[string]int
	qtyErr   error
	addCalls []backend.AddItemRequest
	addErr   error
}

func newFakeCartBackend(items ...backend.RemoteCartItem) *fakeCartBackend {
	return &fakeCartBackend{items: items, qtyCalls: make(map[string]int)}
}

func (f *fakeCartBackend) GetCart(ctx context.Context) ([]backend.RemoteCartItem, error) {
	return f.items, f.fetchErr
}

func (f *fakeCartBackend) AddItem(ctx context.Context, req backend.AddItemRequest) (*backend.RemoteCartItem, error) {
	f.addCalls = append(f.addCalls, req)
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &backend.RemoteCartItem{
		ID:        "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		ColorID:   req.ColorID,
		Quantity:  req.Quantity,
	}, nil
}

func (f *fakeCartBackend) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if f.qtyErr != nil {
		return f.qtyErr
	}
	f.qtyCalls[itemID] = quantity
	return nil
}

type fakeLocalCart struct {
	items     []models.CartLineItem
	remoteIDs map[string]string
}

func newFakeLocalCart(items ...models.CartLineItem) *fakeLocalCart {
	return &fakeLocalCart{items: items, remoteIDs: make(map[string]string)}
}

func (f *fakeLocalCart) Items() []models.CartLineItem { return f.items }

func (f *fakeLocalCart) SetRemoteID(localID, remoteID string) {
	f.remoteIDs[localID] = remoteID
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func localItem(product, variant, color string, quantity int) models.CartLineItem {
	return models.CartLineItem{
		LocalID:   models.LocalItemID(product, variant, color),
		ProductID: product,
		VariantID: variant,
		ColorID:   color,
		Quantity:  quantity,
		UnitPrice: 1000,
	}
}

func remoteItem(id, product, variant, color string, quantity int) backend.RemoteCartItem {
	return backend.RemoteCartItem{
		ID:        id,
		ProductID: product,
		VariantID: variant,
		ColorID:   color,
		Quantity:  quantity,
	}
}

const remoteID = "0d4de2f3-6b0a-4a3f-9c3e-2f47c1a9b8d1"

func TestComputeMatchesByRemoteID(t *testing.T) {
	li := localItem("p1", "v1", "red", 2)
	li.RemoteID = remoteID
	// Different tuple on purpose: the stored id must win over structure.
	ri := remoteItem(remoteID, "p1", "v2", "red", 2)

	diff := Compute([]models.CartLineItem{li}, []backend.RemoteCartItem{ri})

	require.Len(t, diff.Matched, 1)
	assert.Empty(t, diff.LocalOnly)
	assert.Empty(t, diff.RemoteOnly)
}

func TestComputeFallsBackToTupleMatch(t *testing.T) {
	li := localItem("p1", "v1", "red", 2)
	ri := remoteItem(remoteID, "p1", "v1", "red", 3)

	diff := Compute([]models.CartLineItem{li}, []backend.RemoteCartItem{ri})

	require.Len(t, diff.Matched, 1)
	assert.True(t, diff.Matched[0].QuantityDiffers())
}

func TestComputeSplitsUnmatchedBothWays(t *testing.T) {
	diff := Compute(
		[]models.CartLineItem{localItem("p1", "v1", "red", 1)},
		[]backend.RemoteCartItem{remoteItem(remoteID, "p9", "v9", "black", 1)},
	)

	assert.Empty(t, diff.Matched)
	assert.Len(t, diff.LocalOnly, 1)
	assert.Len(t, diff.RemoteOnly, 1)
}

func TestComputeRemoteItemClaimedOnce(t *testing.T) {
	// Two local items structurally equal to one remote record: only one may
	// claim it, the other is local-only.
	first := localItem("p1", "v1", "red", 1)
	second := localItem("p1", "v1", "red", 2)
	second.LocalID = "local-p1-v1-red-dup"

	diff := Compute(
		[]models.CartLineItem{first, second},
		[]backend.RemoteCartItem{remoteItem(remoteID, "p1", "v1", "red", 1)},
	)

	assert.Len(t, diff.Matched, 1)
	assert.Len(t, diff.LocalOnly, 1)
}

func TestRunPushesLocalQuantity(t *testing.T) {
	cartBackend := newFakeCartBackend(remoteItem(remoteID, "p1", "v1", "red", 1))
	cart := newFakeLocalCart(localItem("p1", "v1", "red", 5))

	report, err := New(cartBackend, cart, testLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 5, cartBackend.qtyCalls[remoteID], "local quantity wins over remote")
	assert.Equal(t, remoteID, cart.remoteIDs["local-p1-v1-red"], "matched items get their backend id backfilled")
}

func TestRunSkipsEqualQuantities(t *testing.T) {
	cartBackend := newFakeCartBackend(remoteItem(remoteID, "p1", "v1", "red", 2))
	cart := newFakeLocalCart(localItem("p1", "v1", "red", 2))

	report, err := New(cartBackend, cart, testLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, cartBackend.qtyCalls)
}

func TestRunAddsLocalOnlyItems(t *testing.T) {
	cartBackend := newFakeCartBackend()
	li := localItem("p1", "v1", "red", 3)
	li.TotalPrice = 3000
	cart := newFakeLocalCart(li)

	report, err := New(cartBackend, cart, testLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	require.Len(t, cartBackend.addCalls, 1)
	assert.Equal(t, 3, cartBackend.addCalls[0].Quantity, "reconcile pushes the full quantity, not a delta")
	assert.Equal(t, 3000.0, cartBackend.addCalls[0].TotalPrice)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", cart.remoteIDs["local-p1-v1-red"])
}

func TestRunNeverTouchesRemoteOnlyItems(t *testing.T) {
	cartBackend := newFakeCartBackend(remoteItem(remoteID, "p9", "v9", "black", 1))
	cart := newFakeLocalCart()

	report, err := New(cartBackend, cart, testLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.RemoteOnly)
	assert.Empty(t, cartBackend.qtyCalls)
	assert.Empty(t, cartBackend.addCalls)
}

func TestRunContinuesPastMutationFailures(t *testing.T) {
	cartBackend := newFakeCartBackend(remoteItem(remoteID, "p1", "v1", "red", 1))
	cartBackend.qtyErr = errors.New("backend hiccup")
	cart := newFakeLocalCart(
		localItem("p1", "v1", "red", 5),
		localItem("p2", "v2", "blue", 1),
	)

	report, err := New(cartBackend, cart, testLogger()).Run(context.Background())
	require.NoError(t, err, "mutation failures never abort the pass")

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Added, "the local-only add still happens after the failed update")
}

func TestRunAbortsWhenFetchFails(t *testing.T) {
	cartBackend := newFakeCartBackend()
	cartBackend.fetchErr = errors.New("connection refused")

	_, err := New(cartBackend, newFakeLocalCart(), testLogger()).Run(context.Background())
	assert.Error(t, err)
}
