// internal/cart/store_test.go
package cart

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

type fakePersistence struct {
	mu       sync.Mutex
	snapshot *models.CartSnapshot
	saves    int
	saveErr  error
	loadErr  error
}

func (f *fakePersistence) SaveSnapshot(snapshot *models.CartSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snapshot = snapshot
	f.saves++
	return nil
}

func (f *fakePersistence) LoadSnapshot() (*models.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, f.loadErr
}

type syncCall struct {
	op       string
	itemID   string
	quantity int
}

type fakeSync struct {
	mu    sync.Mutex
	calls []syncCall
}

func (f *fakeSync) record(c syncCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeSync) Add(item models.CartLineItem)           { f.record(syncCall{op: "add", itemID: item.LocalID}) }
func (f *fakeSync) UpdateQuantity(itemID string, qty int)  { f.record(syncCall{op: "quantity", itemID: itemID, quantity: qty}) }
func (f *fakeSync) Increment(itemID string)                { f.record(syncCall{op: "increment", itemID: itemID}) }
func (f *fakeSync) Decrement(itemID string)                { f.record(syncCall{op: "decrement", itemID: itemID}) }
func (f *fakeSync) Remove(itemID string)                   { f.record(syncCall{op: "remove", itemID: itemID}) }
func (f *fakeSync) Clear()                                 { f.record(syncCall{op: "clear"}) }

func (f *fakeSync) last() syncCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return syncCall{}
	}
	return f.calls[len(f.calls)-1]
}

type fakeRemote struct {
	items []backend.RemoteCartItem
	err   error
}

func (f *fakeRemote) GetCart(ctx context.Context) ([]backend.RemoteCartItem, error) {
	return f.items, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore() (*Store, *fakePersistence, *fakeSync, *fakeRemote) {
	persistence := &fakePersistence{}
	remoteSync := &fakeSync{}
	remote := &fakeRemote{}
	return NewStore(persistence, remoteSync, remote, testLogger()), persistence, remoteSync, remote
}

var (
	productA = models.ProductSelection{ID: "p1", Name: "RQ-450X"}
	variantX = models.VariantSelection{ID: "v1", Name: "Long Range", Price: 1200}
	colorRed = models.ColorSelection{ID: "red", Name: "Crimson"}
)

const backendID = "0d4de2f3-6b0a-4a3f-9c3e-2f47c1a9b8d1"

// assertAggregates checks the cart-level invariant: aggregates are exact
// reductions over the line items.
func assertAggregates(t *testing.T, s *Store) {
	t.Helper()
	items := s.Items()
	wantItems := 0
	wantPrice := 0.0
	for _, item := range items {
		wantItems += item.Quantity
		wantPrice += item.TotalPrice
		assert.InDelta(t, item.UnitPrice*float64(item.Quantity), item.TotalPrice, 1e-9)
	}
	assert.Equal(t, wantItems, s.TotalItems())
	assert.InDelta(t, wantPrice, s.TotalPrice(), 1e-9)
}

func TestAddCreatesLineItem(t *testing.T) {
	s, _, remoteSync, _ := newTestStore()

	item := s.Add(productA, variantX, colorRed, nil)

	assert.Equal(t, models.LocalItemID("p1", "v1", "red"), item.LocalID)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, 1200.0, item.UnitPrice)
	assert.Equal(t, 1200.0, item.TotalPrice)
	assert.Len(t, s.Items(), 1)
	assertAggregates(t, s)
	assert.Equal(t, "add", remoteSync.last().op)
}

func TestAddSameConfigurationMergesInsteadOfDuplicating(t *testing.T) {
	s, _, _, _ := newTestStore()

	s.Add(productA, variantX, colorRed, []models.Accessory{
		{ID: "acc1", Type: models.AccessoryTypeAddon, Price: 100},
	})
	item := s.Add(productA, variantX, colorRed, []models.Accessory{
		{ID: "acc1", Type: models.AccessoryTypeAddon, Price: 100},
		{ID: "ins1", Type: models.AccessoryTypeInsurance, Price: 50},
	})

	require.Len(t, s.Items(), 1, "same tuple must never create a second line item")
	assert.Equal(t, 2, item.Quantity)
	require.Len(t, item.Accessories, 2, "accessories union by id, no duplicates")
	assert.Equal(t, 1350.0, item.UnitPrice, "unit price includes all unioned accessories")
	assert.Equal(t, 2700.0, item.TotalPrice)
	assertAggregates(t, s)
}

func TestAddDifferentColorCreatesSeparateItem(t *testing.T) {
	s, _, _, _ := newTestStore()

	s.Add(productA, variantX, colorRed, nil)
	s.Add(productA, variantX, models.ColorSelection{ID: "black", Name: "Onyx"}, nil)

	assert.Len(t, s.Items(), 2)
	assertAggregates(t, s)
}

func TestUpdateQuantityRecomputesTotal(t *testing.T) {
	s, _, remoteSync, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)

	require.True(t, s.UpdateQuantity(item.LocalID, 5))

	got := s.Items()[0]
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, 6000.0, got.TotalPrice)
	assertAggregates(t, s)
	assert.Equal(t, syncCall{op: "quantity", itemID: item.LocalID, quantity: 5}, remoteSync.last())
}

func TestUpdateQuantityZeroRemovesItem(t *testing.T) {
	s, _, _, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)

	require.True(t, s.UpdateQuantity(item.LocalID, 0))

	assert.Empty(t, s.Items(), "zero quantity removes the item, never leaves it at zero")
	assert.Equal(t, 0, s.TotalItems())
	assert.Equal(t, 0.0, s.TotalPrice())
}

func TestUpdateQuantityUnknownItem(t *testing.T) {
	s, _, _, _ := newTestStore()
	assert.False(t, s.UpdateQuantity("local-nope", 3))
}

func TestDecrementAtQuantityOneRemoves(t *testing.T) {
	s, _, remoteSync, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)

	require.True(t, s.Decrement(item.LocalID))

	assert.Empty(t, s.Items())
	assert.Equal(t, "remove", remoteSync.last().op)
}

func TestIncrementAndDecrement(t *testing.T) {
	s, _, _, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)

	require.True(t, s.Increment(item.LocalID))
	require.True(t, s.Increment(item.LocalID))
	require.True(t, s.Decrement(item.LocalID))

	got := s.Items()[0]
	assert.Equal(t, 2, got.Quantity)
	assertAggregates(t, s)
}

func TestRemoveByRemoteID(t *testing.T) {
	s, _, remoteSync, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)
	s.SetRemoteID(item.LocalID, backendID)

	require.True(t, s.Remove(backendID))

	assert.Empty(t, s.Items())
	assert.Equal(t, syncCall{op: "remove", itemID: backendID}, remoteSync.last())
}

func TestRemoveFallsBackToLocalID(t *testing.T) {
	s, _, _, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)

	require.True(t, s.Remove(item.LocalID))
	assert.Empty(t, s.Items())
}

func TestClearResetsEverything(t *testing.T) {
	s, _, remoteSync, _ := newTestStore()
	s.Add(productA, variantX, colorRed, nil)
	s.Add(productA, variantX, models.ColorSelection{ID: "black"}, nil)

	s.Clear()

	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.TotalItems())
	assert.Equal(t, 0.0, s.TotalPrice())
	assert.Equal(t, "clear", remoteSync.last().op)
}

func TestSnapshotPersistedAfterEveryMutation(t *testing.T) {
	s, persistence, _, _ := newTestStore()

	item := s.Add(productA, variantX, colorRed, nil)
	s.UpdateQuantity(item.LocalID, 3)
	s.Remove(item.LocalID)

	assert.Equal(t, 3, persistence.saves)
	require.NotNil(t, persistence.snapshot)
	assert.Empty(t, persistence.snapshot.Items, "snapshot reflects post-mutation state")
}

func TestPersistenceFailureDoesNotFailMutation(t *testing.T) {
	s, persistence, _, _ := newTestStore()
	persistence.saveErr = errors.New("disk full")

	item := s.Add(productA, variantX, colorRed, nil)
	assert.Equal(t, 1, item.Quantity, "mutation succeeds even when the snapshot write fails")
}

func TestSetRemoteIDNeverOverwrites(t *testing.T) {
	s, _, _, _ := newTestStore()
	item := s.Add(productA, variantX, colorRed, nil)

	s.SetRemoteID(item.LocalID, backendID)
	s.SetRemoteID(item.LocalID, "99999999-8888-7777-6666-555555555555")

	assert.Equal(t, backendID, s.Items()[0].RemoteID, "backend ids are stable, never reassigned")
}

func TestLoadReplacesItemsWholesale(t *testing.T) {
	s, _, remoteSync, _ := newTestStore()
	s.Add(productA, variantX, colorRed, nil)

	s.Load([]models.CartLineItem{
		{LocalID: "local-p2-v2-blue", ProductID: "p2", VariantID: "v2", ColorID: "blue", Quantity: 3, UnitPrice: 800, TotalPrice: 2400},
	})

	require.Len(t, s.Items(), 1)
	assert.Equal(t, "p2", s.Items()[0].ProductID)
	assert.Equal(t, 3, s.TotalItems())
	assert.Equal(t, 2400.0, s.TotalPrice())
	assert.Equal(t, "add", remoteSync.last().op, "load must not schedule remote syncs")
}

func TestHydratePrefersRemote(t *testing.T) {
	s, _, _, remote := newTestStore()
	remote.items = []backend.RemoteCartItem{
		{ID: backendID, ProductID: "p1", VariantID: "v1", ColorID: "red", Quantity: 2, TotalPrice: 2400},
	}

	s.Hydrate(context.Background())

	require.Len(t, s.Items(), 1)
	got := s.Items()[0]
	assert.Equal(t, backendID, got.RemoteID)
	assert.Equal(t, models.LocalItemID("p1", "v1", "red"), got.LocalID)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, 1200.0, got.UnitPrice)
	assertAggregates(t, s)
}

func TestHydrateFallsBackToSnapshotWhenRemoteFails(t *testing.T) {
	s, persistence, _, remote := newTestStore()
	remote.err = errors.New("connection refused")
	persistence.snapshot = &models.CartSnapshot{
		Items: []models.CartLineItem{
			{LocalID: "local-p1-v1-red", ProductID: "p1", VariantID: "v1", ColorID: "red", Quantity: 1, UnitPrice: 1200, TotalPrice: 1200},
		},
	}

	s.Hydrate(context.Background())

	require.Len(t, s.Items(), 1)
	assert.Equal(t, "p1", s.Items()[0].ProductID)
}

func TestHydrateFallsBackWhenRemoteEmpty(t *testing.T) {
	s, persistence, _, _ := newTestStore()
	persistence.snapshot = &models.CartSnapshot{
		Items: []models.CartLineItem{
			{LocalID: "local-p1-v1-red", ProductID: "p1", VariantID: "v1", ColorID: "red", Quantity: 2, UnitPrice: 1200, TotalPrice: 2400},
		},
	}

	s.Hydrate(context.Background())

	require.Len(t, s.Items(), 1)
	assert.Equal(t, 2, s.TotalItems())
}

// TestBuyNowScenario walks the documented end-to-end flow: two adds of the
// same configuration, a quantity update, then removal.
func TestBuyNowScenario(t *testing.T) {
	s, _, _, _ := newTestStore()

	item := s.Add(productA, variantX, colorRed, nil)
	assert.Equal(t, 1, s.TotalItems())
	assert.Equal(t, variantX.Price, s.TotalPrice())

	item = s.Add(productA, variantX, colorRed, nil)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 2*variantX.Price, s.TotalPrice())

	require.True(t, s.UpdateQuantity(item.LocalID, 5))
	assert.Equal(t, 5, s.TotalItems())
	assert.Equal(t, 5*variantX.Price, s.TotalPrice())

	require.True(t, s.Remove(item.LocalID))
	assert.Equal(t, 0, s.TotalItems())
	assert.Equal(t, 0.0, s.TotalPrice())
	assertAggregates(t, s)
}
