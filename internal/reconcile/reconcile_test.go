package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requisition-sync/internal/requisition"
	"requisition-sync/internal/store"
	"requisition-sync/internal/store/storetest"
	applog "requisition-sync/pkg/logger"
)

// countingCollection records how often Put is called.
type countingCollection struct {
	store.Collection[requisition.Record]
	puts int
}

func (c *countingCollection) Put(ctx context.Context, r requisition.Record) error {
	c.puts++
	return c.Collection.Put(ctx, r)
}

func ts(year int, month time.Month, day int) *requisition.Timestamp {
	return requisition.NewTimestamp(time.Date(year, month, day, 16, 21, 33, 0, time.UTC))
}

func serverCopy(id string, modified *requisition.Timestamp) requisition.Requisition {
	return requisition.Requisition{
		ID:           id,
		Status:       requisition.StatusAuthorized,
		ModifiedDate: modified,
	}
}

func editedLocal(id string, modified *requisition.Timestamp) requisition.Record {
	qty := int64(42)
	price := decimal.NewFromInt(3)
	return requisition.Record{
		Requisition: requisition.Requisition{
			ID:           id,
			Status:       requisition.StatusAuthorized,
			ModifiedDate: modified,
			LineItems: []requisition.LineItem{{
				ID:               "li-1",
				Orderable:        requisition.Orderable{ID: "o1", NetContent: 1},
				ApprovedQuantity: &qty,
				PricePerPack:     &price,
			}},
		},
		Meta: requisition.SyncMeta{Modified: true, AvailableOffline: true},
	}
}

func TestDecide(t *testing.T) {
	local := editedLocal("1", ts(2016, 4, 30))

	assert.Equal(t, Fresh, Decide(serverCopy("1", ts(2016, 4, 30)), nil))
	assert.Equal(t, Unchanged, Decide(serverCopy("1", ts(2016, 4, 30)), &local))
	assert.Equal(t, Outdated, Decide(serverCopy("1", ts(2000, 9, 1)), &local))

	noDate := editedLocal("1", nil)
	assert.Equal(t, Unchanged, Decide(serverCopy("1", nil), &noDate))
	assert.Equal(t, Outdated, Decide(serverCopy("1", ts(2016, 4, 30)), &noDate))
}

func newResolver(t *testing.T) (*Resolver, *store.Stores, *countingCollection, *countingCollection) {
	stores := storetest.New(t)
	single := &countingCollection{Collection: stores.Requisitions}
	batch := &countingCollection{Collection: stores.BatchRequisitions}
	stores.Requisitions = single
	stores.BatchRequisitions = batch
	return NewResolver(stores, applog.Nop()), stores, single, batch
}

func TestReconcile_UnchangedPreservesLocalEdits(t *testing.T) {
	ctx := context.Background()
	r, stores, single, _ := newResolver(t)

	local := editedLocal("1", ts(2016, 4, 30))
	local.Meta.Outdated = true
	require.NoError(t, stores.Requisitions.Put(ctx, local))
	single.puts = 0

	result, err := r.Reconcile(ctx, serverCopy("1", ts(2016, 4, 30)))
	require.NoError(t, err)
	assert.True(t, result.Meta.AvailableOffline)
	assert.False(t, result.Meta.Outdated)

	stored, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, local.Requisition, stored.Requisition)
	assert.True(t, stored.Meta.Modified)
	assert.True(t, stored.Meta.AvailableOffline)
	assert.False(t, stored.Meta.Outdated)
	assert.Equal(t, 1, single.puts)
}

func TestReconcile_OutdatedMarksLocalOnce(t *testing.T) {
	ctx := context.Background()
	r, stores, single, batch := newResolver(t)

	local := editedLocal("1", ts(2016, 4, 30))
	require.NoError(t, stores.Requisitions.Put(ctx, local))
	single.puts = 0

	result, err := r.Reconcile(ctx, serverCopy("1", ts(2000, 9, 1)))
	require.NoError(t, err)
	assert.True(t, result.Meta.Outdated)
	assert.True(t, result.Meta.AvailableOffline)
	assert.Empty(t, result.Requisition.LineItems)

	stored, _, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, stored.Meta.Outdated)
	assert.Equal(t, local.Requisition, stored.Requisition)
	assert.Equal(t, 1, single.puts)
	assert.Zero(t, batch.puts)
}

func TestReconcile_BatchCopyTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	r, stores, single, batch := newResolver(t)

	require.NoError(t, stores.BatchRequisitions.Put(ctx, editedLocal("1", ts(2016, 4, 30))))
	require.NoError(t, stores.Requisitions.Put(ctx, editedLocal("1", ts(2016, 4, 30))))
	single.puts, batch.puts = 0, 0

	_, err := r.Reconcile(ctx, serverCopy("1", ts(2000, 9, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.puts)
	assert.Zero(t, single.puts)

	batchCopy, _, err := stores.BatchRequisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, batchCopy.Meta.Outdated)

	singleCopy, _, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, singleCopy.Meta.Outdated)
}

func TestReconcile_FreshGoesToSingleStore(t *testing.T) {
	ctx := context.Background()
	r, stores, single, batch := newResolver(t)

	result, err := r.Reconcile(ctx, serverCopy("1", ts(2016, 4, 30)))
	require.NoError(t, err)
	assert.False(t, result.Meta.AvailableOffline)
	assert.False(t, result.Meta.Outdated)
	assert.Equal(t, 1, single.puts)
	assert.Zero(t, batch.puts)

	stored, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, stored.Meta.AvailableOffline)
}

func TestReconcile_FreshOnlineOnlyIsNotStored(t *testing.T) {
	ctx := context.Background()
	r, stores, single, _ := newResolver(t)
	require.NoError(t, stores.OnlineOnly.Put(ctx, requisition.OnlineOnly{ID: "1"}))

	_, err := r.Reconcile(ctx, serverCopy("1", ts(2016, 4, 30)))
	require.NoError(t, err)
	assert.Zero(t, single.puts)

	_, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)
}
