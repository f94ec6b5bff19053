package syncer

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/requisition"
	"requisition-sync/internal/store"
	"requisition-sync/internal/store/storetest"
	applog "requisition-sync/pkg/logger"
)

// fakeRemote serves canned answers and counts calls.
type fakeRemote struct {
	requisitions map[string]requisition.Requisition
	messages     map[string][]requisition.StatusMessage
	searchPage   requisition.Page[requisition.Requisition]
	err          error
	calls        int
	fetchedIDs   []string
	converted    []requisition.ConvertItem
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		requisitions: map[string]requisition.Requisition{},
		messages:     map[string][]requisition.StatusMessage{},
	}
}

func (f *fakeRemote) GetRequisition(_ context.Context, id string) (requisition.Requisition, error) {
	f.calls++
	if f.err != nil {
		return requisition.Requisition{}, f.err
	}
	r, ok := f.requisitions[id]
	if !ok {
		return requisition.Requisition{}, apperror.NewNotFound("requisition", id)
	}
	return r, nil
}

func (f *fakeRemote) GetStatusMessages(_ context.Context, id string) ([]requisition.StatusMessage, error) {
	f.calls++
	return f.messages[id], f.err
}

func (f *fakeRemote) Initiate(_ context.Context, p requisition.InitiateParams) (requisition.Requisition, error) {
	f.calls++
	if f.err != nil {
		return requisition.Requisition{}, f.err
	}
	return requisition.Requisition{
		ID:       "new",
		Status:   requisition.StatusInitiated,
		Facility: requisition.Facility{ID: p.FacilityID},
	}, nil
}

func (f *fakeRemote) Search(context.Context, requisition.SearchParams) (requisition.Page[requisition.Requisition], error) {
	f.calls++
	return f.searchPage, f.err
}

func (f *fakeRemote) ForConvert(context.Context, url.Values) (requisition.Page[requisition.ConvertCandidate], error) {
	f.calls++
	return requisition.Page[requisition.ConvertCandidate]{}, f.err
}

func (f *fakeRemote) ConvertToOrder(_ context.Context, items []requisition.ConvertItem) error {
	f.calls++
	f.converted = items
	return f.err
}

func (f *fakeRemote) BatchFetch(_ context.Context, ids []string) ([]requisition.Requisition, error) {
	f.calls++
	f.fetchedIDs = append(f.fetchedIDs, ids...)
	if f.err != nil {
		return nil, f.err
	}
	var out []requisition.Requisition
	for _, id := range ids {
		if r, ok := f.requisitions[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type staticConn bool

func (c staticConn) IsOffline() bool { return bool(c) }

func ts(year int, month time.Month, day int) *requisition.Timestamp {
	return requisition.NewTimestamp(time.Date(year, month, day, 10, 0, 0, 0, time.UTC))
}

func req(id, facility, program string) requisition.Requisition {
	return requisition.Requisition{
		ID:           id,
		Status:       requisition.StatusAuthorized,
		Facility:     requisition.Facility{ID: facility},
		Program:      requisition.Program{ID: program},
		ModifiedDate: ts(2016, 4, 30),
	}
}

func newCoordinator(t *testing.T, offline bool) (*Coordinator, *fakeRemote, *store.Stores) {
	remote := newFakeRemote()
	stores := storetest.New(t)
	return New(remote, stores, staticConn(offline), applog.Nop()), remote, stores
}

func TestGet_StoresRequisitionAndMessages(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)
	remote.requisitions["1"] = req("1", "f1", "p1")
	remote.messages["1"] = []requisition.StatusMessage{{ID: "m1", RequisitionID: "1", Body: "looks good"}}

	detail, err := c.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", detail.Record.Requisition.ID)
	assert.True(t, detail.Record.Meta.AvailableOffline)
	assert.Len(t, detail.StatusMessages, 1)

	stored, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, stored.Meta.AvailableOffline)

	_, found, err = stores.StatusMessages.Get(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGet_KeepsModifiedLocalCopy(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)

	local := requisition.Record{Requisition: req("1", "f1", "p1"), Meta: requisition.SyncMeta{Modified: true}}
	local.Requisition.Emergency = true
	require.NoError(t, stores.Requisitions.Put(ctx, local))

	server := req("1", "f1", "p1")
	server.ModifiedDate = ts(2017, 1, 1)
	remote.requisitions["1"] = server

	detail, err := c.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, detail.Record.Requisition.Emergency)
	assert.True(t, detail.Record.Meta.Outdated)

	stored, _, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, stored.Meta.Outdated)
	assert.True(t, stored.Requisition.Emergency)
}

func TestGet_OnlineOnlyIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)
	remote.requisitions["1"] = req("1", "f1", "p1")
	require.NoError(t, c.SetOnlineOnly(ctx, "1", true))

	detail, err := c.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, detail.Record.Meta.AvailableOffline)

	_, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetOnlineOnly(ctx, "1", false))
	_, err = c.Get(ctx, "1")
	require.NoError(t, err)
	_, found, err = stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSetOnlineOnly_EvictsOfflineCopies(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)
	remote.requisitions["1"] = req("1", "f1", "p1")

	_, err := c.Get(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, stores.BatchRequisitions.Put(ctx, requisition.ToBatch(requisition.Record{Requisition: req("1", "f1", "p1")})))

	require.NoError(t, c.SetOnlineOnly(ctx, "1", true))

	for _, coll := range []store.Collection[requisition.Record]{stores.Requisitions, stores.BatchRequisitions} {
		_, found, err := coll.Get(ctx, "1")
		require.NoError(t, err)
		assert.False(t, found, coll.Name())
	}

	// A later online search must not cache it again.
	remote.searchPage = requisition.Page[requisition.Requisition]{Content: []requisition.Requisition{req("1", "f1", "p1")}}
	page, err := c.Search(ctx, false, requisition.SearchParams{})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.False(t, page.Content[0].Meta.AvailableOffline)

	_, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGet_RemoteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)

	_, err := c.Get(ctx, "missing")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))

	remote.err = apperror.NewTransport("boom", nil)
	_, err = c.Get(ctx, "1")
	assert.True(t, apperror.Is(err, apperror.CodeTransport))

	all, err := stores.Requisitions.Search(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOnlineOnlyOperationsFailOffline(t *testing.T) {
	ctx := context.Background()
	c, remote, _ := newCoordinator(t, true)

	_, err := c.Get(ctx, "1")
	assert.True(t, apperror.Is(err, apperror.CodeOfflineUnavailable))
	_, err = c.Initiate(ctx, requisition.InitiateParams{FacilityID: "f1"})
	assert.True(t, apperror.Is(err, apperror.CodeOfflineUnavailable))
	err = c.ConvertToOrder(ctx, []requisition.ConvertItem{{RequisitionID: "1"}})
	assert.True(t, apperror.Is(err, apperror.CodeOfflineUnavailable))
	_, err = c.ForConvert(ctx, nil)
	assert.True(t, apperror.Is(err, apperror.CodeOfflineUnavailable))

	assert.Zero(t, remote.calls)
}

func TestSearch_OfflineUnionsStoresWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)

	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("1", "f1", "p1")}))
	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("2", "f2", "p1")}))
	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("3", "f1", "p2")}))
	// Stale leftover of "1" in the batch store must not duplicate it.
	require.NoError(t, stores.BatchRequisitions.Put(ctx, requisition.Record{Requisition: req("1", "f1", "p1")}))
	require.NoError(t, stores.BatchRequisitions.Put(ctx, requisition.Record{Requisition: req("4", "f9", "p1")}))
	require.NoError(t, stores.BatchRequisitions.Put(ctx, requisition.Record{Requisition: req("5", "f9", "p2")}))

	page, err := c.Search(ctx, true, requisition.SearchParams{
		Facility:              "f1",
		Program:               "p1",
		ShowBatchRequisitions: true,
		Page:                  2,
		Size:                  10,
	})
	require.NoError(t, err)

	var ids []string
	for _, r := range page.Content {
		ids = append(ids, r.Key())
	}
	assert.ElementsMatch(t, []string{"1", "4"}, ids)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 10, page.Size)
	assert.Equal(t, 2, page.TotalElements)

	page, err = c.Search(ctx, true, requisition.SearchParams{Program: "p1"})
	require.NoError(t, err)
	assert.Len(t, page.Content, 2)

	assert.Zero(t, remote.calls)
}

func TestSearch_OfflineEmpty(t *testing.T) {
	c, _, _ := newCoordinator(t, true)
	page, err := c.Search(context.Background(), true, requisition.SearchParams{})
	require.NoError(t, err)
	assert.NotNil(t, page.Content)
	assert.Zero(t, page.TotalElements)
}

func TestSearch_OnlineReconcilesInOrder(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)

	unchanged := requisition.Record{Requisition: req("1", "f1", "p1"), Meta: requisition.SyncMeta{Modified: true}}
	require.NoError(t, stores.Requisitions.Put(ctx, unchanged))
	stale := requisition.Record{Requisition: req("2", "f1", "p1")}
	require.NoError(t, stores.BatchRequisitions.Put(ctx, stale))

	newer := req("2", "f1", "p1")
	newer.ModifiedDate = ts(2018, 1, 1)
	remote.searchPage = requisition.Page[requisition.Requisition]{
		Content:       []requisition.Requisition{req("1", "f1", "p1"), newer, req("3", "f1", "p1")},
		Number:        0,
		Size:          3,
		TotalElements: 7,
		TotalPages:    3,
	}

	page, err := c.Search(ctx, false, requisition.SearchParams{Facility: "f1"})
	require.NoError(t, err)
	require.Len(t, page.Content, 3)
	assert.Equal(t, 7, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)

	assert.Equal(t, "1", page.Content[0].Key())
	assert.True(t, page.Content[0].Meta.AvailableOffline)
	assert.False(t, page.Content[0].Meta.Outdated)

	assert.Equal(t, "2", page.Content[1].Key())
	assert.True(t, page.Content[1].Meta.Outdated)

	assert.Equal(t, "3", page.Content[2].Key())
	assert.False(t, page.Content[2].Meta.AvailableOffline)

	batchCopy, _, err := stores.BatchRequisitions.Get(ctx, "2")
	require.NoError(t, err)
	assert.True(t, batchCopy.Meta.Outdated)

	localCopy, _, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, localCopy.Meta.Modified)

	_, found, err := stores.Requisitions.Get(ctx, "3")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSearch_OnlineFailure(t *testing.T) {
	c, remote, _ := newCoordinator(t, false)
	remote.err = errors.New("unreachable")
	_, err := c.Search(context.Background(), false, requisition.SearchParams{})
	assert.EqualError(t, err, "unreachable")
}

func TestInitiate_DoesNotStore(t *testing.T) {
	ctx := context.Background()
	c, _, stores := newCoordinator(t, false)

	rec, err := c.Initiate(ctx, requisition.InitiateParams{FacilityID: "f1", ProgramID: "p1", PeriodID: "pp"})
	require.NoError(t, err)
	assert.Equal(t, "new", rec.Key())

	all, err := stores.Requisitions.Search(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConvertToOrder_RemovesConverted(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)
	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("1", "f1", "p1")}))
	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("2", "f1", "p1")}))

	items := []requisition.ConvertItem{{RequisitionID: "1", SupplyingDepotID: "d1"}}
	require.NoError(t, c.ConvertToOrder(ctx, items))
	assert.Equal(t, items, remote.converted)

	_, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = stores.Requisitions.Get(ctx, "2")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestConvertToOrder_FailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	c, remote, stores := newCoordinator(t, false)
	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("1", "f1", "p1")}))
	remote.err = apperror.NewTransport("rejected", nil)

	require.Error(t, c.ConvertToOrder(ctx, []requisition.ConvertItem{{RequisitionID: "1"}}))
	_, found, err := stores.Requisitions.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRemoveOffline(t *testing.T) {
	ctx := context.Background()
	c, _, stores := newCoordinator(t, false)
	require.NoError(t, stores.Requisitions.Put(ctx, requisition.Record{Requisition: req("1", "f1", "p1")}))
	require.NoError(t, stores.BatchRequisitions.Put(ctx, requisition.Record{Requisition: req("1", "f1", "p1")}))
	require.NoError(t, stores.StatusMessages.Put(ctx, requisition.StatusMessage{ID: "m1", RequisitionID: "1"}))

	require.NoError(t, c.RemoveOffline(ctx, "1"))

	for _, coll := range []store.Collection[requisition.Record]{stores.Requisitions, stores.BatchRequisitions} {
		_, found, err := coll.Get(ctx, "1")
		require.NoError(t, err)
		assert.False(t, found, coll.Name())
	}
	_, found, err := stores.StatusMessages.Get(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, found)
}
