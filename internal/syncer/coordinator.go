// Package syncer orchestrates remote fetches, offline reads and local
// persistence of requisitions.
package syncer

import (
	"context"
	"net/url"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/reconcile"
	"requisition-sync/internal/requisition"
	"requisition-sync/internal/store"
	applog "requisition-sync/pkg/logger"
)

// Remote is the part of the upstream API the coordinator needs.
type Remote interface {
	GetRequisition(ctx context.Context, id string) (requisition.Requisition, error)
	GetStatusMessages(ctx context.Context, id string) ([]requisition.StatusMessage, error)
	Initiate(ctx context.Context, p requisition.InitiateParams) (requisition.Requisition, error)
	Search(ctx context.Context, params requisition.SearchParams) (requisition.Page[requisition.Requisition], error)
	ForConvert(ctx context.Context, query url.Values) (requisition.Page[requisition.ConvertCandidate], error)
	ConvertToOrder(ctx context.Context, items []requisition.ConvertItem) error
	BatchFetch(ctx context.Context, ids []string) ([]requisition.Requisition, error)
}

// Connectivity reports whether the device is offline.
type Connectivity interface {
	IsOffline() bool
}

// Coordinator decides between the online and offline paths and keeps the
// local stores in step with what the server returns. Remote failures are
// returned unchanged and never retried.
type Coordinator struct {
	remote   Remote
	stores   *store.Stores
	resolver *reconcile.Resolver
	conn     Connectivity
	log      *applog.Logger
}

// New creates a coordinator.
func New(remote Remote, stores *store.Stores, conn Connectivity, log *applog.Logger) *Coordinator {
	return &Coordinator{
		remote:   remote,
		stores:   stores,
		resolver: reconcile.NewResolver(stores, log),
		conn:     conn,
		log:      log.WithComponent("syncer"),
	}
}

// IsOffline reports the connectivity state the coordinator acts on.
func (c *Coordinator) IsOffline() bool {
	return c.conn.IsOffline()
}

func (c *Coordinator) requireOnline(operation string) error {
	if c.conn.IsOffline() {
		return apperror.NewOfflineUnavailable(operation)
	}
	return nil
}

// Get fetches a requisition and its status messages and stores both. A
// locally modified copy is kept instead of the server copy and flagged
// outdated when the server has moved on.
func (c *Coordinator) Get(ctx context.Context, id string) (requisition.Detail, error) {
	if err := c.requireOnline("get"); err != nil {
		return requisition.Detail{}, err
	}

	server, err := c.remote.GetRequisition(ctx, id)
	if err != nil {
		return requisition.Detail{}, err
	}
	msgs, err := c.remote.GetStatusMessages(ctx, id)
	if err != nil {
		return requisition.Detail{}, err
	}
	for _, msg := range msgs {
		if err := c.stores.StatusMessages.Put(ctx, msg); err != nil {
			return requisition.Detail{}, apperror.NewStorage(err)
		}
	}

	onlineOnly, err := c.resolver.IsOnlineOnly(ctx, id)
	if err != nil {
		return requisition.Detail{}, apperror.NewStorage(err)
	}

	local, found, err := c.stores.Requisitions.Get(ctx, id)
	if err != nil {
		return requisition.Detail{}, apperror.NewStorage(err)
	}

	var rec requisition.Record
	switch {
	case found && local.Meta.Modified:
		rec = local
		if !local.Requisition.ModifiedDate.Equal(server.ModifiedDate) {
			rec.Meta.Outdated = true
			c.log.Infow("keeping modified local requisition over newer server copy", "id", id)
		}
		if err := c.stores.Requisitions.Put(ctx, rec); err != nil {
			return requisition.Detail{}, apperror.NewStorage(err)
		}
	case onlineOnly:
		rec = requisition.Record{Requisition: server}
	default:
		rec = requisition.Record{
			Requisition: server,
			Meta:        requisition.SyncMeta{AvailableOffline: true},
		}
		if err := c.stores.Requisitions.Put(ctx, rec); err != nil {
			return requisition.Detail{}, apperror.NewStorage(err)
		}
	}

	return requisition.Detail{Record: rec, StatusMessages: msgs}, nil
}

// Search runs the offline search against the local stores, or the remote
// search reconciled record by record in response order.
func (c *Coordinator) Search(ctx context.Context, offline bool, params requisition.SearchParams) (requisition.Page[requisition.Record], error) {
	if offline {
		return c.searchOffline(ctx, params)
	}
	return c.searchOnline(ctx, params)
}

func (c *Coordinator) searchOffline(ctx context.Context, params requisition.SearchParams) (requisition.Page[requisition.Record], error) {
	content, err := c.stores.Requisitions.Search(ctx, params.Matches)
	if err != nil {
		return requisition.Page[requisition.Record]{}, apperror.NewStorage(err)
	}

	if params.ShowBatchRequisitions {
		batch, err := c.stores.BatchRequisitions.Search(ctx, params.MatchesProgram)
		if err != nil {
			return requisition.Page[requisition.Record]{}, apperror.NewStorage(err)
		}
		seen := make(map[string]bool, len(content))
		for _, r := range content {
			seen[r.Key()] = true
		}
		for _, r := range batch {
			if !seen[r.Key()] {
				seen[r.Key()] = true
				content = append(content, r)
			}
		}
	}

	if content == nil {
		content = []requisition.Record{}
	}
	return requisition.Page[requisition.Record]{
		Content:       content,
		Number:        params.Page,
		Size:          params.Size,
		TotalElements: len(content),
	}, nil
}

func (c *Coordinator) searchOnline(ctx context.Context, params requisition.SearchParams) (requisition.Page[requisition.Record], error) {
	page, err := c.remote.Search(ctx, params)
	if err != nil {
		return requisition.Page[requisition.Record]{}, err
	}

	content := make([]requisition.Record, 0, len(page.Content))
	for _, server := range page.Content {
		rec, err := c.resolver.Reconcile(ctx, server)
		if err != nil {
			return requisition.Page[requisition.Record]{}, apperror.NewStorage(err)
		}
		content = append(content, rec)
	}

	return requisition.Page[requisition.Record]{
		Content:       content,
		Number:        page.Number,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	}, nil
}

// Initiate creates a requisition remotely. Nothing is stored locally.
func (c *Coordinator) Initiate(ctx context.Context, p requisition.InitiateParams) (requisition.Record, error) {
	if err := c.requireOnline("initiate"); err != nil {
		return requisition.Record{}, err
	}
	r, err := c.remote.Initiate(ctx, p)
	if err != nil {
		return requisition.Record{}, err
	}
	return requisition.Record{Requisition: r}, nil
}

// ForConvert lists requisitions ready to be converted to orders.
func (c *Coordinator) ForConvert(ctx context.Context, query url.Values) (requisition.Page[requisition.ConvertCandidate], error) {
	if err := c.requireOnline("forConvert"); err != nil {
		return requisition.Page[requisition.ConvertCandidate]{}, err
	}
	return c.remote.ForConvert(ctx, query)
}

// ConvertToOrder converts requisitions remotely and drops the converted
// ones from the single requisition store.
func (c *Coordinator) ConvertToOrder(ctx context.Context, items []requisition.ConvertItem) error {
	if err := c.requireOnline("convertToOrder"); err != nil {
		return err
	}
	if err := c.remote.ConvertToOrder(ctx, items); err != nil {
		return err
	}
	for _, item := range items {
		if err := c.stores.Requisitions.RemoveBy(ctx, "id", item.RequisitionID); err != nil {
			return apperror.NewStorage(err)
		}
	}
	c.log.Infow("converted requisitions to orders", "count", len(items))
	return nil
}

// SetOnlineOnly flags or unflags a requisition as never cached offline.
// Flagging evicts every offline copy already stored.
func (c *Coordinator) SetOnlineOnly(ctx context.Context, id string, onlineOnly bool) error {
	if !onlineOnly {
		if err := c.stores.OnlineOnly.RemoveBy(ctx, "id", id); err != nil {
			return apperror.NewStorage(err)
		}
		return nil
	}

	if err := c.stores.OnlineOnly.Put(ctx, requisition.OnlineOnly{ID: id}); err != nil {
		return apperror.NewStorage(err)
	}
	return c.RemoveOffline(ctx, id)
}

// RemoveOffline deletes every offline copy of a requisition.
func (c *Coordinator) RemoveOffline(ctx context.Context, id string) error {
	for _, coll := range []store.Collection[requisition.Record]{c.stores.Requisitions, c.stores.BatchRequisitions} {
		if err := coll.RemoveBy(ctx, "id", id); err != nil {
			return apperror.NewStorage(err)
		}
	}
	if err := c.stores.StatusMessages.RemoveBy(ctx, "requisitionId", id); err != nil {
		return apperror.NewStorage(err)
	}
	return nil
}
