package syncer

import (
	"context"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/requisition"
)

// BatchGet loads requisitions for batch approval, in the requested order.
// Offline, every id must already be in the batch store. Online, batch
// copies with local edits are served from the store and the rest are
// fetched and cached.
func (c *Coordinator) BatchGet(ctx context.Context, ids []string, offline bool) ([]requisition.Record, error) {
	batch := c.stores.BatchRequisitions

	if offline {
		records := make([]requisition.Record, 0, len(ids))
		for _, id := range ids {
			rec, found, err := batch.Get(ctx, id)
			if err != nil {
				return nil, apperror.NewStorage(err)
			}
			if !found {
				return nil, apperror.NewOfflineUnavailable("batchGet").WithDetail("id", id)
			}
			records = append(records, rec)
		}
		return records, nil
	}

	byID := make(map[string]requisition.Record, len(ids))
	var toFetch []string
	for _, id := range ids {
		rec, found, err := batch.Get(ctx, id)
		if err != nil {
			return nil, apperror.NewStorage(err)
		}
		if found && rec.Meta.Modified {
			byID[id] = rec
			continue
		}
		toFetch = append(toFetch, id)
	}

	if len(toFetch) > 0 {
		fetched, err := c.remote.BatchFetch(ctx, toFetch)
		if err != nil {
			return nil, err
		}
		for _, r := range fetched {
			rec := requisition.Record{
				Requisition: r,
				Meta:        requisition.SyncMeta{AvailableOffline: true},
			}
			if err := batch.Put(ctx, rec); err != nil {
				return nil, apperror.NewStorage(err)
			}
			byID[r.ID] = rec
		}
	}

	records := make([]requisition.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// StageForBatch copies requisitions from the single store into the batch
// store so the batch grid can open them offline. Online it does nothing,
// since BatchGet fetches what it needs.
func (c *Coordinator) StageForBatch(ctx context.Context, ids []string, offline bool) error {
	if !offline {
		return nil
	}
	for _, id := range ids {
		_, found, err := c.stores.BatchRequisitions.Get(ctx, id)
		if err != nil {
			return apperror.NewStorage(err)
		}
		if found {
			continue
		}

		full, found, err := c.stores.Requisitions.Get(ctx, id)
		if err != nil {
			return apperror.NewStorage(err)
		}
		if !found {
			return apperror.NewOfflineUnavailable("stageForBatch").WithDetail("id", id)
		}
		if err := c.stores.BatchRequisitions.Put(ctx, requisition.ToBatch(full)); err != nil {
			return apperror.NewStorage(err)
		}
	}
	return nil
}
