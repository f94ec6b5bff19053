package batch

import (
	"context"
	"errors"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/messages"
	"requisition-sync/internal/remote"
	"requisition-sync/internal/requisition"
)

// Sync saves every requisition in the grid. On full success the grid is
// rebuilt from the server's copies. On partial failure the saved copies
// replace the local ones, the rest keep their edits and carry the server's
// error, and everything is stored as unmodified and available offline.
func (a *Aggregator) Sync(ctx context.Context) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	saved, err := a.deps.Remote.BatchSave(ctx, a.records)
	var partial *remote.PartialFailure
	switch {
	case err == nil:
		records := make([]requisition.Record, 0, len(saved))
		for _, r := range saved {
			rec := requisition.Record{
				Requisition: r,
				Meta:        requisition.SyncMeta{AvailableOffline: true},
			}
			if err := a.deps.Store.Put(ctx, rec); err != nil {
				return Result{}, apperror.NewStorage(err)
			}
			records = append(records, rec)
		}
		a.build(records, true)

		a.deps.Notifier.Success(ctx, messages.Get(messages.SyncSuccess, map[string]any{
			"successCount": len(saved),
		}))
		return Result{Succeeded: len(saved)}, nil

	case errors.As(err, &partial):
		savedByID := make(map[string]requisition.Requisition, len(saved))
		for _, r := range saved {
			savedByID[r.ID] = r
		}

		records := make([]requisition.Record, 0, len(a.records))
		for _, rec := range a.records {
			if s, ok := savedByID[rec.Key()]; ok {
				rec = requisition.Record{Requisition: s}
			} else {
				msg, _ := partial.MessageFor(rec.Key())
				rec.Meta.Error = msg
			}
			rec.Meta.Modified = false
			rec.Meta.AvailableOffline = true
			if err := a.deps.Store.Put(ctx, rec); err != nil {
				return Result{}, apperror.NewStorage(err)
			}
			records = append(records, rec)
		}
		a.build(records, false)

		result := Result{Succeeded: len(saved), Failed: len(records) - len(saved)}
		a.log.Warnw("batch sync partially failed", "succeeded", result.Succeeded, "failed", result.Failed)
		a.deps.Notifier.Error(ctx, messages.Get(messages.SyncError, map[string]any{
			"successCount": result.Succeeded,
			"errorCount":   result.Failed,
		}))
		return result, nil

	default:
		return Result{}, err
	}
}

// Approve saves and then approves every requisition in the grid. Approved
// requisitions leave the batch store. If some fail, the grid keeps only the
// failed ones with their errors; otherwise the user is sent back to the
// approval list.
func (a *Aggregator) Approve(ctx context.Context) (Result, error) {
	if !a.deps.Confirmer.Confirm(ctx, messages.ApprovalConfirm) {
		return Result{}, ErrNotConfirmed
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	submitted := len(a.records)
	failures := make(map[string]string)

	saved, err := a.deps.Remote.BatchSave(ctx, a.records)
	if err := collectFailures(err, idsOf(a.records), saved, failures); err != nil {
		return Result{}, err
	}

	var approved []requisition.Requisition
	if toApprove := idsOfRequisitions(saved); len(toApprove) > 0 {
		approved, err = a.deps.Remote.BatchApprove(ctx, toApprove)
		if err := collectFailures(err, toApprove, approved, failures); err != nil {
			return Result{}, err
		}
	}

	approvedIDs := make(map[string]bool, len(approved))
	for _, r := range approved {
		approvedIDs[r.ID] = true
		if err := a.deps.Store.RemoveBy(ctx, "id", r.ID); err != nil {
			return Result{}, apperror.NewStorage(err)
		}
	}

	if len(approved) < submitted {
		var remaining []requisition.Record
		for _, rec := range a.records {
			if approvedIDs[rec.Key()] {
				continue
			}
			rec.Meta.Error = failures[rec.Key()]
			if rec.Meta.Error == "" {
				rec.Meta.Error = messages.Get(messages.ApproveFailed, nil)
			}
			remaining = append(remaining, rec)
		}

		a.snapshot = without(a.snapshot, approvedIDs)
		a.build(remaining, false)

		result := Result{Succeeded: len(approved), Failed: len(remaining)}
		a.log.Warnw("batch approval partially failed", "succeeded", result.Succeeded, "failed", result.Failed)
		a.deps.Notifier.Error(ctx, messages.Get(messages.ApprovalError, map[string]any{
			"errorCount": result.Failed,
		}))
		return result, nil
	}

	a.deps.Notifier.Success(ctx, messages.Get(messages.ApprovalSuccess, map[string]any{
		"successCount": len(approved),
	}))
	if a.deps.Navigator != nil {
		a.deps.Navigator.GoToPreviousState(ctx, ApprovalListState)
	}
	return Result{Succeeded: len(approved), NextState: ApprovalListState}, nil
}

// collectFailures records the server's message for every id missing from
// the succeeded set. Errors other than a partial failure are returned.
func collectFailures(err error, submitted []string, succeeded []requisition.Requisition, failures map[string]string) error {
	if err == nil {
		return nil
	}
	var partial *remote.PartialFailure
	if !errors.As(err, &partial) {
		return err
	}

	ok := make(map[string]bool, len(succeeded))
	for _, r := range succeeded {
		ok[r.ID] = true
	}
	for _, id := range submitted {
		if ok[id] {
			continue
		}
		if msg, found := partial.MessageFor(id); found {
			failures[id] = msg
		}
	}
	return nil
}

func idsOfRequisitions(reqs []requisition.Requisition) []string {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}

func without(records []requisition.Record, drop map[string]bool) []requisition.Record {
	var out []requisition.Record
	for _, r := range records {
		if !drop[r.Key()] {
			out = append(out, r)
		}
	}
	return out
}
