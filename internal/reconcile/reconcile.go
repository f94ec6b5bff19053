// Package reconcile decides how a requisition fetched from the server is
// merged with a locally cached copy, and persists the outcome.
package reconcile

import (
	"context"

	"requisition-sync/internal/requisition"
	"requisition-sync/internal/store"
	applog "requisition-sync/pkg/logger"
)

// Outcome is the result of comparing a server requisition with its local copy.
type Outcome int

const (
	// Fresh means no local copy exists.
	Fresh Outcome = iota
	// Unchanged means the local copy has the server's modification date.
	Unchanged
	// Outdated means the server has a different version than the local copy.
	Outdated
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Unchanged:
		return "unchanged"
	case Outdated:
		return "outdated"
	}
	return "unknown"
}

// Decide compares the server copy with the local one, which may be nil.
func Decide(server requisition.Requisition, local *requisition.Record) Outcome {
	if local == nil {
		return Fresh
	}
	if local.Requisition.ModifiedDate.Equal(server.ModifiedDate) {
		return Unchanged
	}
	return Outdated
}

// Resolver reconciles server requisitions against the single and batch
// stores. Batch copies take precedence over single copies.
type Resolver struct {
	single     store.Collection[requisition.Record]
	batch      store.Collection[requisition.Record]
	onlineOnly store.Collection[requisition.OnlineOnly]
	log        *applog.Logger
}

// NewResolver creates a resolver over the given stores.
func NewResolver(stores *store.Stores, log *applog.Logger) *Resolver {
	return &Resolver{
		single:     stores.Requisitions,
		batch:      stores.BatchRequisitions,
		onlineOnly: stores.OnlineOnly,
		log:        log.WithComponent("reconcile"),
	}
}

// Reconcile merges server with whatever local copy exists and returns the
// record to show to the user. Local edits are never overwritten: an
// unchanged local copy is re-persisted as is, a stale one is flagged
// outdated and persisted once.
func (r *Resolver) Reconcile(ctx context.Context, server requisition.Requisition) (requisition.Record, error) {
	target, local, err := r.findLocal(ctx, server.ID)
	if err != nil {
		return requisition.Record{}, err
	}

	result := requisition.Record{Requisition: server}
	switch Decide(server, local) {
	case Unchanged:
		local.Meta.Outdated = false
		local.Meta.AvailableOffline = true
		if err := target.Put(ctx, *local); err != nil {
			return requisition.Record{}, err
		}
		result.Meta.AvailableOffline = true

	case Outdated:
		local.Meta.Outdated = true
		if err := target.Put(ctx, *local); err != nil {
			return requisition.Record{}, err
		}
		r.log.Infow("local requisition is outdated",
			"id", server.ID, "store", target.Name())
		result.Meta.AvailableOffline = true
		result.Meta.Outdated = true

	case Fresh:
		onlineOnly, err := r.IsOnlineOnly(ctx, server.ID)
		if err != nil {
			return requisition.Record{}, err
		}
		if !onlineOnly {
			if err := r.single.Put(ctx, result); err != nil {
				return requisition.Record{}, err
			}
		}
	}
	return result, nil
}

// IsOnlineOnly reports whether id must never be cached offline.
func (r *Resolver) IsOnlineOnly(ctx context.Context, id string) (bool, error) {
	_, found, err := r.onlineOnly.Get(ctx, id)
	return found, err
}

func (r *Resolver) findLocal(ctx context.Context, id string) (store.Collection[requisition.Record], *requisition.Record, error) {
	for _, coll := range []store.Collection[requisition.Record]{r.batch, r.single} {
		local, found, err := coll.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if found {
			return coll, &local, nil
		}
	}
	return nil, nil, nil
}
