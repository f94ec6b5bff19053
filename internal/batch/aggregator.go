// Package batch implements the batch approval grid: requisitions aggregated
// per product across facilities, kept consistent under edits, and saved or
// approved in bulk.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/messages"
	"requisition-sync/internal/notification"
	"requisition-sync/internal/requisition"
	"requisition-sync/internal/store"
	applog "requisition-sync/pkg/logger"
)

// ApprovalListState is where the user goes back to after a full approval.
const ApprovalListState = "openlmis.requisitions.approvalList"

// ErrNotConfirmed is returned when the user declines a confirmation.
var ErrNotConfirmed = errors.New("batch approval action was not confirmed")

// Remote is the bulk part of the upstream API.
type Remote interface {
	BatchSave(ctx context.Context, records []requisition.Record) ([]requisition.Requisition, error)
	BatchApprove(ctx context.Context, ids []string) ([]requisition.Requisition, error)
}

// Confirmer asks the user to confirm an action described by a message key.
type Confirmer interface {
	Confirm(ctx context.Context, messageKey string) bool
}

// Navigator moves the user back to an earlier screen.
type Navigator interface {
	GoToPreviousState(ctx context.Context, state string)
}

// Deps are the collaborators of an Aggregator. Navigator is optional.
type Deps struct {
	Remote    Remote
	Store     store.Collection[requisition.Record]
	Notifier  notification.Notifier
	Confirmer Confirmer
	Navigator Navigator
	Log       *applog.Logger
}

// Product is the aggregate of one orderable across all requisitions.
type Product struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	TotalQuantity int64           `json:"totalQuantity"`
	Requisitions  []string        `json:"requisitions"`
}

// Column is one column of the grid. Per-requisition columns carry the
// requisition id as their id; sticky columns are numbered by position.
type Column struct {
	ID            string   `json:"id"`
	RequisitionID string   `json:"requisitionId,omitempty"`
	Sticky        bool     `json:"sticky"`
	Right         bool     `json:"right"`
	Names         []string `json:"names"`
}

// Entry is a requisition in the grid with its own total cost.
type Entry struct {
	Record    requisition.Record `json:"record"`
	TotalCost decimal.Decimal    `json:"totalCost"`
}

// View is a point-in-time copy of the grid.
type View struct {
	Requisitions []Entry            `json:"requisitions"`
	Products     map[string]Product `json:"products"`
	ProductOrder []string           `json:"productOrder"`
	Columns      []Column           `json:"columns"`
	TotalCost    decimal.Decimal    `json:"totalCost"`
}

// Result summarises a bulk save or approval.
type Result struct {
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	NextState string `json:"nextState,omitempty"`
}

// Aggregator holds the grid state of one batch approval session. All
// methods are safe for concurrent use.
type Aggregator struct {
	mu   sync.Mutex
	deps Deps
	log  *applog.Logger

	records      []requisition.Record
	totals       map[string]decimal.Decimal
	products     map[string]*Product
	productOrder []string
	columns      []Column
	totalCost    decimal.Decimal

	// snapshot is the state at load or at the last successful sync.
	snapshot []requisition.Record
}

// New builds the grid. Only AUTHORIZED and IN_APPROVAL requisitions can be
// batch approved.
func New(records []requisition.Record, deps Deps) (*Aggregator, error) {
	for _, rec := range records {
		if !rec.Requisition.Status.IsBatchApprovable() {
			return nil, apperror.NewValidation(
				fmt.Sprintf("requisition %s has status %s and cannot be batch approved", rec.Key(), rec.Requisition.Status),
			).WithDetail("id", rec.Key())
		}
	}
	if deps.Log == nil {
		deps.Log = applog.Nop()
	}

	a := &Aggregator{deps: deps, log: deps.Log.WithComponent("batch")}
	a.build(records, true)
	return a, nil
}

// View returns a deep copy of the current grid.
func (a *Aggregator) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := View{
		Requisitions: make([]Entry, 0, len(a.records)),
		Products:     make(map[string]Product, len(a.products)),
		ProductOrder: append([]string(nil), a.productOrder...),
		Columns:      make([]Column, 0, len(a.columns)),
		TotalCost:    a.totalCost,
	}
	for _, rec := range a.records {
		v.Requisitions = append(v.Requisitions, Entry{Record: rec.Clone(), TotalCost: a.totals[rec.Key()]})
	}
	for id, p := range a.products {
		cp := *p
		cp.Requisitions = append([]string(nil), p.Requisitions...)
		v.Products[id] = cp
	}
	for _, c := range a.columns {
		c.Names = append([]string(nil), c.Names...)
		v.Columns = append(v.Columns, c)
	}
	return v
}

// IDs returns the ids of the requisitions in the grid, in grid order.
func (a *Aggregator) IDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return idsOf(a.records)
}

// build replaces the grid with records. Missing costs and quantities are
// stored as zero.
func (a *Aggregator) build(records []requisition.Record, takeSnapshot bool) {
	a.records = make([]requisition.Record, 0, len(records))
	a.totals = make(map[string]decimal.Decimal, len(records))
	a.products = make(map[string]*Product)
	a.productOrder = nil
	a.columns = nil
	a.totalCost = decimal.Zero

	a.addColumn(true, false, "", messages.ProductCode)
	a.addColumn(true, false, "", messages.Product)

	for _, src := range records {
		rec := src.Clone()
		a.addColumn(false, false, rec.Key(), messages.ApprovedQuantity, messages.Cost)

		for i := range rec.Requisition.LineItems {
			li := &rec.Requisition.LineItems[i]
			cost := requisition.CostOf(*li)
			quantity := requisition.QuantityOf(*li)
			li.TotalCost = &cost
			li.ApprovedQuantity = &quantity

			a.totalCost = a.totalCost.Add(cost)

			id := li.Orderable.ID
			p, ok := a.products[id]
			if !ok {
				p = &Product{
					Code:      li.Orderable.ProductCode,
					Name:      li.Orderable.FullProductName,
					TotalCost: decimal.Zero,
				}
				a.products[id] = p
				a.productOrder = append(a.productOrder, id)
			}
			p.Requisitions = append(p.Requisitions, rec.Key())
			p.TotalCost = p.TotalCost.Add(cost)
			p.TotalQuantity += quantity
		}

		a.totals[rec.Key()] = requisitionTotal(rec)
		a.records = append(a.records, rec)
	}

	a.addColumn(true, true, "", messages.TotalQuantityForAllFacilities)
	a.addColumn(true, true, "", messages.TotalCostForAllFacilities)

	if takeSnapshot {
		a.snapshot = cloneAll(a.records)
	}
}

func (a *Aggregator) addColumn(sticky, right bool, requisitionID string, names ...string) {
	id := requisitionID
	if id == "" {
		id = strconv.Itoa(len(a.columns))
	}
	a.columns = append(a.columns, Column{
		ID:            id,
		RequisitionID: requisitionID,
		Sticky:        sticky,
		Right:         right,
		Names:         names,
	})
}

// UpdateLineItem applies the approved quantity and skip flag of item to the
// matching line item of the requisition, recalculates its cost and refreshes
// every total it contributes to. The edited requisition is saved to the
// batch store as modified.
func (a *Aggregator) UpdateLineItem(ctx context.Context, requisitionID string, item requisition.LineItem) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updateLineItem(ctx, requisitionID, item)
}

// SetApprovedQuantity is UpdateLineItem for the common quantity-only edit.
// The skip flag of the line item is left as it is.
func (a *Aggregator) SetApprovedQuantity(ctx context.Context, requisitionID, orderableID string, quantity int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	item := requisition.LineItem{Orderable: requisition.Orderable{ID: orderableID}}
	if rec := a.find(requisitionID); rec != nil {
		if li := rec.Requisition.LineItem(orderableID); li != nil {
			item.Skipped = li.Skipped
		}
	}
	item.ApprovedQuantity = &quantity
	return a.updateLineItem(ctx, requisitionID, item)
}

// updateLineItem requires a.mu.
func (a *Aggregator) updateLineItem(ctx context.Context, requisitionID string, item requisition.LineItem) error {
	if item.ApprovedQuantity != nil && *item.ApprovedQuantity < 0 {
		return apperror.NewValidation("approved quantity cannot be negative")
	}

	rec := a.find(requisitionID)
	if rec == nil {
		return apperror.NewNotFound("requisition", requisitionID)
	}
	li := rec.Requisition.LineItem(item.Orderable.ID)
	if li == nil {
		return apperror.NewNotFound("line item", item.Orderable.ID).WithDetail("requisitionId", requisitionID)
	}

	quantity := requisition.QuantityOf(item)
	li.ApprovedQuantity = &quantity
	li.Skipped = item.Skipped
	cost := requisition.TotalCost(*li)
	li.TotalCost = &cost
	rec.Meta.Modified = true

	a.refreshProduct(item.Orderable.ID)
	a.totals[requisitionID] = requisitionTotal(*rec)

	if err := a.deps.Store.Put(ctx, *rec); err != nil {
		return apperror.NewStorage(err)
	}
	return nil
}

// refreshProduct re-sums the product bucket and the grand total over all
// requisitions.
func (a *Aggregator) refreshProduct(orderableID string) {
	p := a.products[orderableID]
	p.TotalCost = decimal.Zero
	p.TotalQuantity = 0
	a.totalCost = decimal.Zero

	for _, rec := range a.records {
		for _, li := range rec.Requisition.LineItems {
			cost := requisition.CostOf(li)
			a.totalCost = a.totalCost.Add(cost)
			if li.Orderable.ID == orderableID {
				p.TotalCost = p.TotalCost.Add(cost)
				p.TotalQuantity += requisition.QuantityOf(li)
			}
		}
	}
}

// Revert discards every edit since load or the last successful sync.
func (a *Aggregator) Revert(ctx context.Context) error {
	if !a.deps.Confirmer.Confirm(ctx, messages.RevertConfirm) {
		return ErrNotConfirmed
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.build(a.snapshot, false)

	// Edits were saved as they were made; put the snapshot copies back.
	for _, rec := range a.records {
		rec.Meta.Modified = false
		if err := a.deps.Store.Put(ctx, rec); err != nil {
			return apperror.NewStorage(err)
		}
	}
	return nil
}

func (a *Aggregator) find(id string) *requisition.Record {
	for i := range a.records {
		if a.records[i].Key() == id {
			return &a.records[i]
		}
	}
	return nil
}

func requisitionTotal(rec requisition.Record) decimal.Decimal {
	total := decimal.Zero
	for _, li := range rec.Requisition.LineItems {
		total = total.Add(requisition.CostOf(li))
	}
	return total
}

func cloneAll(records []requisition.Record) []requisition.Record {
	out := make([]requisition.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func idsOf(records []requisition.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.Key()
	}
	return ids
}
