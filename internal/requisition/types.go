// Package requisition holds the requisition wire model, the client-only
// sync bookkeeping kept next to it, and the pure rules shared by the sync
// engine: cost calculation, offline search predicates and batch projections.
package requisition

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Facility is a reference to a supplying or requesting facility.
type Facility struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// Program is a reference to a supply program.
type Program struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// ProcessingSchedule groups processing periods.
type ProcessingSchedule struct {
	ID           string     `json:"id"`
	Code         string     `json:"code,omitempty"`
	Name         string     `json:"name,omitempty"`
	ModifiedDate *Timestamp `json:"modifiedDate"`
}

// ProcessingPeriod is the reporting period a requisition covers.
type ProcessingPeriod struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name,omitempty"`
	StartDate          *Date               `json:"startDate"`
	EndDate            *Date               `json:"endDate"`
	ProcessingSchedule *ProcessingSchedule `json:"processingSchedule,omitempty"`
}

// Orderable is a product reference with its pack rounding rules.
type Orderable struct {
	ID                    string `json:"id"`
	ProductCode           string `json:"productCode"`
	FullProductName       string `json:"fullProductName"`
	NetContent            int64  `json:"netContent"`
	PackRoundingThreshold int64  `json:"packRoundingThreshold"`
	RoundToZero           bool   `json:"roundToZero"`
}

// LineItem is one product line of a requisition. TotalCost is derived: the
// server recalculates it, so it is nulled on upload.
type LineItem struct {
	ID               string           `json:"id"`
	Orderable        Orderable        `json:"orderable"`
	ApprovedQuantity *int64           `json:"approvedQuantity"`
	PricePerPack     *decimal.Decimal `json:"pricePerPack"`
	TotalCost        *decimal.Decimal `json:"totalCost"`
	Skipped          bool             `json:"skipped"`
}

// Requisition is the wire representation exchanged with the server.
type Requisition struct {
	ID               string           `json:"id"`
	Status           Status           `json:"status"`
	Emergency        bool             `json:"emergency"`
	Facility         Facility         `json:"facility"`
	Program          Program          `json:"program"`
	ProcessingPeriod ProcessingPeriod `json:"processingPeriod"`
	CreatedDate      *Timestamp       `json:"createdDate"`
	ModifiedDate     *Timestamp       `json:"modifiedDate"`
	StatusChanges    json.RawMessage  `json:"statusChanges,omitempty"`
	LineItems        []LineItem       `json:"requisitionLineItems"`
}

// SyncMeta is client-only bookkeeping. It is persisted locally and never
// sent to the server.
type SyncMeta struct {
	Modified         bool   `json:"modified"`
	AvailableOffline bool   `json:"availableOffline"`
	Outdated         bool   `json:"outdated"`
	Error            string `json:"error,omitempty"`
}

// Record is a requisition together with its sync bookkeeping. It is the
// unit stored in the requisitions and batchApproveRequisitions collections.
type Record struct {
	Requisition Requisition `json:"requisition"`
	Meta        SyncMeta    `json:"meta"`
}

// Key returns the storage key of the record.
func (r Record) Key() string {
	return r.Requisition.ID
}

// Upload projects the record onto the payload accepted by the server.
func (r Record) Upload() Requisition {
	out := r.Requisition.Clone()
	for i := range out.LineItems {
		out.LineItems[i].TotalCost = nil
	}
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{Requisition: r.Requisition.Clone(), Meta: r.Meta}
}

// Clone returns a deep copy of the requisition.
func (r Requisition) Clone() Requisition {
	c := r
	c.CreatedDate = r.CreatedDate.clone()
	c.ModifiedDate = r.ModifiedDate.clone()
	c.ProcessingPeriod.StartDate = r.ProcessingPeriod.StartDate.clone()
	c.ProcessingPeriod.EndDate = r.ProcessingPeriod.EndDate.clone()
	if s := r.ProcessingPeriod.ProcessingSchedule; s != nil {
		schedule := *s
		schedule.ModifiedDate = s.ModifiedDate.clone()
		c.ProcessingPeriod.ProcessingSchedule = &schedule
	}
	if r.StatusChanges != nil {
		c.StatusChanges = append(json.RawMessage(nil), r.StatusChanges...)
	}
	if r.LineItems != nil {
		c.LineItems = make([]LineItem, len(r.LineItems))
		for i, li := range r.LineItems {
			c.LineItems[i] = li.Clone()
		}
	}
	return c
}

// Clone returns a deep copy of the line item.
func (li LineItem) Clone() LineItem {
	c := li
	c.ApprovedQuantity = clonePtr(li.ApprovedQuantity)
	c.PricePerPack = clonePtr(li.PricePerPack)
	c.TotalCost = clonePtr(li.TotalCost)
	return c
}

// LineItem returns the line item for the given orderable, if present.
func (r *Requisition) LineItem(orderableID string) *LineItem {
	for i := range r.LineItems {
		if r.LineItems[i].Orderable.ID == orderableID {
			return &r.LineItems[i]
		}
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// StatusMessage is a comment attached to a requisition status change.
type StatusMessage struct {
	ID              string     `json:"id"`
	RequisitionID   string     `json:"requisitionId"`
	AuthorID        string     `json:"authorId,omitempty"`
	AuthorFirstName string     `json:"authorFirstName,omitempty"`
	AuthorLastName  string     `json:"authorLastName,omitempty"`
	Status          Status     `json:"status"`
	Body            string     `json:"body"`
	CreatedDate     *Timestamp `json:"createdDate"`
}

// Key returns the storage key of the message.
func (m StatusMessage) Key() string {
	return m.ID
}

// OnlineOnly flags a requisition that must never be cached offline.
type OnlineOnly struct {
	ID string `json:"id"`
}

// Key returns the storage key of the flag.
func (o OnlineOnly) Key() string {
	return o.ID
}

// Detail is a single requisition together with its status messages.
type Detail struct {
	Record         Record          `json:"record"`
	StatusMessages []StatusMessage `json:"statusMessages"`
}

// Page is a paginated result envelope.
type Page[T any] struct {
	Content       []T `json:"content"`
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages,omitempty"`
}

// ConvertItem asks the server to convert a requisition into an order
// shipped from the given depot.
type ConvertItem struct {
	RequisitionID    string `json:"requisitionId"`
	SupplyingDepotID string `json:"supplyingDepotId"`
}

// ConvertCandidate is an approved requisition with the depots able to
// supply it.
type ConvertCandidate struct {
	Requisition     Requisition `json:"requisition"`
	SupplyingDepots []Facility  `json:"supplyingDepots"`
}

// InitiateParams selects the requisition to create.
type InitiateParams struct {
	FacilityID string
	ProgramID  string
	PeriodID   string
	Emergency  bool
}
