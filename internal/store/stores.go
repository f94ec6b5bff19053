package store

import (
	"time"

	"gorm.io/gorm"

	"requisition-sync/internal/requisition"
)

// Stores bundles the four local collections the sync engine works with.
type Stores struct {
	Requisitions      Collection[requisition.Record]
	BatchRequisitions Collection[requisition.Record]
	StatusMessages    Collection[requisition.StatusMessage]
	OnlineOnly        Collection[requisition.OnlineOnly]
}

// NewStores builds GORM-backed collections sharing one database.
func NewStores(db *gorm.DB, cacheTTL time.Duration) *Stores {
	return &Stores{
		Requisitions:      NewGormCollection[requisition.Record](db, Requisitions, cacheTTL),
		BatchRequisitions: NewGormCollection[requisition.Record](db, BatchApproveRequisitions, cacheTTL),
		StatusMessages:    NewGormCollection[requisition.StatusMessage](db, StatusMessages, cacheTTL),
		OnlineOnly:        NewGormCollection[requisition.OnlineOnly](db, OnlineOnly, cacheTTL),
	}
}
