package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"requisition-sync/internal/batch"
	"requisition-sync/internal/mw"
	"requisition-sync/internal/syncer"
)

// forConvertCacheTTL bounds how stale the convert-to-order list may be.
const forConvertCacheTTL = 30 * time.Second

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sync     *syncer.Coordinator
	sessions *batch.Sessions
	batch    batch.Deps
	db       *gorm.DB
	webpush  *webpush.Options

	// forConvert caches the convert-to-order list. It is bypassed offline
	// and dropped after every conversion.
	forConvert *mw.ResponseCache
}

// NewHandler creates a new API handler. batchDeps is the template every
// batch approval session is created with.
func NewHandler(coordinator *syncer.Coordinator, sessions *batch.Sessions, batchDeps batch.Deps, db *gorm.DB, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		sync:       coordinator,
		sessions:   sessions,
		batch:      batchDeps,
		db:         db,
		webpush:    webpushOptions,
		forConvert: mw.NewResponseCache(forConvertCacheTTL, coordinator.IsOffline),
	}
}
