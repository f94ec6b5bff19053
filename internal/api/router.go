package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"requisition-sync/config"
	"requisition-sync/internal/mw"
	applog "requisition-sync/pkg/logger"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig, log *applog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(log), mw.ErrorHandler())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		reqs := api.Group("/requisitions")
		reqs.GET("/search", h.SearchRequisitions)
		reqs.GET("/forConvert", h.forConvert.Middleware(), h.RequisitionsForConvert)
		reqs.POST("/initiate", h.InitiateRequisition)
		reqs.POST("/convertToOrder", h.ConvertToOrder)
		reqs.GET("/:id", h.GetRequisition)
		reqs.PUT("/:id/onlineOnly", h.SetOnlineOnly)
		reqs.DELETE("/:id/offline", h.RemoveOffline)

		batches := api.Group("/batch-approvals")
		batches.POST("", h.OpenBatch)
		batches.GET("/:session", h.GetBatch)
		batches.DELETE("/:session", h.CloseBatch)
		batches.PUT("/:session/requisitions/:id/line-items/:orderable", h.UpdateBatchLineItem)
		batches.POST("/:session/revert", h.RevertBatch)
		batches.POST("/:session/sync", h.SyncBatch)
		batches.POST("/:session/approve", h.ApproveBatch)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
