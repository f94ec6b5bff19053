package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/batch"
	"requisition-sync/internal/requisition"
)

type openBatchRequest struct {
	IDs     []string `json:"ids" binding:"required,min=1"`
	Offline *bool    `json:"offline"`
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

type lineItemRequest struct {
	ApprovedQuantity *int64 `json:"approvedQuantity"`
	Skipped          bool   `json:"skipped"`
}

// OpenBatch handles POST /api/batch-approvals.
func (h *Handler) OpenBatch(c *gin.Context) {
	var req openBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.NewValidation("at least one requisition id is required"))
		return
	}
	offline := h.sync.IsOffline()
	if req.Offline != nil {
		offline = *req.Offline
	}

	ctx := c.Request.Context()
	if err := h.sync.StageForBatch(ctx, req.IDs, offline); err != nil {
		_ = c.Error(err)
		return
	}
	records, err := h.sync.BatchGet(ctx, req.IDs, offline)
	if err != nil {
		_ = c.Error(err)
		return
	}

	agg, err := batch.New(records, h.batch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id := h.sessions.Open(agg)
	c.JSON(http.StatusCreated, gin.H{"session": id, "view": agg.View()})
}

func (h *Handler) session(c *gin.Context) (*batch.Aggregator, bool) {
	agg, ok := h.sessions.Get(c.Param("session"))
	if !ok {
		_ = c.Error(apperror.NewNotFound("batch approval session", c.Param("session")))
	}
	return agg, ok
}

// GetBatch handles GET /api/batch-approvals/:session.
func (h *Handler) GetBatch(c *gin.Context) {
	agg, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, agg.View())
}

// CloseBatch handles DELETE /api/batch-approvals/:session.
func (h *Handler) CloseBatch(c *gin.Context) {
	h.sessions.Close(c.Param("session"))
	c.Status(http.StatusNoContent)
}

// UpdateBatchLineItem handles
// PUT /api/batch-approvals/:session/requisitions/:id/line-items/:orderable.
func (h *Handler) UpdateBatchLineItem(c *gin.Context) {
	agg, ok := h.session(c)
	if !ok {
		return
	}
	var req lineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.NewValidation(err.Error()))
		return
	}

	item := requisition.LineItem{
		Orderable:        requisition.Orderable{ID: c.Param("orderable")},
		ApprovedQuantity: req.ApprovedQuantity,
		Skipped:          req.Skipped,
	}
	if err := agg.UpdateLineItem(c.Request.Context(), c.Param("id"), item); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, agg.View())
}

// RevertBatch handles POST /api/batch-approvals/:session/revert.
func (h *Handler) RevertBatch(c *gin.Context) {
	agg, ok := h.session(c)
	if !ok {
		return
	}
	ctx, ok := confirmedContext(c)
	if !ok {
		return
	}
	if err := agg.Revert(ctx); err != nil {
		h.batchError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg.View())
}

// SyncBatch handles POST /api/batch-approvals/:session/sync.
func (h *Handler) SyncBatch(c *gin.Context) {
	agg, ok := h.session(c)
	if !ok {
		return
	}
	result, err := agg.Sync(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "view": agg.View()})
}

// ApproveBatch handles POST /api/batch-approvals/:session/approve. The
// session is closed once everything is approved.
func (h *Handler) ApproveBatch(c *gin.Context) {
	agg, ok := h.session(c)
	if !ok {
		return
	}
	ctx, ok := confirmedContext(c)
	if !ok {
		return
	}
	result, err := agg.Approve(ctx)
	if err != nil {
		h.batchError(c, err)
		return
	}
	if result.Failed == 0 {
		h.sessions.Close(c.Param("session"))
		c.JSON(http.StatusOK, gin.H{"result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "view": agg.View()})
}

// confirmedContext records the user's answer from the request body in the
// request context. An empty body means not confirmed.
func confirmedContext(c *gin.Context) (context.Context, bool) {
	var req confirmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperror.NewValidation(err.Error()))
			return nil, false
		}
	}
	return batch.WithConfirmation(c.Request.Context(), req.Confirmed), true
}

func (h *Handler) batchError(c *gin.Context, err error) {
	if errors.Is(err, batch.ErrNotConfirmed) {
		c.JSON(http.StatusPreconditionRequired, gin.H{
			"code":    "CONFIRMATION_REQUIRED",
			"message": err.Error(),
		})
		return
	}
	_ = c.Error(err)
}
