package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"requisition-sync/internal/apperror"
	"requisition-sync/internal/requisition"
)

// offlineParam reads the offline query flag, defaulting to the current
// connectivity state.
func (h *Handler) offlineParam(c *gin.Context) (bool, error) {
	raw := c.Query("offline")
	if raw == "" {
		return h.sync.IsOffline(), nil
	}
	offline, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.NewValidation("offline must be a boolean")
	}
	return offline, nil
}

// GetRequisition handles GET /api/requisitions/:id.
func (h *Handler) GetRequisition(c *gin.Context) {
	detail, err := h.sync.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SearchRequisitions handles GET /api/requisitions/search.
func (h *Handler) SearchRequisitions(c *gin.Context) {
	offline, err := h.offlineParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	params, err := requisition.ParseSearchParams(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(apperror.NewValidation(err.Error()))
		return
	}

	page, err := h.sync.Search(c.Request.Context(), offline, params)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// InitiateRequisition handles POST /api/requisitions/initiate.
func (h *Handler) InitiateRequisition(c *gin.Context) {
	p := requisition.InitiateParams{
		FacilityID: c.Query("facility"),
		ProgramID:  c.Query("program"),
		PeriodID:   c.Query("suggestedPeriod"),
	}
	if p.FacilityID == "" || p.ProgramID == "" || p.PeriodID == "" {
		_ = c.Error(apperror.NewValidation("facility, program and suggestedPeriod are required"))
		return
	}
	if raw := c.Query("emergency"); raw != "" {
		emergency, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperror.NewValidation("emergency must be a boolean"))
			return
		}
		p.Emergency = emergency
	}

	rec, err := h.sync.Initiate(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// RequisitionsForConvert handles GET /api/requisitions/forConvert.
func (h *Handler) RequisitionsForConvert(c *gin.Context) {
	page, err := h.sync.ForConvert(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ConvertToOrder handles POST /api/requisitions/convertToOrder.
func (h *Handler) ConvertToOrder(c *gin.Context) {
	var items []requisition.ConvertItem
	if err := c.ShouldBindJSON(&items); err != nil || len(items) == 0 {
		_ = c.Error(apperror.NewValidation("a non-empty list of requisitions to convert is required"))
		return
	}
	for _, item := range items {
		if item.RequisitionID == "" || item.SupplyingDepotID == "" {
			_ = c.Error(apperror.NewValidation("requisitionId and supplyingDepotId are required"))
			return
		}
	}

	err := h.sync.ConvertToOrder(c.Request.Context(), items)
	// Even a failed call may have converted some of the items upstream.
	h.forConvert.Invalidate()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type onlineOnlyRequest struct {
	OnlineOnly *bool `json:"onlineOnly" binding:"required"`
}

// SetOnlineOnly handles PUT /api/requisitions/:id/onlineOnly.
func (h *Handler) SetOnlineOnly(c *gin.Context) {
	var req onlineOnlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.NewValidation("onlineOnly is required"))
		return
	}
	if err := h.sync.SetOnlineOnly(c.Request.Context(), c.Param("id"), *req.OnlineOnly); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveOffline handles DELETE /api/requisitions/:id/offline.
func (h *Handler) RemoveOffline(c *gin.Context) {
	if err := h.sync.RemoveOffline(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
