package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"revintel/internal/models"
	"revintel/internal/outcome"
	"revintel/internal/repository"
)

// AccuracyHandler exposes the forecast accuracy history and the revenue-goal
// accessor that feeds pipeline coverage.
type AccuracyHandler struct {
	Tracker *outcome.Tracker
	Repo    repository.Repository
}

func (h *AccuracyHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/workspaces/:workspace_id/accuracy", h.metrics)
	r.PUT("/api/v1/workspaces/:workspace_id/goals", h.putGoal)
}

func (h *AccuracyHandler) metrics(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	m, err := h.Tracker.AccuracyMetrics(c.Request.Context(), c.Param("workspace_id"), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, m, nil)
}

type goalRequest struct {
	HorizonDays int             `json:"horizon_days"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *AccuracyHandler) putGoal(c *gin.Context) {
	var body goalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if body.Amount.IsNegative() {
		BadRequest(c, "amount must be non-negative")
		return
	}
	item := &models.RevenueGoal{
		WorkspaceID: c.Param("workspace_id"),
		HorizonDays: body.HorizonDays,
		Amount:      body.Amount,
	}
	if err := h.Repo.UpsertRevenueGoal(c.Request.Context(), item); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}
