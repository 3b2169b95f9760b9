package handler

import (
	"github.com/gin-gonic/gin"

	"revintel/internal/service"
)

// ScoreHandler exposes deal and workspace health scores.
type ScoreHandler struct {
	Service *service.HealthService
}

func (h *ScoreHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/deals/:deal_id/health", h.dealHealth)
	r.GET("/api/v1/workspaces/:workspace_id/health", h.workspaceHealth)
}

func (h *ScoreHandler) dealHealth(c *gin.Context) {
	hs, err := h.Service.DealHealth(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, hs, nil)
}

func (h *ScoreHandler) workspaceHealth(c *gin.Context) {
	wh, err := h.Service.WorkspaceHealth(c.Request.Context(), c.Param("workspace_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, wh, nil)
}
