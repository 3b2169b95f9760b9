package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"revintel/internal/repository"
	"revintel/internal/service"
)

// ForecastHandler exposes forecast generation and the persisted-forecast
// read/write surface.
type ForecastHandler struct {
	Service *service.ForecastService
	Repo    repository.Repository
}

func (h *ForecastHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/workspaces/:workspace_id/forecasts", h.generate)
	r.GET("/api/v1/workspaces/:workspace_id/forecasts", h.list)
	r.GET("/api/v1/forecasts/:id", h.get)
	r.POST("/api/v1/forecasts/:id/resolve", h.resolve)
}

type generateRequest struct {
	HorizonDays int    `json:"horizon_days"`
	Scenario    string `json:"scenario"`
}

func (h *ForecastHandler) generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	forecast, err := h.Service.GenerateForecast(c.Request.Context(), service.ForecastRequest{
		WorkspaceID: c.Param("workspace_id"),
		HorizonDays: body.HorizonDays,
		Scenario:    body.Scenario,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, forecast, nil)
}

func (h *ForecastHandler) list(c *gin.Context) {
	params := repository.ListForecastsParams{
		WorkspaceID: c.Param("workspace_id"),
		Limit:       queryInt(c, "limit", 50),
		Offset:      queryInt(c, "offset", 0),
	}
	switch strings.ToLower(c.Query("resolved")) {
	case "true":
		v := true
		params.Resolved = &v
	case "false":
		v := false
		params.Resolved = &v
	}
	items, err := h.Repo.ListForecasts(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountForecasts(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, map[string]any{
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

func (h *ForecastHandler) get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid forecast id")
		return
	}
	item, err := h.Repo.GetForecastByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		BadRequest(c, "forecast not found")
		return
	}
	Ok(c, item, nil)
}

type resolveRequest struct {
	ActualRevenue decimal.Decimal `json:"actual_revenue"`
}

func (h *ForecastHandler) resolve(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid forecast id")
		return
	}
	var body resolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	accuracy, err := h.Service.Tracker.Resolve(c.Request.Context(), id, body.ActualRevenue)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"forecast_id":    id,
		"actual_revenue": body.ActualRevenue,
		"accuracy_score": accuracy,
	}, nil)
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
