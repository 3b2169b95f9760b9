package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"revintel/internal/models"
)

type ListForecastsParams struct {
	WorkspaceID string
	Resolved    *bool
	Limit       int
	Offset      int
}

// Repository is the storage surface the engine depends on. Deal tables are
// written by the surrounding CRUD application; the engine only reads them.
// Forecast rows are the engine's own records.
type Repository interface {
	// Deal snapshot source.
	ListOpenDeals(ctx context.Context, workspaceID string) ([]models.Deal, error)
	ListDeals(ctx context.Context, workspaceID string) ([]models.Deal, error)
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	ListStageTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error)
	ListProbabilityHistory(ctx context.Context, dealID string, limit int) ([]int, error)
	SumWonDealValue(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, error)

	// Forecast persistence.
	InsertForecast(ctx context.Context, item *models.Forecast) error
	GetForecastByID(ctx context.Context, id uint64) (*models.Forecast, error)
	ListForecasts(ctx context.Context, params ListForecastsParams) ([]models.Forecast, error)
	CountForecasts(ctx context.Context, params ListForecastsParams) (int64, error)
	ListResolvedForecasts(ctx context.Context, workspaceID string, limit int) ([]models.Forecast, error)
	ListUnresolvedDueForecasts(ctx context.Context, before time.Time, limit int) ([]models.Forecast, error)

	// ResolveForecast applies the one-time resolution write. It returns false
	// when the row was already resolved (or missing), so concurrent resolution
	// attempts cannot double-apply.
	ResolveForecast(ctx context.Context, id uint64, actual decimal.Decimal, accuracy float64, resolvedAt time.Time) (bool, error)

	// Revenue goals.
	GetRevenueGoal(ctx context.Context, workspaceID string, horizonDays int) (*models.RevenueGoal, error)
	UpsertRevenueGoal(ctx context.Context, item *models.RevenueGoal) error
}
