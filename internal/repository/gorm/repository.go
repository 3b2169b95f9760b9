package gormrepository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"revintel/internal/models"
	"revintel/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Deals ------------------------------------------------------------------

func (s *Store) ListOpenDeals(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Deal
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Where("stage NOT IN ?", []string{models.StageWon, models.StageLost}).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListDeals(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Deal
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	if s == nil || s.db == nil || id == "" {
		return nil, nil
	}
	var item models.Deal
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStageTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error) {
	if s == nil || s.db == nil || dealID == "" {
		return nil, nil
	}
	var items []models.StageTransition
	err := s.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListProbabilityHistory(ctx context.Context, dealID string, limit int) ([]int, error) {
	if s == nil || s.db == nil || dealID == "" {
		return nil, nil
	}
	var items []models.ProbabilitySnapshot
	err := s.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 10)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	// Reverse to oldest-first, the order trend scoring expects.
	out := make([]int, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it.Probability
	}
	return out, nil
}

func (s *Store) SumWonDealValue(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	var raw *string
	err := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Select("SUM(value)").
		Where("workspace_id = ?", workspaceID).
		Where("stage = ?", models.StageWon).
		Where("updated_at >= ? AND updated_at < ?", from, to).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

// --- Forecasts --------------------------------------------------------------

func (s *Store) InsertForecast(ctx context.Context, item *models.Forecast) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetForecastByID(ctx context.Context, id uint64) (*models.Forecast, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Forecast
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func forecastQuery(db *gorm.DB, params repository.ListForecastsParams) *gorm.DB {
	query := db.Model(&models.Forecast{})
	if params.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", params.WorkspaceID)
	}
	if params.Resolved != nil {
		if *params.Resolved {
			query = query.Where("resolved_at IS NOT NULL")
		} else {
			query = query.Where("resolved_at IS NULL")
		}
	}
	return query
}

func (s *Store) ListForecasts(ctx context.Context, params repository.ListForecastsParams) ([]models.Forecast, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Forecast
	err := forecastQuery(s.db.WithContext(ctx), params).
		Order("generated_at desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountForecasts(ctx context.Context, params repository.ListForecastsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := forecastQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func (s *Store) ListResolvedForecasts(ctx context.Context, workspaceID string, limit int) ([]models.Forecast, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Forecast
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Where("resolved_at IS NOT NULL").
		Order("resolved_at desc").
		Limit(normalizeLimit(limit, 20)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUnresolvedDueForecasts(ctx context.Context, before time.Time, limit int) ([]models.Forecast, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Forecast
	err := s.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Where("generated_at + make_interval(days => horizon_days) <= ?", before).
		Order("generated_at asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ResolveForecast(ctx context.Context, id uint64, actual decimal.Decimal, accuracy float64, resolvedAt time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	// The resolved_at IS NULL predicate is the compare-and-set guard: of any
	// concurrent resolution attempts, exactly one updates the row.
	res := s.db.WithContext(ctx).
		Model(&models.Forecast{}).
		Where("id = ?", id).
		Where("resolved_at IS NULL").
		Updates(map[string]any{
			"resolved_at":    resolvedAt,
			"actual_revenue": actual,
			"accuracy_score": accuracy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- Revenue goals ----------------------------------------------------------

func (s *Store) GetRevenueGoal(ctx context.Context, workspaceID string, horizonDays int) (*models.RevenueGoal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.RevenueGoal
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND horizon_days = ?", workspaceID, horizonDays).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertRevenueGoal(ctx context.Context, item *models.RevenueGoal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "workspace_id"}, {Name: "horizon_days"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- helpers ----------------------------------------------------------------

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
