package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"revintel/internal/apperr"
	"revintel/internal/outcome"
	"revintel/internal/repository"
)

// AutoResolver settles forecasts whose horizon has elapsed by summing the
// value of deals won inside the forecast window. Runs on a cron schedule.
type AutoResolver struct {
	Repo    repository.Repository
	Tracker *outcome.Tracker
	Logger  *zap.Logger
}

func (s *AutoResolver) RunOnce(ctx context.Context) error {
	if s == nil || s.Repo == nil || s.Tracker == nil {
		return nil
	}
	now := time.Now().UTC()
	due, err := s.Repo.ListUnresolvedDueForecasts(ctx, now, 200)
	if err != nil {
		return err
	}
	resolved := 0
	for _, f := range due {
		end := f.GeneratedAt.Add(time.Duration(f.HorizonDays) * 24 * time.Hour)
		actual, err := s.Repo.SumWonDealValue(ctx, f.WorkspaceID, f.GeneratedAt, end)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("auto-resolve: realized revenue lookup failed",
					zap.Uint64("forecast_id", f.ID), zap.Error(err))
			}
			continue
		}
		if _, err := s.Tracker.Resolve(ctx, f.ID, actual); err != nil {
			// A conflict just means someone resolved it first.
			if apperr.Is(err, apperr.CodeConflict) {
				continue
			}
			if s.Logger != nil {
				s.Logger.Warn("auto-resolve failed", zap.Uint64("forecast_id", f.ID), zap.Error(err))
			}
			continue
		}
		resolved++
	}
	if s.Logger != nil && len(due) > 0 {
		s.Logger.Info("auto-resolve sweep", zap.Int("due", len(due)), zap.Int("resolved", resolved))
	}
	return nil
}
