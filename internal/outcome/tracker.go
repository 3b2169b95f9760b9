// Package outcome persists forecasts, settles them against realized revenue,
// and maintains the rolling accuracy history that calibrates reported
// confidence.
package outcome

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"revintel/internal/apperr"
	"revintel/internal/models"
	"revintel/internal/repository"
)

type Tracker struct {
	Repo   repository.Repository
	Logger *zap.Logger
	// Window bounds the rolling accuracy history; zero falls back to 10.
	Window int
}

// Persist stores a freshly generated, unresolved forecast.
func (t *Tracker) Persist(ctx context.Context, f *models.Forecast) error {
	if t == nil || t.Repo == nil || f == nil {
		return nil
	}
	if err := t.Repo.InsertForecast(ctx, f); err != nil {
		return apperr.Wrap(apperr.CodeDataUnavailable, "persist forecast", err)
	}
	return nil
}

// Resolve settles a forecast against the actual realized revenue for its
// period. The transition happens at most once; a second attempt conflicts.
func (t *Tracker) Resolve(ctx context.Context, id uint64, actual decimal.Decimal) (float64, error) {
	if t == nil || t.Repo == nil {
		return 0, apperr.New(apperr.CodeComputation, "tracker not wired")
	}
	if actual.IsNegative() {
		return 0, apperr.New(apperr.CodeValidation, "actual revenue must be non-negative")
	}
	f, err := t.Repo.GetForecastByID(ctx, id)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeDataUnavailable, "load forecast", err)
	}
	if f == nil {
		return 0, apperr.Newf(apperr.CodeValidation, "forecast %d not found", id)
	}
	if f.Resolved() {
		return 0, apperr.Newf(apperr.CodeConflict, "forecast %d already resolved", id)
	}

	accuracy := AccuracyScore(f.PredictedRevenue, actual)
	ok, err := t.Repo.ResolveForecast(ctx, id, actual, accuracy, time.Now().UTC())
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeDataUnavailable, "resolve forecast", err)
	}
	if !ok {
		// Lost the race; someone else resolved between the read and the update.
		return 0, apperr.Newf(apperr.CodeConflict, "forecast %d already resolved", id)
	}
	if t.Logger != nil {
		t.Logger.Info("forecast resolved",
			zap.Uint64("forecast_id", id),
			zap.String("predicted", f.PredictedRevenue.StringFixed(2)),
			zap.String("actual", actual.StringFixed(2)),
			zap.Float64("accuracy", accuracy),
		)
	}
	return accuracy, nil
}

// History returns resolved forecasts for a workspace, most recent first.
func (t *Tracker) History(ctx context.Context, workspaceID string, limit int) ([]models.Forecast, error) {
	if t == nil || t.Repo == nil {
		return nil, nil
	}
	return t.Repo.ListResolvedForecasts(ctx, workspaceID, limit)
}

// RollingAccuracy is the mean accuracy over the window of most recent
// resolved forecasts. ok is false when no history exists, in which case
// calibration leaves the raw statistical confidence untouched.
func (t *Tracker) RollingAccuracy(ctx context.Context, workspaceID string) (float64, bool) {
	if t == nil || t.Repo == nil {
		return 0, false
	}
	window := t.Window
	if window <= 0 {
		window = 10
	}
	items, err := t.Repo.ListResolvedForecasts(ctx, workspaceID, window)
	if err != nil || len(items) == 0 {
		return 0, false
	}
	var sum float64
	n := 0
	for _, f := range items {
		if f.AccuracyScore == nil {
			continue
		}
		sum += *f.AccuracyScore
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// AccuracyScore grades a prediction against the realized value on a 0-100
// scale: error percentage against actual, inverted. A zero actual scores 100
// only when the prediction was also zero.
func AccuracyScore(predicted, actual decimal.Decimal) float64 {
	var errPct decimal.Decimal
	if actual.IsPositive() {
		errPct = predicted.Sub(actual).Abs().Div(actual)
	} else if !predicted.IsZero() {
		errPct = decimal.NewFromInt(1)
	}
	accuracy := decimal.NewFromInt(100).Sub(errPct.Mul(decimal.NewFromInt(100)))
	if accuracy.IsNegative() {
		return 0
	}
	return accuracy.InexactFloat64()
}

// Metrics summarizes resolution accuracy for the reporting surface.
type Metrics struct {
	WorkspaceID    string  `json:"workspace_id"`
	Resolved       int     `json:"resolved"`
	MeanAccuracy   float64 `json:"mean_accuracy"`
	MedianAccuracy float64 `json:"median_accuracy"`
	LearningStatus string  `json:"learning_status"`
}

// AccuracyMetrics aggregates the recent resolution history.
func (t *Tracker) AccuracyMetrics(ctx context.Context, workspaceID string, limit int) (Metrics, error) {
	m := Metrics{WorkspaceID: workspaceID, LearningStatus: "no_data"}
	if t == nil || t.Repo == nil {
		return m, nil
	}
	items, err := t.Repo.ListResolvedForecasts(ctx, workspaceID, limit)
	if err != nil {
		return m, apperr.Wrap(apperr.CodeDataUnavailable, "load accuracy history", err)
	}
	scores := make([]float64, 0, len(items))
	var sum float64
	for _, f := range items {
		if f.AccuracyScore == nil {
			continue
		}
		scores = append(scores, *f.AccuracyScore)
		sum += *f.AccuracyScore
	}
	if len(scores) == 0 {
		return m, nil
	}
	m.Resolved = len(scores)
	m.MeanAccuracy = sum / float64(len(scores))
	sort.Float64s(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 1 {
		m.MedianAccuracy = scores[mid]
	} else {
		m.MedianAccuracy = (scores[mid-1] + scores[mid]) / 2
	}
	m.LearningStatus = learningStatus(m.MeanAccuracy)
	return m, nil
}

func learningStatus(meanAccuracy float64) string {
	switch {
	case meanAccuracy >= 85:
		return "excellent"
	case meanAccuracy >= 75:
		return "good"
	case meanAccuracy >= 60:
		return "improving"
	default:
		return "needs_training"
	}
}
