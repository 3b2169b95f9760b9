package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"revintel/internal/apperr"
	"revintel/internal/config"
	"revintel/internal/models"
	"revintel/internal/outcome"
	"revintel/internal/repository"
	"revintel/internal/scoring"
	"revintel/internal/simulate"
)

// AllowedHorizons is the fixed set of forecast windows, in days.
var AllowedHorizons = map[int]bool{30: true, 60: true, 90: true}

type ForecastRequest struct {
	WorkspaceID string `json:"workspace_id"`
	HorizonDays int    `json:"horizon_days"`
	// Scenario selects the headline percentile; empty defaults to likely.
	Scenario string `json:"scenario"`
}

// ForecastService is the orchestrator: it validates requests, fetches the
// deal snapshot, runs the simulator, calibrates confidence against the
// workspace's resolution history, and persists the result. Every successful
// call persists one new unresolved forecast; generation is deliberately not
// idempotent since the deal set moves between calls.
type ForecastService struct {
	Repo    repository.Repository
	Tracker *outcome.Tracker
	Scorer  *scoring.Scorer
	Logger  *zap.Logger
	Config  config.ForecastConfig

	// Src overrides the simulator's randomness; nil uses a clock-seeded source.
	Src simulate.Source
	// Now is injectable for tests.
	Now func() time.Time
}

// Confidence blend between raw distribution tightness and historical accuracy.
const (
	rawConfidenceWeight      = 0.7
	historicalAccuracyWeight = 0.3
)

func (s *ForecastService) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *ForecastService) GenerateForecast(ctx context.Context, req ForecastRequest) (*models.Forecast, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.New(apperr.CodeComputation, "forecast service not wired")
	}
	if req.WorkspaceID == "" {
		return nil, apperr.New(apperr.CodeValidation, "workspace_id is required")
	}
	if !AllowedHorizons[req.HorizonDays] {
		return nil, apperr.Newf(apperr.CodeValidation, "horizon_days must be one of 30, 60, 90; got %d", req.HorizonDays)
	}
	scenario := req.Scenario
	if scenario == "" {
		scenario = models.ScenarioLikely
	}
	switch scenario {
	case models.ScenarioWorst, models.ScenarioLikely, models.ScenarioBest:
	default:
		return nil, apperr.Newf(apperr.CodeValidation, "unknown scenario %q", scenario)
	}

	now := s.now()
	deals, err := s.fetchSnapshot(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := validateDeals(deals); err != nil {
		return nil, err
	}

	inputs := simulate.EligibleInputs(deals, req.HorizonDays, now)
	s.applyHealthBlend(deals, inputs, now)

	sim := simulate.Simulator{
		Iterations:    s.Config.Iterations,
		Concentration: s.Config.Concentration,
		Workers:       s.Config.Workers,
		Src:           s.Src,
	}
	dist, err := sim.Run(inputs)
	if err != nil {
		return nil, err
	}

	confidence := dist.RawConfidence
	if s.Tracker != nil && dist.DealsAnalyzed > 0 {
		if rolling, ok := s.Tracker.RollingAccuracy(ctx, req.WorkspaceID); ok {
			confidence = rawConfidenceWeight*dist.RawConfidence + historicalAccuracyWeight*(rolling/100)
		}
	}

	forecast, err := s.compose(ctx, req.WorkspaceID, req.HorizonDays, scenario, deals, dist, confidence, now)
	if err != nil {
		return nil, err
	}

	if s.Tracker != nil {
		if err := s.Tracker.Persist(ctx, forecast); err != nil {
			return nil, err
		}
	}
	if s.Logger != nil {
		s.Logger.Info("forecast generated",
			zap.String("workspace_id", req.WorkspaceID),
			zap.Int("horizon_days", req.HorizonDays),
			zap.String("scenario", scenario),
			zap.Int("deals_analyzed", dist.DealsAnalyzed),
			zap.String("predicted", forecast.PredictedRevenue.StringFixed(2)),
			zap.Float64("confidence", forecast.Confidence),
		)
	}
	return forecast, nil
}

// fetchSnapshot reads the workspace's open deals under a bounded timeout.
// A timeout is a generation failure, never a partial forecast.
func (s *ForecastService) fetchSnapshot(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	timeout := s.Config.SnapshotTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deals, err := s.Repo.ListOpenDeals(fetchCtx, workspaceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDataUnavailable, "deal snapshot fetch failed", err)
	}
	return deals, nil
}

func validateDeals(deals []models.Deal) error {
	for _, d := range deals {
		v := d.Value.InexactFloat64()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.Newf(apperr.CodeValidation, "deal %s has non-finite value", d.ID)
		}
		if d.Value.IsNegative() {
			return apperr.Newf(apperr.CodeValidation, "deal %s has negative value", d.ID)
		}
	}
	return nil
}

// applyHealthBlend nudges each input's effective probability toward the
// deal's health score when configured. The default weight is zero, which
// leaves stated probabilities untouched.
func (s *ForecastService) applyHealthBlend(deals []models.Deal, inputs []simulate.Input, now time.Time) {
	w := s.Config.HealthWeight
	if w <= 0 || s.Scorer == nil {
		return
	}
	if w > 1 {
		w = 1
	}
	wctx := scoring.BuildWorkspaceStats(deals, now)
	byID := make(map[string]models.Deal, len(deals))
	for _, d := range deals {
		byID[d.ID] = d
	}
	for i, in := range inputs {
		d, ok := byID[in.DealID]
		if !ok {
			continue
		}
		hs, err := s.Scorer.Score(d, wctx)
		if err != nil {
			continue
		}
		inputs[i].Prob = (1-w)*in.Prob + w*(hs.Score/100)
	}
}

func (s *ForecastService) compose(ctx context.Context, workspaceID string, horizonDays int, scenario string, deals []models.Deal, dist simulate.Distribution, confidence float64, now time.Time) (*models.Forecast, error) {
	pctRaw, err := json.Marshal(dist.Percentiles)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeComputation, "encode percentiles", err)
	}
	breakdown := simulate.StageBreakdown(deals, horizonDays, now)
	bdRaw, err := json.Marshal(breakdown)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeComputation, "encode stage breakdown", err)
	}

	var headline float64
	switch scenario {
	case models.ScenarioWorst:
		headline = dist.Percentiles.P5
	case models.ScenarioBest:
		headline = dist.Percentiles.P95
	default:
		headline = dist.Percentiles.P50
	}

	f := &models.Forecast{
		WorkspaceID:      workspaceID,
		HorizonDays:      horizonDays,
		Scenario:         scenario,
		PredictedRevenue: decimal.NewFromFloat(headline),
		Confidence:       confidence,
		WorstCase:        decimal.NewFromFloat(dist.Percentiles.P5),
		LikelyCase:       decimal.NewFromFloat(dist.Percentiles.P50),
		BestCase:         decimal.NewFromFloat(dist.Percentiles.P95),
		Percentiles:      datatypes.JSON(pctRaw),
		Mean:             dist.Mean,
		StdDev:           dist.StdDev,
		DealsAnalyzed:    dist.DealsAnalyzed,
		StageBreakdown:   datatypes.JSON(bdRaw),
		GeneratedAt:      now,
	}

	// Pipeline coverage only when the workspace defines a goal for this horizon.
	goal, err := s.Repo.GetRevenueGoal(ctx, workspaceID, horizonDays)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDataUnavailable, "load revenue goal", err)
	}
	if goal != nil && goal.Amount.IsPositive() {
		coverage := dist.PipelineValue / goal.Amount.InexactFloat64()
		f.PipelineCoverage = &coverage
		amount := goal.Amount
		f.RevenueGoal = &amount
	}
	return f, nil
}
