package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"revintel/internal/apperr"
	"revintel/internal/models"
	"revintel/internal/outcome"
	"revintel/internal/repository"
	"revintel/internal/simulate"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubRepo is an in-memory Repository for service tests.
type stubRepo struct {
	deals       []models.Deal
	dealsErr    error
	resolved    []models.Forecast
	due         []models.Forecast
	wonSum      decimal.Decimal
	goals       map[int]*models.RevenueGoal
	transitions map[string][]models.StageTransition
	probHistory map[string][]int
	inserted    []*models.Forecast
	nextID      uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		goals:       map[int]*models.RevenueGoal{},
		transitions: map[string][]models.StageTransition{},
		probHistory: map[string][]int{},
		nextID:      1,
	}
}

func (r *stubRepo) ListOpenDeals(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	if r.dealsErr != nil {
		return nil, r.dealsErr
	}
	return r.deals, nil
}

func (r *stubRepo) ListDeals(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	return r.deals, nil
}

func (r *stubRepo) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	for i := range r.deals {
		if r.deals[i].ID == id {
			cp := r.deals[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ListStageTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error) {
	return r.transitions[dealID], nil
}

func (r *stubRepo) ListProbabilityHistory(ctx context.Context, dealID string, limit int) ([]int, error) {
	return r.probHistory[dealID], nil
}

func (r *stubRepo) SumWonDealValue(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, error) {
	return r.wonSum, nil
}

func (r *stubRepo) InsertForecast(ctx context.Context, item *models.Forecast) error {
	item.ID = r.nextID
	r.nextID++
	r.inserted = append(r.inserted, item)
	return nil
}

func (r *stubRepo) GetForecastByID(ctx context.Context, id uint64) (*models.Forecast, error) {
	for _, f := range r.inserted {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ListForecasts(ctx context.Context, params repository.ListForecastsParams) ([]models.Forecast, error) {
	return nil, nil
}

func (r *stubRepo) CountForecasts(ctx context.Context, params repository.ListForecastsParams) (int64, error) {
	return 0, nil
}

func (r *stubRepo) ListResolvedForecasts(ctx context.Context, workspaceID string, limit int) ([]models.Forecast, error) {
	out := r.resolved
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubRepo) ListUnresolvedDueForecasts(ctx context.Context, before time.Time, limit int) ([]models.Forecast, error) {
	return r.due, nil
}

func (r *stubRepo) ResolveForecast(ctx context.Context, id uint64, actual decimal.Decimal, accuracy float64, resolvedAt time.Time) (bool, error) {
	for _, f := range r.inserted {
		if f.ID == id && !f.Resolved() {
			f.ResolvedAt = &resolvedAt
			f.ActualRevenue = &actual
			f.AccuracyScore = &accuracy
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) GetRevenueGoal(ctx context.Context, workspaceID string, horizonDays int) (*models.RevenueGoal, error) {
	return r.goals[horizonDays], nil
}

func (r *stubRepo) UpsertRevenueGoal(ctx context.Context, item *models.RevenueGoal) error {
	return nil
}

func intPtr(v int) *int { return &v }

func openDeal(id string, value int64, prob int, closeInDays int) models.Deal {
	closeAt := testNow.Add(time.Duration(closeInDays) * 24 * time.Hour)
	return models.Deal{
		ID:          id,
		WorkspaceID: "w1",
		Title:       id,
		Value:       decimal.NewFromInt(value),
		Stage:       models.StageProposal,
		Probability: intPtr(prob),
		CloseDate:   &closeAt,
	}
}

func newForecastService(repo *stubRepo) *ForecastService {
	return &ForecastService{
		Repo:    repo,
		Tracker: &outcome.Tracker{Repo: repo},
		Src:     simulate.NewSource(42),
		Now:     func() time.Time { return testNow },
	}
}

func TestGenerateForecast_Validation(t *testing.T) {
	svc := newForecastService(newStubRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		req  ForecastRequest
	}{
		{"missing workspace", ForecastRequest{HorizonDays: 30}},
		{"zero horizon", ForecastRequest{WorkspaceID: "w1"}},
		{"odd horizon", ForecastRequest{WorkspaceID: "w1", HorizonDays: 45}},
		{"bad scenario", ForecastRequest{WorkspaceID: "w1", HorizonDays: 30, Scenario: "optimistic"}},
	}
	for _, tc := range cases {
		_, err := svc.GenerateForecast(ctx, tc.req)
		if !apperr.Is(err, apperr.CodeValidation) {
			t.Fatalf("%s: err=%v want validation", tc.name, err)
		}
	}
}

func TestGenerateForecast_EmptyPipeline(t *testing.T) {
	repo := newStubRepo()
	svc := newForecastService(repo)

	f, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 30})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if f.DealsAnalyzed != 0 {
		t.Fatalf("deals=%d want=0", f.DealsAnalyzed)
	}
	if !f.PredictedRevenue.IsZero() {
		t.Fatalf("predicted=%s want=0", f.PredictedRevenue)
	}
	if f.Confidence != 0 {
		t.Fatalf("confidence=%f want=0", f.Confidence)
	}
	var breakdown []simulate.StageAgg
	if err := json.Unmarshal(f.StageBreakdown, &breakdown); err != nil {
		t.Fatalf("breakdown unmarshal err=%v", err)
	}
	if len(breakdown) != 0 {
		t.Fatalf("breakdown=%v want empty", breakdown)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted=%d want=1, empty forecasts still persist", len(repo.inserted))
	}
}

func TestGenerateForecast_SnapshotFailure(t *testing.T) {
	repo := newStubRepo()
	repo.dealsErr = errors.New("connection refused")
	svc := newForecastService(repo)

	_, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 30})
	if !apperr.Is(err, apperr.CodeDataUnavailable) {
		t.Fatalf("err=%v want data_unavailable", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("failed generation must not persist a forecast")
	}
}

func TestGenerateForecast_NegativeDealValue(t *testing.T) {
	repo := newStubRepo()
	repo.deals = []models.Deal{openDeal("d1", -100, 50, 10)}
	svc := newForecastService(repo)

	_, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 30})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("err=%v want validation", err)
	}
}

func TestGenerateForecast_PersistsAndFillsFields(t *testing.T) {
	repo := newStubRepo()
	repo.deals = []models.Deal{
		openDeal("d1", 100000, 90, 10),
		openDeal("d2", 50000, 50, 20),
	}
	svc := newForecastService(repo)

	f, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 60})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if f.ID == 0 {
		t.Fatalf("forecast not persisted")
	}
	if f.WorkspaceID != "w1" || f.HorizonDays != 60 || f.Scenario != models.ScenarioLikely {
		t.Fatalf("header fields wrong: %+v", f)
	}
	if f.DealsAnalyzed != 2 {
		t.Fatalf("deals=%d want=2", f.DealsAnalyzed)
	}
	if f.Resolved() {
		t.Fatalf("fresh forecast must be unresolved")
	}
	if f.WorstCase.GreaterThan(f.LikelyCase) || f.LikelyCase.GreaterThan(f.BestCase) {
		t.Fatalf("cases not ordered: worst=%s likely=%s best=%s", f.WorstCase, f.LikelyCase, f.BestCase)
	}
	var pct simulate.Percentiles
	if err := json.Unmarshal(f.Percentiles, &pct); err != nil {
		t.Fatalf("percentiles unmarshal err=%v", err)
	}
	if pct.P50 != f.LikelyCase.InexactFloat64() {
		t.Fatalf("p50=%f likely=%s disagree", pct.P50, f.LikelyCase)
	}
	if f.GeneratedAt != testNow {
		t.Fatalf("generated_at=%v want=%v", f.GeneratedAt, testNow)
	}
	if f.PipelineCoverage != nil {
		t.Fatalf("coverage set without a goal")
	}
}

func TestGenerateForecast_ScenarioSelectsHeadline(t *testing.T) {
	repo := newStubRepo()
	repo.deals = []models.Deal{
		openDeal("d1", 100000, 90, 10),
		openDeal("d2", 50000, 50, 20),
		openDeal("d3", 20000, 10, 5),
	}

	get := func(scenario string) *models.Forecast {
		svc := newForecastService(repo)
		f, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 30, Scenario: scenario})
		if err != nil {
			t.Fatalf("scenario=%s err=%v", scenario, err)
		}
		return f
	}
	worst := get(models.ScenarioWorst)
	likely := get(models.ScenarioLikely)
	best := get(models.ScenarioBest)

	if !worst.PredictedRevenue.Equal(worst.WorstCase) {
		t.Fatalf("worst headline=%s want=%s", worst.PredictedRevenue, worst.WorstCase)
	}
	if !likely.PredictedRevenue.Equal(likely.LikelyCase) {
		t.Fatalf("likely headline=%s want=%s", likely.PredictedRevenue, likely.LikelyCase)
	}
	if !best.PredictedRevenue.Equal(best.BestCase) {
		t.Fatalf("best headline=%s want=%s", best.PredictedRevenue, best.BestCase)
	}
}

func TestGenerateForecast_ConfidenceCalibration(t *testing.T) {
	mkRepo := func() *stubRepo {
		repo := newStubRepo()
		repo.deals = []models.Deal{
			openDeal("d1", 100000, 90, 10),
			openDeal("d2", 50000, 50, 20),
		}
		return repo
	}
	gen := func(repo *stubRepo) *models.Forecast {
		svc := newForecastService(repo)
		f, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 30})
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		return f
	}

	cold := gen(mkRepo())

	warm := mkRepo()
	score := 80.0
	resolvedAt := testNow.Add(-24 * time.Hour)
	warm.resolved = []models.Forecast{{ResolvedAt: &resolvedAt, AccuracyScore: &score}}
	calibrated := gen(warm)

	// Same seed, same deals: the raw distribution matches, so the only
	// difference is the history blend.
	want := 0.7*cold.Confidence + 0.3*(score/100)
	if diff := calibrated.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("calibrated=%f want=%f (raw=%f)", calibrated.Confidence, want, cold.Confidence)
	}
}

func TestGenerateForecast_PipelineCoverage(t *testing.T) {
	repo := newStubRepo()
	repo.deals = []models.Deal{
		openDeal("d1", 100000, 90, 10),
		openDeal("d2", 50000, 50, 20),
	}
	repo.goals[30] = &models.RevenueGoal{
		WorkspaceID: "w1",
		HorizonDays: 30,
		Amount:      decimal.NewFromInt(300000),
	}
	svc := newForecastService(repo)

	f, err := svc.GenerateForecast(context.Background(), ForecastRequest{WorkspaceID: "w1", HorizonDays: 30})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if f.PipelineCoverage == nil {
		t.Fatalf("coverage missing with goal set")
	}
	if got, want := *f.PipelineCoverage, 0.5; got != want {
		t.Fatalf("coverage=%f want=%f", got, want)
	}
	if f.RevenueGoal == nil || !f.RevenueGoal.Equal(decimal.NewFromInt(300000)) {
		t.Fatalf("goal not echoed: %+v", f)
	}
}
