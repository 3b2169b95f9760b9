package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"revintel/internal/apperr"
	"revintel/internal/models"
	"revintel/internal/repository"
)

// stubRepo is an in-memory Repository for tracker tests. Only the forecast
// methods carry behavior; the deal-side methods return empty results.
type stubRepo struct {
	forecasts map[uint64]*models.Forecast
	nextID    uint64
	resolved  []models.Forecast
}

func newStubRepo() *stubRepo {
	return &stubRepo{forecasts: map[uint64]*models.Forecast{}, nextID: 1}
}

func (r *stubRepo) ListOpenDeals(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	return nil, nil
}

func (r *stubRepo) ListDeals(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	return nil, nil
}

func (r *stubRepo) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	return nil, nil
}

func (r *stubRepo) ListStageTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error) {
	return nil, nil
}

func (r *stubRepo) ListProbabilityHistory(ctx context.Context, dealID string, limit int) ([]int, error) {
	return nil, nil
}

func (r *stubRepo) SumWonDealValue(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (r *stubRepo) InsertForecast(ctx context.Context, item *models.Forecast) error {
	item.ID = r.nextID
	r.nextID++
	cp := *item
	r.forecasts[item.ID] = &cp
	return nil
}

func (r *stubRepo) GetForecastByID(ctx context.Context, id uint64) (*models.Forecast, error) {
	f, ok := r.forecasts[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
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
	return nil, nil
}

func (r *stubRepo) ResolveForecast(ctx context.Context, id uint64, actual decimal.Decimal, accuracy float64, resolvedAt time.Time) (bool, error) {
	f, ok := r.forecasts[id]
	if !ok || f.Resolved() {
		return false, nil
	}
	f.ResolvedAt = &resolvedAt
	f.ActualRevenue = &actual
	f.AccuracyScore = &accuracy
	return true, nil
}

func (r *stubRepo) GetRevenueGoal(ctx context.Context, workspaceID string, horizonDays int) (*models.RevenueGoal, error) {
	return nil, nil
}

func (r *stubRepo) UpsertRevenueGoal(ctx context.Context, item *models.RevenueGoal) error {
	return nil
}

func resolvedForecast(score float64) models.Forecast {
	now := time.Now().UTC()
	return models.Forecast{ResolvedAt: &now, AccuracyScore: &score}
}

func TestAccuracyScore(t *testing.T) {
	cases := []struct {
		name      string
		predicted string
		actual    string
		want      float64
	}{
		{"exact", "100000", "100000", 100},
		{"ten percent under", "90000", "100000", 90},
		{"ten percent over", "110000", "100000", 90},
		{"double", "200000", "100000", 0},
		{"way off", "500000", "100000", 0},
		{"zero actual zero predicted", "0", "0", 100},
		{"zero actual nonzero predicted", "50000", "0", 0},
	}
	for _, tc := range cases {
		p := decimal.RequireFromString(tc.predicted)
		a := decimal.RequireFromString(tc.actual)
		if got := AccuracyScore(p, a); got != tc.want {
			t.Fatalf("%s: got=%f want=%f", tc.name, got, tc.want)
		}
	}
}

func TestResolve_HappyPath(t *testing.T) {
	repo := newStubRepo()
	tr := &Tracker{Repo: repo}
	ctx := context.Background()

	f := &models.Forecast{WorkspaceID: "w1", PredictedRevenue: decimal.NewFromInt(100000)}
	if err := tr.Persist(ctx, f); err != nil {
		t.Fatalf("persist err=%v", err)
	}
	if f.ID == 0 {
		t.Fatalf("persist did not assign an id")
	}

	accuracy, err := tr.Resolve(ctx, f.ID, decimal.NewFromInt(90000))
	if err != nil {
		t.Fatalf("resolve err=%v", err)
	}
	if accuracy != 90 {
		t.Fatalf("accuracy=%f want=90", accuracy)
	}
	stored, _ := repo.GetForecastByID(ctx, f.ID)
	if !stored.Resolved() {
		t.Fatalf("forecast not marked resolved")
	}
	if stored.ActualRevenue == nil || !stored.ActualRevenue.Equal(decimal.NewFromInt(90000)) {
		t.Fatalf("actual revenue not stored: %+v", stored)
	}
}

func TestResolve_SecondAttemptConflicts(t *testing.T) {
	repo := newStubRepo()
	tr := &Tracker{Repo: repo}
	ctx := context.Background()

	f := &models.Forecast{WorkspaceID: "w1", PredictedRevenue: decimal.NewFromInt(100000)}
	if err := tr.Persist(ctx, f); err != nil {
		t.Fatalf("persist err=%v", err)
	}
	if _, err := tr.Resolve(ctx, f.ID, decimal.NewFromInt(100000)); err != nil {
		t.Fatalf("first resolve err=%v", err)
	}
	_, err := tr.Resolve(ctx, f.ID, decimal.NewFromInt(50000))
	if !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("second resolve err=%v want conflict", err)
	}
	// The first resolution's values survive.
	stored, _ := repo.GetForecastByID(ctx, f.ID)
	if !stored.ActualRevenue.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("second attempt overwrote resolution: %+v", stored)
	}
}

func TestResolve_Validation(t *testing.T) {
	tr := &Tracker{Repo: newStubRepo()}
	ctx := context.Background()

	_, err := tr.Resolve(ctx, 1, decimal.NewFromInt(-5))
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("negative actual err=%v want validation", err)
	}
	_, err = tr.Resolve(ctx, 999, decimal.NewFromInt(5))
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("missing forecast err=%v want validation", err)
	}
}

func TestRollingAccuracy_ColdStart(t *testing.T) {
	tr := &Tracker{Repo: newStubRepo()}
	if _, ok := tr.RollingAccuracy(context.Background(), "w1"); ok {
		t.Fatalf("cold start should report no history")
	}
}

func TestRollingAccuracy_Windowed(t *testing.T) {
	repo := newStubRepo()
	// Most recent first; the window should keep only the first two.
	repo.resolved = []models.Forecast{
		resolvedForecast(90),
		resolvedForecast(80),
		resolvedForecast(10),
	}
	tr := &Tracker{Repo: repo, Window: 2}
	got, ok := tr.RollingAccuracy(context.Background(), "w1")
	if !ok {
		t.Fatalf("expected history")
	}
	if got != 85 {
		t.Fatalf("rolling=%f want=85", got)
	}
}

func TestAccuracyMetrics(t *testing.T) {
	repo := newStubRepo()
	tr := &Tracker{Repo: repo}
	ctx := context.Background()

	m, err := tr.AccuracyMetrics(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m.LearningStatus != "no_data" || m.Resolved != 0 {
		t.Fatalf("empty metrics wrong: %+v", m)
	}

	repo.resolved = []models.Forecast{
		resolvedForecast(90),
		resolvedForecast(80),
		resolvedForecast(70),
		resolvedForecast(100),
	}
	m, err = tr.AccuracyMetrics(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m.Resolved != 4 {
		t.Fatalf("resolved=%d want=4", m.Resolved)
	}
	if m.MeanAccuracy != 85 {
		t.Fatalf("mean=%f want=85", m.MeanAccuracy)
	}
	if m.MedianAccuracy != 85 {
		t.Fatalf("median=%f want=85", m.MedianAccuracy)
	}
	if m.LearningStatus != "excellent" {
		t.Fatalf("status=%q want=excellent", m.LearningStatus)
	}
}
