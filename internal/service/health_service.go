package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"revintel/internal/apperr"
	"revintel/internal/models"
	"revintel/internal/repository"
	"revintel/internal/scoring"
)

// HealthService exposes per-deal and per-workspace health scores. Scores are
// derived views; nothing here writes.
type HealthService struct {
	Repo   repository.Repository
	Scorer *scoring.Scorer
	Logger *zap.Logger
}

func (s *HealthService) DealHealth(ctx context.Context, dealID string) (*models.HealthScore, error) {
	if s == nil || s.Repo == nil || s.Scorer == nil {
		return nil, apperr.New(apperr.CodeComputation, "health service not wired")
	}
	deal, err := s.Repo.GetDealByID(ctx, dealID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDataUnavailable, "load deal", err)
	}
	if deal == nil {
		return nil, apperr.Newf(apperr.CodeValidation, "deal %s not found", dealID)
	}
	wctx, err := s.contextFor(ctx, *deal)
	if err != nil {
		return nil, err
	}
	hs, err := s.Scorer.Score(*deal, wctx)
	if err != nil {
		return nil, err
	}
	return &hs, nil
}

func (s *HealthService) WorkspaceHealth(ctx context.Context, workspaceID string) (models.WorkspaceHealth, error) {
	if s == nil || s.Repo == nil || s.Scorer == nil {
		return models.WorkspaceHealth{}, apperr.New(apperr.CodeComputation, "health service not wired")
	}
	deals, err := s.Repo.ListOpenDeals(ctx, workspaceID)
	if err != nil {
		return models.WorkspaceHealth{}, apperr.Wrap(apperr.CodeDataUnavailable, "load workspace deals", err)
	}
	base := scoring.BuildWorkspaceStats(deals, time.Now().UTC())
	return s.Scorer.ScoreAll(workspaceID, deals, func(d models.Deal) scoring.WorkspaceContext {
		wctx := base
		// Per-deal history reads are best-effort; missing history just
		// degrades those dimensions to neutral.
		wctx.Transitions, _ = s.Repo.ListStageTransitions(ctx, d.ID)
		wctx.ProbabilityHistory, _ = s.Repo.ListProbabilityHistory(ctx, d.ID, 10)
		return wctx
	}), nil
}

// contextFor builds the workspace comparison context around one deal.
func (s *HealthService) contextFor(ctx context.Context, deal models.Deal) (scoring.WorkspaceContext, error) {
	deals, err := s.Repo.ListDeals(ctx, deal.WorkspaceID)
	if err != nil {
		return scoring.WorkspaceContext{}, apperr.Wrap(apperr.CodeDataUnavailable, "load workspace deals", err)
	}
	wctx := scoring.BuildWorkspaceStats(deals, time.Now().UTC())
	wctx.Transitions, _ = s.Repo.ListStageTransitions(ctx, deal.ID)
	wctx.ProbabilityHistory, _ = s.Repo.ListProbabilityHistory(ctx, deal.ID, 10)
	return wctx, nil
}
