package service

import (
	"context"
	"fmt"

	"casino/models"
)

type statsService struct {
	uowFactory UnitOfWorkFactory
}

// NewStatsService creates a new stats aggregator
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{uowFactory: uowFactory}
}

func (s *statsService) RecordOutcome(ctx context.Context, outcome models.Outcome) error {
	if !outcome.Game.Valid() {
		return fmt.Errorf("%w: unknown game %q", models.ErrValidation, outcome.Game)
	}
	if outcome.Wagered.IsNegative() || outcome.Profit.IsNegative() {
		return fmt.Errorf("%w: wagered and profit must not be negative", models.ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	if err := uow.StatsRepository().RecordOutcome(ctx, outcome); err != nil {
		return infrastructureError("record outcome", err)
	}

	if err := uow.Commit(); err != nil {
		return infrastructureError("commit outcome", err)
	}
	return nil
}

func (s *statsService) UserStats(ctx context.Context, userID int64) ([]*models.GameStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	stats, err := uow.StatsRepository().GetByUser(ctx, userID)
	if err != nil {
		return nil, infrastructureError("get stats", err)
	}
	return stats, nil
}
