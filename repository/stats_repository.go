package repository

import (
	"context"
	"fmt"

	"casino/database"
	"casino/models"
)

// StatsRepository implements the StatsRepository interface
type StatsRepository struct {
	q queryable
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *database.DB) *StatsRepository {
	return &StatsRepository{q: db.Pool}
}

func newStatsRepositoryWithTx(tx queryable) *StatsRepository {
	return &StatsRepository{q: tx}
}

// RecordOutcome upserts the (user, game) row
func (r *StatsRepository) RecordOutcome(ctx context.Context, outcome models.Outcome) error {
	wins, losses := 0, 1
	if outcome.Won {
		wins, losses = 1, 0
	}

	query := `
		INSERT INTO game_stats (user_id, game, total_rounds, wins, losses, total_wagered, total_won)
		VALUES ($1, $2, 1, $3, $4, $5, $6)
		ON CONFLICT (user_id, game) DO UPDATE SET
			total_rounds  = game_stats.total_rounds + 1,
			wins          = game_stats.wins + EXCLUDED.wins,
			losses        = game_stats.losses + EXCLUDED.losses,
			total_wagered = game_stats.total_wagered + EXCLUDED.total_wagered,
			total_won     = game_stats.total_won + EXCLUDED.total_won,
			updated_at    = NOW()
	`

	_, err := r.q.Exec(ctx, query,
		outcome.UserID,
		outcome.Game,
		wins,
		losses,
		outcome.Wagered,
		outcome.Profit,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome for user %d: %w", outcome.UserID, err)
	}
	return nil
}

// GetByUser returns every game row for the user
func (r *StatsRepository) GetByUser(ctx context.Context, userID int64) ([]*models.GameStats, error) {
	query := `
		SELECT user_id, game, total_rounds, wins, losses, total_wagered, total_won, updated_at
		FROM game_stats
		WHERE user_id = $1
		ORDER BY game
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for user %d: %w", userID, err)
	}
	defer rows.Close()

	var stats []*models.GameStats
	for rows.Next() {
		var s models.GameStats
		if err := rows.Scan(
			&s.UserID,
			&s.Game,
			&s.TotalRounds,
			&s.Wins,
			&s.Losses,
			&s.TotalWagered,
			&s.TotalWon,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}
	return stats, nil
}
