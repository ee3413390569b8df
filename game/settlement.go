package game

import (
	"context"
	"fmt"

	"casino/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Seat result labels
const (
	ResultWin  = "win"
	ResultLose = "lose"
	ResultPush = "push"
)

// SeatResult is one seat's share of a resolution
type SeatResult struct {
	Seat    int             `json:"seat"`
	UserID  int64           `json:"user_id"`
	Wagered decimal.Decimal `json:"wagered"`
	Payout  decimal.Decimal `json:"payout"`
	Result  string          `json:"result"`
}

func newSeatResult(p Player, wagered, payout decimal.Decimal) SeatResult {
	r := SeatResult{Seat: p.Seat, UserID: p.UserID, Wagered: wagered, Payout: payout}
	switch payout.Cmp(wagered) {
	case 1:
		r.Result = ResultWin
	case 0:
		r.Result = ResultPush
	default:
		r.Result = ResultLose
	}
	return r
}

// outcome converts the result for the stats aggregator. Pushes are not
// recorded.
func (r SeatResult) outcome(game models.GameType) (models.Outcome, bool) {
	switch r.Result {
	case ResultWin:
		return models.Outcome{UserID: r.UserID, Game: game, Won: true, Wagered: r.Wagered, Profit: r.Payout.Sub(r.Wagered)}, true
	case ResultLose:
		return models.Outcome{UserID: r.UserID, Game: game, Won: false, Wagered: r.Wagered, Profit: decimal.Zero}, true
	default:
		return models.Outcome{}, false
	}
}

func forfeitOutcome(game models.GameType, userID int64, wagered decimal.Decimal) models.Outcome {
	return models.Outcome{UserID: userID, Game: game, Won: false, Wagered: wagered, Profit: decimal.Zero}
}

// settlement pays a resolution's results. Each result is credited at most
// once, so a settlement interrupted by a ledger failure can be retried.
type settlement struct {
	game    models.GameType
	reason  string
	results []SeatResult
	paid    []bool
}

func newSettlement(game models.GameType, reason string, results []SeatResult) *settlement {
	return &settlement{game: game, reason: reason, results: results, paid: make([]bool, len(results))}
}

func (s *settlement) pay(ctx context.Context, wallet Wallet) error {
	for i, r := range s.results {
		if s.paid[i] {
			continue
		}
		if r.Payout.IsPositive() {
			if _, err := wallet.Credit(ctx, r.UserID, r.Payout, s.game, s.reason); err != nil {
				log.WithFields(log.Fields{
					"game":   s.game,
					"seat":   r.Seat,
					"userID": r.UserID,
					"payout": r.Payout.String(),
					"error":  err,
				}).Error("Payout failed, settlement left pending")
				return fmt.Errorf("pay seat %d: %w", r.Seat, err)
			}
		}
		s.paid[i] = true
	}
	return nil
}

func (s *settlement) outcomes() []models.Outcome {
	var out []models.Outcome
	for _, r := range s.results {
		if o, ok := r.outcome(s.game); ok {
			out = append(out, o)
		}
	}
	return out
}
