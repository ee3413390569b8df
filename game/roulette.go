package game

import (
	"context"
	"sort"
	"strconv"

	"casino/models"

	"github.com/shopspring/decimal"
)

// Roulette bet kinds
const (
	RouletteNumber = "number"
	RouletteColor  = "color"
	RouletteOdd    = "odd"
	RouletteEven   = "even"
	RouletteLow    = "low"
	RouletteHigh   = "high"
	RouletteDozen  = "dozen"
)

// Pays-to-one odds per kind
var rouletteOdds = map[string]int64{
	RouletteNumber: 35,
	RouletteColor:  1,
	RouletteOdd:    1,
	RouletteEven:   1,
	RouletteLow:    1,
	RouletteHigh:   1,
	RouletteDozen:  2,
}

var redPockets = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// PocketColor is "red", "black" or "green" for zero
func PocketColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case redPockets[n]:
		return "red"
	default:
		return "black"
	}
}

type rouletteBet struct {
	Seat   int             `json:"seat"`
	UserID int64           `json:"-"`
	Kind   string          `json:"kind"`
	Value  string          `json:"value,omitempty"`
	Stake  decimal.Decimal `json:"stake"`
	number int
}

// wins reports whether the bet covers pocket n. Zero loses every outside bet.
func (b *rouletteBet) wins(n int) bool {
	if b.Kind == RouletteNumber {
		return n == b.number
	}
	if n == 0 {
		return false
	}
	switch b.Kind {
	case RouletteColor:
		return PocketColor(n) == b.Value
	case RouletteOdd:
		return n%2 == 1
	case RouletteEven:
		return n%2 == 0
	case RouletteLow:
		return n <= 18
	case RouletteHigh:
		return n >= 19
	case RouletteDozen:
		return (n-1)/12+1 == b.number
	}
	return false
}

func (b *rouletteBet) payout(n int) decimal.Decimal {
	if !b.wins(n) {
		return decimal.Zero
	}
	return b.Stake.Mul(decimal.NewFromInt(rouletteOdds[b.Kind] + 1))
}

// Roulette collects bets on a single-zero wheel
type Roulette struct {
	wallet Wallet
	wheel  Wheel
	bets   []*rouletteBet

	pending *settlement
	spin    *rouletteSpin
}

type rouletteSpin struct {
	Number int          `json:"number"`
	Color  string       `json:"color"`
	Seats  []SeatResult `json:"seats"`
}

type rouletteState struct {
	Bets []*rouletteBet `json:"bets"`
	Spin *rouletteSpin  `json:"spin,omitempty"`
}

func newRoulette(deps Deps) *Roulette {
	return &Roulette{wallet: deps.Wallet, wheel: deps.Wheel}
}

func (r *Roulette) Game() models.GameType {
	return models.GameRoulette
}

func (r *Roulette) Handle(ctx context.Context, table Table, actor Player, action Action) (*Result, error) {
	switch action.Type {
	case ActionPlaceBet:
		if r.pending != nil {
			return nil, preconditionf("the previous spin is still being settled")
		}
		return r.placeBet(ctx, actor, action)
	case ActionSpin:
		if r.pending != nil {
			return r.settle(ctx)
		}
		if len(r.bets) == 0 {
			return nil, preconditionf("no bets have been placed")
		}
		return r.doSpin(ctx)
	default:
		return nil, unsupported(models.GameRoulette, action.Type)
	}
}

func parseRouletteBet(actor Player, action Action) (*rouletteBet, error) {
	bet := &rouletteBet{Seat: actor.Seat, UserID: actor.UserID, Kind: action.Kind, Stake: action.Amount}
	switch action.Kind {
	case RouletteNumber:
		n, err := strconv.Atoi(action.Value)
		if err != nil || n < 0 || n > 36 {
			return nil, validationf("number bet needs a value between 0 and 36")
		}
		bet.number = n
		bet.Value = strconv.Itoa(n)
	case RouletteDozen:
		n, err := strconv.Atoi(action.Value)
		if err != nil || n < 1 || n > 3 {
			return nil, validationf("dozen bet needs a value of 1, 2 or 3")
		}
		bet.number = n
		bet.Value = strconv.Itoa(n)
	case RouletteColor:
		if action.Value != "red" && action.Value != "black" {
			return nil, validationf("color bet needs red or black")
		}
		bet.Value = action.Value
	case RouletteOdd, RouletteEven, RouletteLow, RouletteHigh:
	default:
		return nil, validationf("unknown roulette bet kind %q", action.Kind)
	}
	return bet, nil
}

func (r *Roulette) placeBet(ctx context.Context, actor Player, action Action) (*Result, error) {
	bet, err := parseRouletteBet(actor, action)
	if err != nil {
		return nil, err
	}
	if err := validateStake(action.Amount); err != nil {
		return nil, err
	}
	if _, err := r.wallet.Debit(ctx, actor.UserID, action.Amount, models.GameRoulette, "bet"); err != nil {
		return nil, err
	}
	r.bets = append(r.bets, bet)

	return &Result{
		Event:   EventBetPlaced,
		Payload: betPlaced{Seat: actor.Seat, Kind: bet.Kind, Value: bet.Value, Amount: bet.Stake},
	}, nil
}

func (r *Roulette) doSpin(ctx context.Context) (*Result, error) {
	n := r.wheel.Spin()

	type tally struct {
		player  Player
		wagered decimal.Decimal
		payout  decimal.Decimal
	}
	bySeat := make(map[int]*tally)
	for _, bet := range r.bets {
		t, ok := bySeat[bet.Seat]
		if !ok {
			t = &tally{player: Player{Seat: bet.Seat, UserID: bet.UserID}}
			bySeat[bet.Seat] = t
		}
		t.wagered = t.wagered.Add(bet.Stake)
		t.payout = t.payout.Add(bet.payout(n))
	}

	seats := make([]int, 0, len(bySeat))
	for seat := range bySeat {
		seats = append(seats, seat)
	}
	sort.Ints(seats)

	var results []SeatResult
	for _, seat := range seats {
		t := bySeat[seat]
		results = append(results, newSeatResult(t.player, t.wagered, t.payout))
	}

	r.spin = &rouletteSpin{Number: n, Color: PocketColor(n), Seats: results}
	r.pending = newSettlement(models.GameRoulette, "payout", results)
	return r.settle(ctx)
}

func (r *Roulette) settle(ctx context.Context) (*Result, error) {
	if err := r.pending.pay(ctx, r.wallet); err != nil {
		return nil, err
	}
	return &Result{
		Event:    EventWheelSpun,
		Payload:  r.spin,
		Resolved: true,
		Outcomes: r.pending.outcomes(),
	}, nil
}

func (r *Roulette) Leave(ctx context.Context, table Table, leaver Player) (*Result, error) {
	if r.pending != nil {
		return nil, nil
	}
	wagered := decimal.Zero
	var userID int64
	kept := r.bets[:0]
	for _, bet := range r.bets {
		if bet.Seat == leaver.Seat {
			wagered = wagered.Add(bet.Stake)
			userID = bet.UserID
			continue
		}
		kept = append(kept, bet)
	}
	r.bets = kept
	if wagered.IsZero() {
		return nil, nil
	}
	return &Result{
		Event:    EventBetsForfeited,
		Payload:  betPlaced{Seat: leaver.Seat, Amount: wagered},
		Resolved: len(r.bets) == 0,
		Outcomes: []models.Outcome{forfeitOutcome(models.GameRoulette, userID, wagered)},
	}, nil
}

func (r *Roulette) State() any {
	return rouletteState{Bets: r.bets, Spin: r.spin}
}
