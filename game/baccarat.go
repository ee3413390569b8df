package game

import (
	"context"
	"sort"

	"casino/models"

	"github.com/shopspring/decimal"
)

// Baccarat bet kinds
const (
	BaccaratPlayer = "player"
	BaccaratBanker = "banker"
	BaccaratTie    = "tie"
)

// Return multipliers, stake included
var baccaratReturns = map[string]decimal.Decimal{
	BaccaratPlayer: decimal.NewFromInt(2),
	BaccaratBanker: decimal.RequireFromString("1.95"),
	BaccaratTie:    decimal.NewFromInt(9),
}

// Baccarat collects player/banker/tie bets and resolves them on one coup
type Baccarat struct {
	wallet Wallet
	shoe   *Shoe
	bets   map[int]*baccaratSeat

	pending *settlement
	coup    *baccaratCoup
}

type baccaratSeat struct {
	Player
	stakes map[string]decimal.Decimal
}

func (s *baccaratSeat) wagered() decimal.Decimal {
	total := decimal.Zero
	for _, v := range s.stakes {
		total = total.Add(v)
	}
	return total
}

type baccaratCoup struct {
	PlayerCards []Card       `json:"player_cards"`
	BankerCards []Card       `json:"banker_cards"`
	PlayerValue int          `json:"player_value"`
	BankerValue int          `json:"banker_value"`
	Winner      string       `json:"winner"`
	Seats       []SeatResult `json:"seats,omitempty"`
}

type baccaratSeatView struct {
	Seat   int                        `json:"seat"`
	Stakes map[string]decimal.Decimal `json:"stakes"`
}

type baccaratState struct {
	Bets []baccaratSeatView `json:"bets"`
	Coup *baccaratCoup      `json:"coup,omitempty"`
}

func newBaccarat(deps Deps) *Baccarat {
	return &Baccarat{
		wallet: deps.Wallet,
		shoe:   deps.Shoe,
		bets:   make(map[int]*baccaratSeat),
	}
}

func (b *Baccarat) Game() models.GameType {
	return models.GameBaccarat
}

func (b *Baccarat) Handle(ctx context.Context, table Table, actor Player, action Action) (*Result, error) {
	switch action.Type {
	case ActionPlaceBet:
		if b.pending != nil {
			return nil, preconditionf("the previous coup is still being settled")
		}
		return b.placeBet(ctx, actor, action)
	case ActionDeal:
		if b.pending != nil {
			return b.settle(ctx)
		}
		if len(b.bets) == 0 {
			return nil, preconditionf("no bets have been placed")
		}
		return b.deal(ctx)
	default:
		return nil, unsupported(models.GameBaccarat, action.Type)
	}
}

func (b *Baccarat) placeBet(ctx context.Context, actor Player, action Action) (*Result, error) {
	if _, ok := baccaratReturns[action.Kind]; !ok {
		return nil, validationf("unknown baccarat bet kind %q", action.Kind)
	}
	if err := validateStake(action.Amount); err != nil {
		return nil, err
	}
	if _, err := b.wallet.Debit(ctx, actor.UserID, action.Amount, models.GameBaccarat, "bet"); err != nil {
		return nil, err
	}

	seat, ok := b.bets[actor.Seat]
	if !ok {
		seat = &baccaratSeat{Player: actor, stakes: make(map[string]decimal.Decimal)}
		b.bets[actor.Seat] = seat
	}
	seat.stakes[action.Kind] = seat.stakes[action.Kind].Add(action.Amount)

	return &Result{
		Event:   EventBetPlaced,
		Payload: betPlaced{Seat: actor.Seat, Kind: action.Kind, Amount: action.Amount},
	}, nil
}

func (b *Baccarat) deal(ctx context.Context) (*Result, error) {
	coup := playCoup(b.shoe)

	var results []SeatResult
	for _, seatIndex := range b.seats() {
		seat := b.bets[seatIndex]
		results = append(results, newSeatResult(seat.Player, seat.wagered(), baccaratPayout(seat.stakes, coup.Winner)))
	}
	coup.Seats = results

	b.coup = coup
	b.pending = newSettlement(models.GameBaccarat, "payout", results)
	return b.settle(ctx)
}

func (b *Baccarat) settle(ctx context.Context) (*Result, error) {
	if err := b.pending.pay(ctx, b.wallet); err != nil {
		return nil, err
	}
	return &Result{
		Event:    EventCardsDealt,
		Payload:  b.coup,
		Resolved: true,
		Outcomes: b.pending.outcomes(),
	}, nil
}

// baccaratPayout returns the full amount credited to a seat. Player and
// banker bets are returned when the coup ties.
func baccaratPayout(stakes map[string]decimal.Decimal, winner string) decimal.Decimal {
	total := decimal.Zero
	for kind, stake := range stakes {
		switch {
		case kind == winner:
			total = total.Add(cents(stake.Mul(baccaratReturns[kind])))
		case winner == BaccaratTie:
			total = total.Add(stake)
		}
	}
	return total
}

// playCoup deals player, banker, player, banker and then applies the
// third card rules
func playCoup(shoe *Shoe) *baccaratCoup {
	player := []Card{shoe.Draw()}
	banker := []Card{shoe.Draw()}
	player = append(player, shoe.Draw())
	banker = append(banker, shoe.Draw())

	playerValue := BaccaratValue(player)
	bankerValue := BaccaratValue(banker)

	if playerValue < 8 && bankerValue < 8 {
		var playerThird *Card
		if playerValue <= 5 {
			c := shoe.Draw()
			player = append(player, c)
			playerThird = &c
		}

		if bankerDraws(bankerValue, playerThird) {
			banker = append(banker, shoe.Draw())
		}
	}

	coup := &baccaratCoup{
		PlayerCards: player,
		BankerCards: banker,
		PlayerValue: BaccaratValue(player),
		BankerValue: BaccaratValue(banker),
	}
	switch {
	case coup.PlayerValue > coup.BankerValue:
		coup.Winner = BaccaratPlayer
	case coup.BankerValue > coup.PlayerValue:
		coup.Winner = BaccaratBanker
	default:
		coup.Winner = BaccaratTie
	}
	return coup
}

// bankerDraws applies the banker's third card table. playerThird is nil
// when the player stood on two cards.
func bankerDraws(bankerValue int, playerThird *Card) bool {
	if playerThird == nil {
		return bankerValue <= 5
	}
	third := BaccaratPoints(*playerThird)
	switch bankerValue {
	case 0, 1, 2:
		return true
	case 3:
		return third != 8
	case 4:
		return third >= 2 && third <= 7
	case 5:
		return third >= 4 && third <= 7
	case 6:
		return third == 6 || third == 7
	default:
		return false
	}
}

func (b *Baccarat) Leave(ctx context.Context, table Table, leaver Player) (*Result, error) {
	if b.pending != nil {
		return nil, nil
	}
	seat, ok := b.bets[leaver.Seat]
	if !ok {
		return nil, nil
	}
	delete(b.bets, leaver.Seat)
	wagered := seat.wagered()
	return &Result{
		Event:    EventBetsForfeited,
		Payload:  betPlaced{Seat: leaver.Seat, Amount: wagered},
		Resolved: len(b.bets) == 0,
		Outcomes: []models.Outcome{forfeitOutcome(models.GameBaccarat, seat.UserID, wagered)},
	}, nil
}

func (b *Baccarat) State() any {
	state := baccaratState{Coup: b.coup}
	for _, seatIndex := range b.seats() {
		seat := b.bets[seatIndex]
		state.Bets = append(state.Bets, baccaratSeatView{Seat: seatIndex, Stakes: seat.stakes})
	}
	return state
}

func (b *Baccarat) seats() []int {
	seats := make([]int, 0, len(b.bets))
	for seat := range b.bets {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	return seats
}
