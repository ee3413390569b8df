package game

import (
	"context"
	"sort"

	"casino/models"

	"github.com/shopspring/decimal"
)

type blackjackPhase string

const (
	blackjackBetting  blackjackPhase = "betting"
	blackjackPlaying  blackjackPhase = "playing"
	blackjackSettling blackjackPhase = "settling"
)

// dealerStandsOn is the lowest total the dealer stands on
const dealerStandsOn = 17

var (
	blackjackWin     = decimal.NewFromInt(2)
	blackjackNatural = decimal.RequireFromString("2.5")
)

type blackjackHand struct {
	Player
	Stake    decimal.Decimal
	Cards    []Card
	Standing bool
	Doubled  bool
}

func (h *blackjackHand) natural() bool {
	return len(h.Cards) == 2 && BlackjackValue(h.Cards) == 21
}

// Blackjack plays every seated hand against a dealer
type Blackjack struct {
	wallet Wallet
	shoe   *Shoe
	phase  blackjackPhase
	hands  map[int]*blackjackHand
	dealer []Card

	pending *settlement
	summary *blackjackSummary
}

type blackjackHandView struct {
	Seat     int             `json:"seat"`
	Stake    decimal.Decimal `json:"stake"`
	Cards    []Card          `json:"cards"`
	Value    int             `json:"value"`
	Standing bool            `json:"standing"`
	Doubled  bool            `json:"doubled"`
}

type blackjackState struct {
	Phase       string              `json:"phase"`
	Dealer      []*Card             `json:"dealer"`
	DealerValue int                 `json:"dealer_value,omitempty"`
	Hands       []blackjackHandView `json:"hands"`
}

type blackjackSeatSummary struct {
	SeatResult
	Cards []Card `json:"cards"`
	Value int    `json:"value"`
}

type blackjackSummary struct {
	Dealer      []Card                 `json:"dealer"`
	DealerValue int                    `json:"dealer_value"`
	Seats       []blackjackSeatSummary `json:"seats"`
}

func newBlackjack(deps Deps) *Blackjack {
	return &Blackjack{
		wallet: deps.Wallet,
		shoe:   deps.Shoe,
		phase:  blackjackBetting,
		hands:  make(map[int]*blackjackHand),
	}
}

func (b *Blackjack) Game() models.GameType {
	return models.GameBlackjack
}

func (b *Blackjack) Handle(ctx context.Context, table Table, actor Player, action Action) (*Result, error) {
	if b.pending != nil {
		switch action.Type {
		case ActionDeal, ActionHit, ActionStand, ActionDouble:
			return b.settle(ctx)
		default:
			return nil, preconditionf("the previous round is still being settled")
		}
	}

	switch action.Type {
	case ActionPlaceBet:
		return b.placeBet(ctx, table, actor, action)
	case ActionDeal:
		if b.phase != blackjackBetting {
			return nil, validationf("cards have already been dealt")
		}
		if len(b.hands) == 0 {
			return nil, preconditionf("no bets have been placed")
		}
		return b.deal(ctx)
	case ActionHit:
		return b.hit(ctx, actor)
	case ActionStand:
		return b.stand(ctx, actor)
	case ActionDouble:
		return b.double(ctx, actor)
	default:
		return nil, unsupported(models.GameBlackjack, action.Type)
	}
}

func (b *Blackjack) placeBet(ctx context.Context, table Table, actor Player, action Action) (*Result, error) {
	if b.phase != blackjackBetting {
		return nil, validationf("betting is closed")
	}
	if action.Kind != "" {
		return nil, validationf("unknown blackjack bet kind %q", action.Kind)
	}
	if _, ok := b.hands[actor.Seat]; ok {
		return nil, validationf("seat %d already has a bet", actor.Seat)
	}
	if err := validateStake(action.Amount); err != nil {
		return nil, err
	}
	if _, err := b.wallet.Debit(ctx, actor.UserID, action.Amount, models.GameBlackjack, "bet"); err != nil {
		return nil, err
	}

	b.hands[actor.Seat] = &blackjackHand{Player: actor, Stake: action.Amount}

	if b.readyToDeal(table) {
		return b.deal(ctx)
	}
	return &Result{
		Event:   EventBetPlaced,
		Payload: betPlaced{Seat: actor.Seat, Amount: action.Amount},
	}, nil
}

// readyToDeal is true in house mode, or once every seated player has bet
func (b *Blackjack) readyToDeal(table Table) bool {
	if len(b.hands) == 0 {
		return false
	}
	if table.Mode == models.ModeHouse {
		return true
	}
	for _, p := range table.Players {
		if _, ok := b.hands[p.Seat]; !ok {
			return false
		}
	}
	return true
}

func (b *Blackjack) deal(ctx context.Context) (*Result, error) {
	b.phase = blackjackPlaying
	seats := b.seats()
	for round := 0; round < 2; round++ {
		for _, seat := range seats {
			h := b.hands[seat]
			h.Cards = append(h.Cards, b.shoe.Draw())
		}
		b.dealer = append(b.dealer, b.shoe.Draw())
	}
	for _, seat := range seats {
		h := b.hands[seat]
		if BlackjackValue(h.Cards) >= 21 {
			h.Standing = true
		}
	}

	if b.allStanding() {
		return b.resolve(ctx)
	}
	return &Result{Event: EventCardsDealt, Payload: b.State()}, nil
}

func (b *Blackjack) playingHand(actor Player) (*blackjackHand, error) {
	if b.phase != blackjackPlaying {
		return nil, validationf("no hand is in play")
	}
	h, ok := b.hands[actor.Seat]
	if !ok {
		return nil, validationf("seat %d has no hand", actor.Seat)
	}
	if h.Standing {
		return nil, validationf("seat %d is already standing", actor.Seat)
	}
	return h, nil
}

func (b *Blackjack) hit(ctx context.Context, actor Player) (*Result, error) {
	h, err := b.playingHand(actor)
	if err != nil {
		return nil, err
	}
	card := b.shoe.Draw()
	h.Cards = append(h.Cards, card)
	value := BlackjackValue(h.Cards)
	if value >= 21 {
		h.Standing = true
	}

	if b.allStanding() {
		return b.resolve(ctx)
	}
	return &Result{
		Event:   EventCardDealt,
		Payload: cardDealt{Seat: actor.Seat, Card: &card, Value: value, Standing: h.Standing},
	}, nil
}

func (b *Blackjack) stand(ctx context.Context, actor Player) (*Result, error) {
	h, err := b.playingHand(actor)
	if err != nil {
		return nil, err
	}
	h.Standing = true

	if b.allStanding() {
		return b.resolve(ctx)
	}
	return &Result{
		Event:   EventPlayerStanding,
		Payload: cardDealt{Seat: actor.Seat, Value: BlackjackValue(h.Cards), Standing: true},
	}, nil
}

func (b *Blackjack) double(ctx context.Context, actor Player) (*Result, error) {
	h, err := b.playingHand(actor)
	if err != nil {
		return nil, err
	}
	if _, err := b.wallet.Debit(ctx, actor.UserID, h.Stake, models.GameBlackjack, "double_down"); err != nil {
		return nil, err
	}
	h.Stake = h.Stake.Add(h.Stake)
	h.Doubled = true
	card := b.shoe.Draw()
	h.Cards = append(h.Cards, card)
	h.Standing = true

	if b.allStanding() {
		return b.resolve(ctx)
	}
	return &Result{
		Event:   EventCardDealt,
		Payload: cardDealt{Seat: actor.Seat, Card: &card, Value: BlackjackValue(h.Cards), Standing: true},
	}, nil
}

func (b *Blackjack) allStanding() bool {
	for _, h := range b.hands {
		if !h.Standing {
			return false
		}
	}
	return true
}

// resolve plays out the dealer and stages payouts for every hand
func (b *Blackjack) resolve(ctx context.Context) (*Result, error) {
	for BlackjackValue(b.dealer) < dealerStandsOn {
		b.dealer = append(b.dealer, b.shoe.Draw())
	}
	dealerValue := BlackjackValue(b.dealer)

	summary := &blackjackSummary{Dealer: b.dealer, DealerValue: dealerValue}
	var results []SeatResult
	for _, seat := range b.seats() {
		h := b.hands[seat]
		r := newSeatResult(h.Player, h.Stake, blackjackPayout(h, dealerValue))
		results = append(results, r)
		summary.Seats = append(summary.Seats, blackjackSeatSummary{
			SeatResult: r,
			Cards:      h.Cards,
			Value:      BlackjackValue(h.Cards),
		})
	}

	b.phase = blackjackSettling
	b.summary = summary
	b.pending = newSettlement(models.GameBlackjack, "payout", results)
	return b.settle(ctx)
}

// blackjackPayout is the full amount returned to a hand, stake included
func blackjackPayout(h *blackjackHand, dealerValue int) decimal.Decimal {
	value := BlackjackValue(h.Cards)
	switch {
	case value > 21:
		return decimal.Zero
	case value == dealerValue:
		return h.Stake
	case h.natural():
		return cents(h.Stake.Mul(blackjackNatural))
	case dealerValue > 21 || value > dealerValue:
		return h.Stake.Mul(blackjackWin)
	default:
		return decimal.Zero
	}
}

func (b *Blackjack) settle(ctx context.Context) (*Result, error) {
	if err := b.pending.pay(ctx, b.wallet); err != nil {
		return nil, err
	}
	return &Result{
		Event:    EventRoundComplete,
		Payload:  b.summary,
		Resolved: true,
		Outcomes: b.pending.outcomes(),
	}, nil
}

func (b *Blackjack) Leave(ctx context.Context, table Table, leaver Player) (*Result, error) {
	if b.pending != nil {
		return nil, nil
	}

	h, ok := b.hands[leaver.Seat]
	if !ok {
		if b.phase == blackjackBetting && b.readyToDeal(table) {
			return b.deal(ctx)
		}
		return nil, nil
	}

	delete(b.hands, leaver.Seat)
	forfeit := forfeitOutcome(models.GameBlackjack, h.UserID, h.Stake)
	forfeited := &Result{
		Event:    EventBetsForfeited,
		Payload:  betPlaced{Seat: leaver.Seat, Amount: h.Stake},
		Outcomes: []models.Outcome{forfeit},
	}
	if len(b.hands) == 0 {
		forfeited.Resolved = true
		return forfeited, nil
	}

	var next *Result
	var err error
	switch {
	case b.phase == blackjackBetting && b.readyToDeal(table):
		next, err = b.deal(ctx)
	case b.phase == blackjackPlaying && b.allStanding():
		next, err = b.resolve(ctx)
	}
	if err != nil {
		return forfeited, err
	}
	if next == nil {
		return forfeited, nil
	}
	next.Outcomes = append([]models.Outcome{forfeit}, next.Outcomes...)
	return next, nil
}

func (b *Blackjack) State() any {
	state := blackjackState{Phase: string(b.phase)}
	for i := range b.dealer {
		if i == 1 && b.phase == blackjackPlaying {
			state.Dealer = append(state.Dealer, nil)
			continue
		}
		c := b.dealer[i]
		state.Dealer = append(state.Dealer, &c)
	}
	if b.phase == blackjackSettling {
		state.DealerValue = BlackjackValue(b.dealer)
	}
	for _, seat := range b.seats() {
		h := b.hands[seat]
		state.Hands = append(state.Hands, blackjackHandView{
			Seat:     seat,
			Stake:    h.Stake,
			Cards:    h.Cards,
			Value:    BlackjackValue(h.Cards),
			Standing: h.Standing,
			Doubled:  h.Doubled,
		})
	}
	return state
}

func (b *Blackjack) seats() []int {
	seats := make([]int, 0, len(b.hands))
	for seat := range b.hands {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	return seats
}

type betPlaced struct {
	Seat   int             `json:"seat"`
	Kind   string          `json:"kind,omitempty"`
	Value  string          `json:"value,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

type cardDealt struct {
	Seat     int   `json:"seat"`
	Card     *Card `json:"card,omitempty"`
	Value    int   `json:"value"`
	Standing bool  `json:"standing"`
}
