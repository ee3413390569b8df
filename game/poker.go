package game

import (
	"context"
	"sort"

	"casino/models"

	"github.com/shopspring/decimal"
)

type pokerStreet string

const (
	streetPreflop  pokerStreet = "preflop"
	streetFlop     pokerStreet = "flop"
	streetTurn     pokerStreet = "turn"
	streetRiver    pokerStreet = "river"
	streetShowdown pokerStreet = "showdown"
)

type pokerPlayer struct {
	Player
	hole      []Card
	folded    bool
	acted     bool
	streetBet decimal.Decimal
	totalBet  decimal.Decimal
}

// Poker is a no-blind Texas Hold'em hand with a single pot
type Poker struct {
	wallet Wallet
	shoe   *Shoe

	started    bool
	players    []*pokerPlayer
	community  []Card
	street     pokerStreet
	pot        decimal.Decimal
	currentBet decimal.Decimal
	turn       int

	pending  *settlement
	showdown *pokerShowdown
}

type pokerPlayerView struct {
	Seat      int             `json:"seat"`
	Folded    bool            `json:"folded"`
	StreetBet decimal.Decimal `json:"street_bet"`
	TotalBet  decimal.Decimal `json:"total_bet"`
}

type pokerState struct {
	Street     pokerStreet       `json:"street"`
	Community  []Card            `json:"community"`
	Pot        decimal.Decimal   `json:"pot"`
	CurrentBet decimal.Decimal   `json:"current_bet"`
	TurnSeat   int               `json:"turn_seat"`
	Players    []pokerPlayerView `json:"players"`
	Showdown   *pokerShowdown    `json:"showdown,omitempty"`
}

type pokerHole struct {
	Seat  int    `json:"seat"`
	Cards []Card `json:"cards"`
}

type pokerActionPayload struct {
	Seat       int             `json:"seat"`
	Action     ActionType      `json:"action"`
	Amount     decimal.Decimal `json:"amount"`
	Pot        decimal.Decimal `json:"pot"`
	CurrentBet decimal.Decimal `json:"current_bet"`
	Street     pokerStreet     `json:"street"`
	Community  []Card          `json:"community"`
	NextSeat   int             `json:"next_seat"`
}

type pokerContender struct {
	Seat     int          `json:"seat"`
	Cards    []Card       `json:"cards,omitempty"`
	Category HandCategory `json:"category"`
	Strength int16        `json:"strength,omitempty"`
}

type pokerShowdown struct {
	Community  []Card           `json:"community"`
	Pot        decimal.Decimal  `json:"pot"`
	Contenders []pokerContender `json:"contenders"`
	Winners    []int            `json:"winners"`
	Seats      []SeatResult     `json:"seats"`
}

func newPoker(deps Deps) *Poker {
	return &Poker{wallet: deps.Wallet, shoe: deps.Shoe, street: streetPreflop}
}

func (p *Poker) Game() models.GameType {
	return models.GamePoker
}

func (p *Poker) Handle(ctx context.Context, table Table, actor Player, action Action) (*Result, error) {
	if p.pending != nil {
		return p.settle(ctx)
	}

	switch action.Type {
	case ActionStartGame:
		return p.start(table)
	case ActionBet, ActionRaise, ActionCall, ActionFold, ActionCheck:
		if !p.started {
			return nil, preconditionf("no hand is in progress")
		}
		return p.act(ctx, actor, action)
	default:
		return nil, unsupported(models.GamePoker, action.Type)
	}
}

func (p *Poker) start(table Table) (*Result, error) {
	if p.started {
		return nil, validationf("a hand is already in progress")
	}
	if len(table.Players) < 2 {
		return nil, preconditionf("poker needs at least two seated players")
	}

	players := append([]Player(nil), table.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })
	for _, pl := range players {
		p.players = append(p.players, &pokerPlayer{Player: pl})
	}
	for round := 0; round < 2; round++ {
		for _, pl := range p.players {
			pl.hole = append(pl.hole, p.shoe.Draw())
		}
	}
	p.started = true
	p.turn = 0

	private := make(map[int]any, len(p.players))
	for _, pl := range p.players {
		private[pl.Seat] = pokerHole{Seat: pl.Seat, Cards: pl.hole}
	}
	return &Result{Event: EventGameStarted, Payload: p.State(), Private: private}, nil
}

func (p *Poker) indexOf(seat int) int {
	for i, pl := range p.players {
		if pl.Seat == seat {
			return i
		}
	}
	return -1
}

func (p *Poker) act(ctx context.Context, actor Player, action Action) (*Result, error) {
	idx := p.indexOf(actor.Seat)
	if idx < 0 {
		return nil, validationf("seat %d is not in this hand", actor.Seat)
	}
	pl := p.players[idx]
	if pl.folded {
		return nil, validationf("seat %d has folded", actor.Seat)
	}
	if idx != p.turn {
		return nil, validationf("it is seat %d's turn", p.players[p.turn].Seat)
	}

	contributed := decimal.Zero
	switch action.Type {
	case ActionCheck:
		if !pl.streetBet.Equal(p.currentBet) {
			return nil, validationf("cannot check facing a bet of %s", p.currentBet)
		}
	case ActionBet:
		if p.currentBet.IsPositive() {
			return nil, validationf("there is already a bet of %s, raise instead", p.currentBet)
		}
		if err := validateStake(action.Amount); err != nil {
			return nil, err
		}
		contributed = action.Amount
	case ActionRaise:
		if !p.currentBet.IsPositive() {
			return nil, validationf("there is no bet to raise, bet instead")
		}
		if err := validateStake(action.Amount); err != nil {
			return nil, err
		}
		if !pl.streetBet.Add(action.Amount).GreaterThan(p.currentBet) {
			return nil, validationf("a raise must exceed the current bet of %s", p.currentBet)
		}
		contributed = action.Amount
	case ActionCall:
		contributed = p.currentBet.Sub(pl.streetBet)
		if !contributed.IsPositive() {
			return nil, validationf("there is nothing to call")
		}
	case ActionFold:
	}

	if contributed.IsPositive() {
		if _, err := p.wallet.Debit(ctx, pl.UserID, contributed, models.GamePoker, string(action.Type)); err != nil {
			return nil, err
		}
		pl.streetBet = pl.streetBet.Add(contributed)
		pl.totalBet = pl.totalBet.Add(contributed)
		p.pot = p.pot.Add(contributed)
	}

	switch action.Type {
	case ActionBet, ActionRaise:
		p.currentBet = pl.streetBet
		for _, other := range p.players {
			other.acted = false
		}
	case ActionFold:
		pl.folded = true
	}
	pl.acted = true

	return p.proceed(ctx, true, pokerActionPayload{Seat: pl.Seat, Action: action.Type, Amount: contributed})
}

func (p *Poker) contenders() []*pokerPlayer {
	var out []*pokerPlayer
	for _, pl := range p.players {
		if !pl.folded {
			out = append(out, pl)
		}
	}
	return out
}

// streetComplete is true once every contender has acted since the last
// bet or raise and all contributions match
func (p *Poker) streetComplete() bool {
	for _, pl := range p.contenders() {
		if !pl.acted || !pl.streetBet.Equal(p.currentBet) {
			return false
		}
	}
	return true
}

func (p *Poker) nextContender(from int) int {
	for i := 1; i <= len(p.players); i++ {
		idx := (from + i) % len(p.players)
		if !p.players[idx].folded {
			return idx
		}
	}
	return from
}

// proceed moves the hand on after a player acted or left. passTurn is set
// when the player who just acted held the turn.
func (p *Poker) proceed(ctx context.Context, passTurn bool, payload pokerActionPayload) (*Result, error) {
	contenders := p.contenders()
	if len(contenders) == 1 {
		return p.resolve(ctx, contenders, nil)
	}

	switch {
	case p.streetComplete():
		if p.street == streetRiver {
			return p.resolveShowdown(ctx, contenders)
		}
		p.nextStreet()
	case passTurn:
		p.turn = p.nextContender(p.turn)
	}

	payload.Pot = p.pot
	payload.CurrentBet = p.currentBet
	payload.Street = p.street
	payload.Community = p.community
	payload.NextSeat = p.players[p.turn].Seat
	return &Result{Event: EventActionProcessed, Payload: payload}, nil
}

func (p *Poker) nextStreet() {
	draw := 1
	switch p.street {
	case streetPreflop:
		p.street = streetFlop
		draw = 3
	case streetFlop:
		p.street = streetTurn
	case streetTurn:
		p.street = streetRiver
	}
	for i := 0; i < draw; i++ {
		p.community = append(p.community, p.shoe.Draw())
	}

	p.currentBet = decimal.Zero
	for _, pl := range p.players {
		pl.streetBet = decimal.Zero
		pl.acted = false
	}
	p.turn = p.nextContender(len(p.players) - 1)
}

func (p *Poker) resolveShowdown(ctx context.Context, contenders []*pokerPlayer) (*Result, error) {
	p.street = streetShowdown

	best := HighCard
	shown := make([]pokerContender, 0, len(contenders))
	for _, pl := range contenders {
		cards := append(append([]Card(nil), pl.hole...), p.community...)
		c := pokerContender{Seat: pl.Seat, Cards: pl.hole, Category: BestCategory(cards)}
		if score, ok := handStrength(cards); ok {
			c.Strength = score
		}
		if c.Category > best {
			best = c.Category
		}
		shown = append(shown, c)
	}

	var winners []*pokerPlayer
	for i, pl := range contenders {
		if shown[i].Category == best {
			winners = append(winners, pl)
		}
	}
	return p.resolve(ctx, winners, shown)
}

// resolve splits the pot evenly between winners. Whole cents only; the
// remainder goes to the winner in the lowest seat.
func (p *Poker) resolve(ctx context.Context, winners []*pokerPlayer, shown []pokerContender) (*Result, error) {
	share := cents(p.pot.Div(decimal.NewFromInt(int64(len(winners)))))
	remainder := p.pot.Sub(share.Mul(decimal.NewFromInt(int64(len(winners)))))

	payouts := make(map[int]decimal.Decimal, len(winners))
	showdown := &pokerShowdown{Community: p.community, Pot: p.pot, Contenders: shown}
	for i, w := range winners {
		amount := share
		if i == 0 {
			amount = amount.Add(remainder)
		}
		payouts[w.Seat] = amount
		showdown.Winners = append(showdown.Winners, w.Seat)
	}

	var results []SeatResult
	for _, pl := range p.players {
		payout, ok := payouts[pl.Seat]
		if !ok {
			payout = decimal.Zero
		}
		results = append(results, newSeatResult(pl.Player, pl.totalBet, payout))
	}
	showdown.Seats = results

	p.showdown = showdown
	p.pending = newSettlement(models.GamePoker, "pot", results)
	return p.settle(ctx)
}

func (p *Poker) settle(ctx context.Context) (*Result, error) {
	if err := p.pending.pay(ctx, p.wallet); err != nil {
		return nil, err
	}
	return &Result{
		Event:    EventRoundComplete,
		Payload:  p.showdown,
		Resolved: true,
		Outcomes: p.pending.outcomes(),
	}, nil
}

// Leave folds the leaving player's hand. Chips already in the pot stay there.
func (p *Poker) Leave(ctx context.Context, table Table, leaver Player) (*Result, error) {
	if p.pending != nil || !p.started {
		return nil, nil
	}
	idx := p.indexOf(leaver.Seat)
	if idx < 0 || p.players[idx].folded {
		return nil, nil
	}
	pl := p.players[idx]
	pl.folded = true
	pl.acted = true
	return p.proceed(ctx, idx == p.turn, pokerActionPayload{Seat: pl.Seat, Action: ActionFold})
}

func (p *Poker) State() any {
	state := pokerState{
		Street:     p.street,
		Community:  p.community,
		Pot:        p.pot,
		CurrentBet: p.currentBet,
		Showdown:   p.showdown,
	}
	if p.started && p.pending == nil {
		state.TurnSeat = p.players[p.turn].Seat
	}
	for _, pl := range p.players {
		state.Players = append(state.Players, pokerPlayerView{
			Seat:      pl.Seat,
			Folded:    pl.folded,
			StreetBet: pl.streetBet,
			TotalBet:  pl.totalBet,
		})
	}
	return state
}
