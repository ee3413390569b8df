package game

import (
	"context"
	"sort"
	"strconv"

	"casino/models"

	"github.com/shopspring/decimal"
)

// Craps bet kinds
const (
	CrapsPass     = "pass"
	CrapsDontPass = "dont_pass"
	CrapsCome     = "come"
	CrapsDontCome = "dont_come"
	CrapsField    = "field"
	CrapsAnySeven = "any_seven"
	CrapsAnyCraps = "any_craps"
	CrapsTwo      = "two"
	CrapsThree    = "three"
	CrapsYo       = "yo"
	CrapsTwelve   = "twelve"
	CrapsPlace    = "place"
	CrapsHard     = "hard"
)

type crapsPhase string

const (
	crapsComeOut crapsPhase = "come_out"
	crapsPoint   crapsPhase = "point"
)

type verdict int

const (
	verdictStay verdict = iota
	verdictWin
	verdictLose
	verdictPush
	verdictMove
)

// placeOdds are the pays-to-one fractions for place bets
var placeOdds = map[int][2]int64{
	4:  {9, 5},
	10: {9, 5},
	5:  {7, 5},
	9:  {7, 5},
	6:  {7, 6},
	8:  {7, 6},
}

// hardReturns are full-return multipliers for hardways
var hardReturns = map[int]int64{4: 8, 10: 8, 6: 10, 8: 10}

// singleRoll lists the one-roll bets: winning totals and their full-return
// multipliers. Any other total loses.
var singleRoll = map[string]map[int]int64{
	CrapsField:    {2: 3, 3: 2, 4: 2, 9: 2, 10: 2, 11: 2, 12: 3},
	CrapsAnySeven: {7: 5},
	CrapsAnyCraps: {2: 8, 3: 8, 12: 8},
	CrapsTwo:      {2: 31},
	CrapsThree:    {3: 16},
	CrapsYo:       {11: 16},
	CrapsTwelve:   {12: 31},
}

func isPointNumber(total int) bool {
	_, ok := placeOdds[total]
	return ok
}

type crapsBet struct {
	ID     int             `json:"id"`
	Seat   int             `json:"seat"`
	UserID int64           `json:"-"`
	Kind   string          `json:"kind"`
	Number int             `json:"number,omitempty"`
	Moved  bool            `json:"moved,omitempty"`
	Stake  decimal.Decimal `json:"stake"`
}

type crapsResolution struct {
	BetID  int             `json:"bet_id"`
	Seat   int             `json:"seat"`
	Kind   string          `json:"kind"`
	Number int             `json:"number,omitempty"`
	Stake  decimal.Decimal `json:"stake"`
	Result string          `json:"result"`
	Payout decimal.Decimal `json:"payout"`
}

type crapsRollSummary struct {
	Roll     Roll              `json:"roll"`
	Total    int               `json:"total"`
	Hard     bool              `json:"hard"`
	Phase    crapsPhase        `json:"phase"`
	Point    int               `json:"point,omitempty"`
	Resolved []crapsResolution `json:"resolved"`
	Moved    []*crapsBet       `json:"moved,omitempty"`
	Seats    []SeatResult      `json:"seats,omitempty"`
}

// crapsPlan is the fully evaluated effect of one roll. It is committed to
// the engine only once its payouts have been credited.
type crapsPlan struct {
	survivors  []*crapsBet
	phase      crapsPhase
	point      int
	summary    *crapsRollSummary
	settlement *settlement
}

// Craps tracks the come-out/point cycle and every seat's outstanding bets
type Craps struct {
	wallet Wallet
	dice   Dice
	phase  crapsPhase
	point  int
	bets   []*crapsBet
	nextID int

	plan     *crapsPlan
	lastRoll *crapsRollSummary
}

type crapsState struct {
	Phase    crapsPhase        `json:"phase"`
	Point    int               `json:"point,omitempty"`
	Bets     []*crapsBet       `json:"bets"`
	LastRoll *crapsRollSummary `json:"last_roll,omitempty"`
}

func newCraps(deps Deps) *Craps {
	return &Craps{wallet: deps.Wallet, dice: deps.Dice, phase: crapsComeOut, nextID: 1}
}

func (c *Craps) Game() models.GameType {
	return models.GameCraps
}

func (c *Craps) Handle(ctx context.Context, table Table, actor Player, action Action) (*Result, error) {
	switch action.Type {
	case ActionPlaceBet:
		if c.plan != nil {
			return nil, preconditionf("the previous roll is still being settled")
		}
		return c.placeBet(ctx, actor, action)
	case ActionRoll:
		if c.plan != nil {
			return c.commit(ctx)
		}
		if len(c.bets) == 0 {
			return nil, preconditionf("no bets have been placed")
		}
		c.plan = c.evaluate(c.dice.Roll())
		return c.commit(ctx)
	default:
		return nil, unsupported(models.GameCraps, action.Type)
	}
}

func (c *Craps) parseBet(actor Player, action Action) (*crapsBet, error) {
	bet := &crapsBet{Seat: actor.Seat, UserID: actor.UserID, Kind: action.Kind, Stake: action.Amount}
	switch action.Kind {
	case CrapsPass, CrapsDontPass:
		if c.phase != crapsComeOut {
			return nil, validationf("%s bets are only taken on the come-out roll", action.Kind)
		}
	case CrapsCome, CrapsDontCome:
		if c.phase != crapsPoint {
			return nil, validationf("%s bets are only taken once a point is set", action.Kind)
		}
	case CrapsPlace:
		n, err := strconv.Atoi(action.Value)
		if err != nil || !isPointNumber(n) {
			return nil, validationf("place bet needs one of 4, 5, 6, 8, 9, 10")
		}
		bet.Number = n
	case CrapsHard:
		n, err := strconv.Atoi(action.Value)
		if _, ok := hardReturns[n]; err != nil || !ok {
			return nil, validationf("hardway bet needs one of 4, 6, 8, 10")
		}
		bet.Number = n
	default:
		if _, ok := singleRoll[action.Kind]; !ok {
			return nil, validationf("unknown craps bet kind %q", action.Kind)
		}
	}
	return bet, nil
}

func (c *Craps) placeBet(ctx context.Context, actor Player, action Action) (*Result, error) {
	bet, err := c.parseBet(actor, action)
	if err != nil {
		return nil, err
	}
	if err := validateStake(action.Amount); err != nil {
		return nil, err
	}
	if _, err := c.wallet.Debit(ctx, actor.UserID, action.Amount, models.GameCraps, "bet"); err != nil {
		return nil, err
	}
	bet.ID = c.nextID
	c.nextID++
	c.bets = append(c.bets, bet)

	payload := betPlaced{Seat: actor.Seat, Kind: bet.Kind, Amount: bet.Stake}
	if bet.Number != 0 {
		payload.Value = strconv.Itoa(bet.Number)
	}
	return &Result{Event: EventBetPlaced, Payload: payload}, nil
}

// evaluate judges every outstanding bet against the same roll and works out
// the phase transition, without touching engine state
func (c *Craps) evaluate(roll Roll) *crapsPlan {
	total := roll.Total()
	plan := &crapsPlan{
		phase: c.phase,
		point: c.point,
		summary: &crapsRollSummary{
			Roll:  roll,
			Total: total,
			Hard:  roll.Hard(),
		},
	}

	type tally struct {
		player  Player
		wagered decimal.Decimal
		payout  decimal.Decimal
	}
	bySeat := make(map[int]*tally)

	for _, bet := range c.bets {
		v, payout := evaluateBet(bet, c.phase, c.point, roll)
		switch v {
		case verdictStay:
			plan.survivors = append(plan.survivors, bet)
			continue
		case verdictMove:
			moved := *bet
			moved.Number = total
			moved.Moved = true
			plan.survivors = append(plan.survivors, &moved)
			plan.summary.Moved = append(plan.summary.Moved, &moved)
			continue
		}

		res := crapsResolution{BetID: bet.ID, Seat: bet.Seat, Kind: bet.Kind, Number: bet.Number, Stake: bet.Stake, Payout: payout}
		switch v {
		case verdictWin:
			res.Result = ResultWin
		case verdictPush:
			res.Result = ResultPush
		default:
			res.Result = ResultLose
		}
		plan.summary.Resolved = append(plan.summary.Resolved, res)

		t, ok := bySeat[bet.Seat]
		if !ok {
			t = &tally{player: Player{Seat: bet.Seat, UserID: bet.UserID}}
			bySeat[bet.Seat] = t
		}
		t.wagered = t.wagered.Add(bet.Stake)
		t.payout = t.payout.Add(payout)
	}

	switch {
	case c.phase == crapsComeOut && isPointNumber(total):
		plan.phase = crapsPoint
		plan.point = total
	case c.phase == crapsPoint && total == c.point:
		plan.phase = crapsComeOut
		plan.point = 0
	case c.phase == crapsPoint && total == 7:
		plan.phase = crapsComeOut
		plan.point = 0
		plan.survivors = nil
	}
	plan.summary.Phase = plan.phase
	plan.summary.Point = plan.point

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
	plan.summary.Seats = results
	plan.settlement = newSettlement(models.GameCraps, "payout", results)
	return plan
}

// commit pays the pending plan and only then applies it
func (c *Craps) commit(ctx context.Context) (*Result, error) {
	plan := c.plan
	if err := plan.settlement.pay(ctx, c.wallet); err != nil {
		return nil, err
	}

	c.bets = plan.survivors
	c.phase = plan.phase
	c.point = plan.point
	c.lastRoll = plan.summary
	c.plan = nil

	return &Result{
		Event:    EventDiceRolled,
		Payload:  plan.summary,
		Resolved: len(c.bets) == 0,
		Outcomes: plan.settlement.outcomes(),
	}, nil
}

// evaluateBet returns the verdict for one bet and the full amount credited
// when it resolves
func evaluateBet(bet *crapsBet, phase crapsPhase, point int, roll Roll) (verdict, decimal.Decimal) {
	total := roll.Total()
	stake := bet.Stake

	switch bet.Kind {
	case CrapsPass, CrapsDontPass:
		dont := bet.Kind == CrapsDontPass
		if phase == crapsComeOut {
			v, payout := comeOutLine(total, stake, dont)
			if v == verdictMove {
				return verdictStay, decimal.Zero
			}
			return v, payout
		}
		return pointLine(total, point, stake, dont)
	case CrapsCome, CrapsDontCome:
		dont := bet.Kind == CrapsDontCome
		if !bet.Moved {
			return comeOutLine(total, stake, dont)
		}
		return pointLine(total, bet.Number, stake, dont)
	case CrapsPlace:
		switch total {
		case bet.Number:
			odds := placeOdds[bet.Number]
			win := stake.Mul(decimal.NewFromInt(odds[0])).Div(decimal.NewFromInt(odds[1]))
			return verdictWin, stake.Add(cents(win))
		case 7:
			return verdictLose, decimal.Zero
		}
		return verdictStay, decimal.Zero
	case CrapsHard:
		switch {
		case total == bet.Number && roll.Hard():
			return verdictWin, stake.Mul(decimal.NewFromInt(hardReturns[bet.Number]))
		case total == bet.Number, total == 7:
			return verdictLose, decimal.Zero
		}
		return verdictStay, decimal.Zero
	}

	if mult, ok := singleRoll[bet.Kind][total]; ok {
		return verdictWin, stake.Mul(decimal.NewFromInt(mult))
	}
	return verdictLose, decimal.Zero
}

// comeOutLine judges a line bet on its first roll. verdictMove means the
// total becomes the bet's number.
func comeOutLine(total int, stake decimal.Decimal, dont bool) (verdict, decimal.Decimal) {
	even := stake.Mul(decimal.NewFromInt(2))
	switch total {
	case 7, 11:
		if dont {
			return verdictLose, decimal.Zero
		}
		return verdictWin, even
	case 2, 3:
		if dont {
			return verdictWin, even
		}
		return verdictLose, decimal.Zero
	case 12:
		if dont {
			return verdictPush, stake
		}
		return verdictLose, decimal.Zero
	}
	return verdictMove, decimal.Zero
}

// pointLine judges a line bet that is riding on number
func pointLine(total, number int, stake decimal.Decimal, dont bool) (verdict, decimal.Decimal) {
	even := stake.Mul(decimal.NewFromInt(2))
	switch total {
	case number:
		if dont {
			return verdictLose, decimal.Zero
		}
		return verdictWin, even
	case 7:
		if dont {
			return verdictWin, even
		}
		return verdictLose, decimal.Zero
	}
	return verdictStay, decimal.Zero
}

// Leave forfeits the leaver's outstanding bets. While a roll is still being
// settled, bets that roll already resolved stay in its settlement and only
// the bets it would carry forward are forfeited.
func (c *Craps) Leave(ctx context.Context, table Table, leaver Player) (*Result, error) {
	var wagered decimal.Decimal
	if c.plan != nil {
		c.plan.survivors, wagered = withoutSeat(c.plan.survivors, leaver.Seat)
		c.plan.summary.Moved, _ = withoutSeat(c.plan.summary.Moved, leaver.Seat)
		c.bets, _ = withoutSeat(c.bets, leaver.Seat)
	} else {
		c.bets, wagered = withoutSeat(c.bets, leaver.Seat)
	}
	if wagered.IsZero() {
		return nil, nil
	}
	return &Result{
		Event:    EventBetsForfeited,
		Payload:  betPlaced{Seat: leaver.Seat, Amount: wagered},
		Resolved: c.plan == nil && len(c.bets) == 0,
		Outcomes: []models.Outcome{forfeitOutcome(models.GameCraps, leaver.UserID, wagered)},
	}, nil
}

// withoutSeat drops seat's bets and returns what they staked
func withoutSeat(bets []*crapsBet, seat int) ([]*crapsBet, decimal.Decimal) {
	staked := decimal.Zero
	kept := make([]*crapsBet, 0, len(bets))
	for _, bet := range bets {
		if bet.Seat == seat {
			staked = staked.Add(bet.Stake)
			continue
		}
		kept = append(kept, bet)
	}
	return kept, staked
}

func (c *Craps) State() any {
	return crapsState{Phase: c.phase, Point: c.point, Bets: c.bets, LastRoll: c.lastRoll}
}
