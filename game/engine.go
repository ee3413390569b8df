package game

import (
	"context"
	"fmt"
	"math/rand"

	"casino/models"

	"github.com/shopspring/decimal"
)

// ActionType names a player action
type ActionType string

const (
	ActionPlaceBet  ActionType = "place_bet"
	ActionDeal      ActionType = "deal"
	ActionRoll      ActionType = "roll"
	ActionSpin      ActionType = "spin"
	ActionStartGame ActionType = "start_game"
	ActionHit       ActionType = "hit"
	ActionStand     ActionType = "stand"
	ActionDouble    ActionType = "double"
	ActionBet       ActionType = "bet"
	ActionRaise     ActionType = "raise"
	ActionCall      ActionType = "call"
	ActionFold      ActionType = "fold"
	ActionCheck     ActionType = "check"
)

// Result event names broadcast to the table
const (
	EventBetPlaced       = "bet_placed"
	EventCardsDealt      = "cards_dealt"
	EventCardDealt       = "card_dealt"
	EventPlayerStanding  = "player_standing"
	EventRoundComplete   = "round_complete"
	EventDiceRolled      = "dice_rolled"
	EventWheelSpun       = "wheel_spun"
	EventGameStarted     = "game_started"
	EventActionProcessed = "action_processed"
	EventBetsForfeited   = "bets_forfeited"
)

var supportedActions = map[models.GameType][]ActionType{
	models.GameBlackjack: {ActionPlaceBet, ActionDeal, ActionHit, ActionStand, ActionDouble},
	models.GameBaccarat:  {ActionPlaceBet, ActionDeal},
	models.GameCraps:     {ActionPlaceBet, ActionRoll},
	models.GameRoulette:  {ActionPlaceBet, ActionSpin},
	models.GamePoker:     {ActionStartGame, ActionBet, ActionRaise, ActionCall, ActionFold, ActionCheck},
}

// Action is one request from a seated player
type Action struct {
	Type   ActionType      `json:"type"`
	Kind   string          `json:"kind,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Value  string          `json:"value,omitempty"`
}

// Player is an occupied seat as seen by an engine
type Player struct {
	Seat   int   `json:"seat"`
	UserID int64 `json:"user_id"`
}

// Table is the read-only view of a table an engine acts against
type Table struct {
	Mode    models.TableMode
	Players []Player
}

// Result is what an engine reports back after an action
type Result struct {
	// Event and Payload are broadcast to every occupied seat.
	Event   string
	Payload any
	// Private holds per-seat payloads only that seat may see.
	Private map[int]any
	// Resolved is set when the round is over and the engine can be discarded.
	Resolved bool
	Outcomes []models.Outcome
}

// Wallet is the ledger surface engines stake and pay through
type Wallet interface {
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error)
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error)
}

// Engine owns the transient state of one round at one table
type Engine interface {
	Game() models.GameType
	// Handle applies an action. A rejected action leaves the engine unchanged.
	Handle(ctx context.Context, table Table, actor Player, action Action) (*Result, error)
	// Leave forfeits whatever the leaving player has at stake. It returns a
	// nil result when the player had nothing in play.
	Leave(ctx context.Context, table Table, leaver Player) (*Result, error)
	// State is a public snapshot for clients joining mid-round.
	State() any
}

// Deps are the collaborators handed to a new engine. Shoe, Dice and Wheel
// default to sources backed by Rand.
type Deps struct {
	Wallet Wallet
	Rand   *rand.Rand
	Shoe   *Shoe
	Dice   Dice
	Wheel  Wheel
}

// New creates an engine for the given game type
func New(game models.GameType, deps Deps) (Engine, error) {
	if deps.Wallet == nil {
		return nil, fmt.Errorf("engine for %s needs a wallet", game)
	}
	if deps.Rand == nil {
		return nil, fmt.Errorf("engine for %s needs a random source", game)
	}
	if deps.Shoe == nil {
		deps.Shoe = NewShoe(deps.Rand)
	}

	switch game {
	case models.GameBlackjack:
		return newBlackjack(deps), nil
	case models.GameBaccarat:
		return newBaccarat(deps), nil
	case models.GameCraps:
		if deps.Dice == nil {
			deps.Dice = NewDice(deps.Rand)
		}
		return newCraps(deps), nil
	case models.GameRoulette:
		if deps.Wheel == nil {
			deps.Wheel = NewWheel(deps.Rand)
		}
		return newRoulette(deps), nil
	case models.GamePoker:
		return newPoker(deps), nil
	default:
		return nil, validationf("unknown game %q", game)
	}
}

// Supports reports whether action is meaningful at a table of the given game
func Supports(game models.GameType, action ActionType) bool {
	for _, a := range supportedActions[game] {
		if a == action {
			return true
		}
	}
	return false
}

// OpensRound reports whether action may start a new round when no engine
// is active
func OpensRound(game models.GameType, action ActionType) bool {
	if game == models.GamePoker {
		return action == ActionStartGame
	}
	return action == ActionPlaceBet && Supports(game, action)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrPrecondition, fmt.Sprintf(format, args...))
}

func unsupported(game models.GameType, action ActionType) error {
	return validationf("action %q is not available at %s", action, game)
}

// validateStake accepts positive amounts with at most two decimal places
func validateStake(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationf("stake must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return validationf("stake %s has more than two decimal places", amount)
	}
	return nil
}

// cents truncates to whole cents; fractional cents stay with the house
func cents(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

func findPlayer(table Table, seat int) (Player, bool) {
	for _, p := range table.Players {
		if p.Seat == seat {
			return p, true
		}
	}
	return Player{}, false
}
