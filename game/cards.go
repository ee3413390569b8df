package game

import (
	"fmt"
	"math/rand"
)

// Suit of a playing card
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

var suitSymbols = [...]string{"C", "D", "H", "S"}

// Rank of a playing card, Ace is 1 and King is 13
type Rank int

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

// Card is a single playing card
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	var r string
	switch c.Rank {
	case Ace:
		r = "A"
	case Jack:
		r = "J"
	case Queen:
		r = "Q"
	case King:
		r = "K"
	default:
		r = fmt.Sprintf("%d", int(c.Rank))
	}
	return r + suitSymbols[c.Suit]
}

// NewDeck returns an ordered 52 card deck
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for s := Clubs; s <= Spades; s++ {
		for r := Ace; r <= King; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Shuffle permutes cards in place using rng
func Shuffle(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// Shoe deals cards from the top. An exhausted shoe is refilled with a
// freshly shuffled deck.
type Shoe struct {
	cards []Card
	rng   *rand.Rand
}

// NewShoe creates a shoe holding one shuffled deck
func NewShoe(rng *rand.Rand) *Shoe {
	s := &Shoe{rng: rng}
	s.refill()
	return s
}

// NewStackedShoe creates a shoe that deals cards in the given order before
// falling back to shuffled decks
func NewStackedShoe(rng *rand.Rand, cards ...Card) *Shoe {
	return &Shoe{cards: append([]Card(nil), cards...), rng: rng}
}

func (s *Shoe) refill() {
	deck := NewDeck()
	Shuffle(deck, s.rng)
	s.cards = append(s.cards, deck...)
}

// Draw removes and returns the top card
func (s *Shoe) Draw() Card {
	if len(s.cards) == 0 {
		s.refill()
	}
	c := s.cards[0]
	s.cards = s.cards[1:]
	return c
}

// Remaining returns how many cards are left before the next refill
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// BlackjackValue totals a hand counting aces as 11 while that does not bust
func BlackjackValue(cards []Card) int {
	total, aces := 0, 0
	for _, c := range cards {
		switch {
		case c.Rank == Ace:
			total += 11
			aces++
		case c.Rank >= 10:
			total += 10
		default:
			total += int(c.Rank)
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// BaccaratPoints is the point value of one card: aces 1, tens and faces 0
func BaccaratPoints(c Card) int {
	if c.Rank >= 10 {
		return 0
	}
	return int(c.Rank)
}

// BaccaratValue totals a hand modulo 10
func BaccaratValue(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += BaccaratPoints(c)
	}
	return total % 10
}

// Roll is the outcome of throwing two dice
type Roll struct {
	Die1 int `json:"die1"`
	Die2 int `json:"die2"`
}

// Total is the sum of both dice
func (r Roll) Total() int {
	return r.Die1 + r.Die2
}

// Hard reports whether both dice show the same face
func (r Roll) Hard() bool {
	return r.Die1 == r.Die2
}

// Dice produces rolls
type Dice interface {
	Roll() Roll
}

type randomDice struct {
	rng *rand.Rand
}

// NewDice returns dice backed by rng
func NewDice(rng *rand.Rand) Dice {
	return &randomDice{rng: rng}
}

func (d *randomDice) Roll() Roll {
	return Roll{Die1: d.rng.Intn(6) + 1, Die2: d.rng.Intn(6) + 1}
}

// Wheel produces roulette pockets 0..36
type Wheel interface {
	Spin() int
}

type randomWheel struct {
	rng *rand.Rand
}

// NewWheel returns a single-zero wheel backed by rng
func NewWheel(rng *rand.Rand) Wheel {
	return &randomWheel{rng: rng}
}

func (w *randomWheel) Spin() int {
	return w.rng.Intn(37)
}
