package game

import (
	"github.com/paulhankin/poker"
)

// HandCategory ranks a poker hand by category only
type HandCategory int

const (
	HighCard HandCategory = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var categoryNames = [...]string{
	"high card",
	"pair",
	"two pair",
	"three of a kind",
	"straight",
	"flush",
	"full house",
	"four of a kind",
	"straight flush",
}

func (h HandCategory) String() string {
	return categoryNames[h]
}

func (h HandCategory) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// highRank counts aces high
func highRank(c Card) int {
	if c.Rank == Ace {
		return 14
	}
	return int(c.Rank)
}

// BestCategory is the best category any five of the given cards make
func BestCategory(cards []Card) HandCategory {
	var counts [15]int
	var suited [4][]Card
	for _, c := range cards {
		counts[highRank(c)]++
		suited[c.Suit] = append(suited[c.Suit], c)
	}

	flush := false
	for _, sc := range suited {
		if len(sc) >= 5 {
			flush = true
			if hasStraight(sc) {
				return StraightFlush
			}
		}
	}

	pairs, trips, quads := 0, 0, 0
	for v := 2; v <= 14; v++ {
		switch counts[v] {
		case 4:
			quads++
		case 3:
			trips++
		case 2:
			pairs++
		}
	}

	switch {
	case quads > 0:
		return FourOfAKind
	case trips >= 2 || (trips == 1 && pairs >= 1):
		return FullHouse
	case flush:
		return Flush
	case hasStraight(cards):
		return Straight
	case trips == 1:
		return ThreeOfAKind
	case pairs >= 2:
		return TwoPair
	case pairs == 1:
		return OnePair
	default:
		return HighCard
	}
}

// hasStraight looks for five consecutive ranks, ace playing high or low
func hasStraight(cards []Card) bool {
	var present [15]bool
	for _, c := range cards {
		v := highRank(c)
		present[v] = true
		if v == 14 {
			present[1] = true
		}
	}
	run := 0
	for v := 1; v <= 14; v++ {
		if !present[v] {
			run = 0
			continue
		}
		run++
		if run >= 5 {
			return true
		}
	}
	return false
}

// handStrength scores seven cards with the poker evaluator. Higher is
// better. ok is false when the cards cannot be converted.
func handStrength(cards []Card) (score int16, ok bool) {
	if len(cards) != 7 {
		return 0, false
	}
	var hand [7]poker.Card
	for i, c := range cards {
		pc, err := poker.MakeCard(poker.Suit(c.Suit), poker.Rank(c.Rank))
		if err != nil {
			return 0, false
		}
		hand[i] = pc
	}
	return poker.Eval7(&hand), true
}
