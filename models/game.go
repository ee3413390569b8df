package models

// GameType tags a table and everything played at it
type GameType string

const (
	GameBlackjack GameType = "blackjack"
	GameBaccarat  GameType = "baccarat"
	GameCraps     GameType = "craps"
	GameRoulette  GameType = "roulette"
	GamePoker     GameType = "poker"
)

// GameTypes lists every supported variant
var GameTypes = []GameType{GameBlackjack, GameBaccarat, GameCraps, GameRoulette, GamePoker}

// Valid reports whether g is one of the supported variants
func (g GameType) Valid() bool {
	for _, t := range GameTypes {
		if g == t {
			return true
		}
	}
	return false
}

// TableMode controls who the seats play against
type TableMode string

const (
	// ModeHouse tables deal as soon as a seat has bet.
	ModeHouse TableMode = "house"
	// ModeMultiplayer tables wait for every seated player (or an explicit deal).
	ModeMultiplayer TableMode = "multiplayer"
)

// Valid reports whether m is a known mode
func (m TableMode) Valid() bool {
	return m == ModeHouse || m == ModeMultiplayer
}
