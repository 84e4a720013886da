package game

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidGameType = errors.New("invalid game type")
	ErrInvalidSession  = errors.New("invalid session")
	ErrInvalidNumber   = errors.New("invalid bet number")
	ErrInvalidPanna    = errors.New("invalid panna")
)

// GameType is a bet category.
type GameType string

const (
	SingleDigit GameType = "single_digit"
	JodiDigit   GameType = "jodi_digit"
	SinglePanna GameType = "single_panna"
	DoublePanna GameType = "double_panna"
	TriplePanna GameType = "triple_panna"
	HalfSangam  GameType = "half_sangam"
	FullSangam  GameType = "full_sangam"
)

// GameTypes lists every bet category in display order.
var GameTypes = []GameType{
	SingleDigit,
	JodiDigit,
	SinglePanna,
	DoublePanna,
	TriplePanna,
	HalfSangam,
	FullSangam,
}

func (g GameType) Valid() bool {
	for _, t := range GameTypes {
		if g == t {
			return true
		}
	}
	return false
}

// Sessionless game types need both halves of the result, so they are
// always settled by the close declaration.
func (g GameType) Sessionless() bool {
	return g == JodiDigit || g == HalfSangam || g == FullSangam
}

func (g GameType) IsPanna() bool {
	return g == SinglePanna || g == DoublePanna || g == TriplePanna
}

// Session is one half of a bazaar day.
type Session string

const (
	SessionOpen  Session = "open"
	SessionClose Session = "close"
)

func (s Session) Valid() bool {
	return s == SessionOpen || s == SessionClose
}

// Bet is the settlement view of a placed bet.
type Bet struct {
	ID       string
	UserID   string
	GameType GameType
	Session  Session
	Number   string
	Amount   decimal.Decimal
}

// Outcome is the settlement decision for one bet.
type Outcome struct {
	BetID     string
	UserID    string
	Won       bool
	WinAmount decimal.Decimal
}
