package game

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SettlesOn returns the declaration that settles a bet of this type and
// session.
func SettlesOn(g GameType, s Session) Session {
	if g.Sessionless() {
		return SessionClose
	}
	return s
}

// IsWinner matches a bet against the declared result. Halves that are not
// declared never match.
func IsWinner(b Bet, r Result) bool {
	switch b.GameType {
	case SingleDigit:
		ank := r.AnkFor(b.Session)
		return ank != "" && b.Number == ank

	case SinglePanna, DoublePanna, TriplePanna:
		panna := r.PannaFor(b.Session)
		return panna != "" && b.Number == panna

	case JodiDigit:
		jodi := r.Jodi()
		return jodi != "" && b.Number == jodi

	case HalfSangam:
		if !r.OpenDeclared() || !r.CloseDeclared() {
			return false
		}
		left, right, ok := strings.Cut(b.Number, "-")
		if !ok {
			return false
		}
		if len(left) == 1 {
			// open ank - close panna
			return left == r.OpenAnk() && right == r.ClosePanna
		}
		// open panna - close ank
		return left == r.OpenPanna && right == r.CloseAnk()

	case FullSangam:
		if !r.OpenDeclared() || !r.CloseDeclared() {
			return false
		}
		return b.Number == r.OpenPanna+"-"+r.ClosePanna
	}
	return false
}

// Settle decides every bet settled by the declared session. Bets that
// belong to the other declaration are skipped.
func Settle(bets []Bet, r Result, declared Session, rates Rates) []Outcome {
	outcomes := make([]Outcome, 0, len(bets))
	for _, b := range bets {
		if SettlesOn(b.GameType, b.Session) != declared {
			continue
		}

		outcome := Outcome{
			BetID:     b.ID,
			UserID:    b.UserID,
			WinAmount: decimal.Zero,
		}
		if IsWinner(b, r) {
			outcome.Won = true
			outcome.WinAmount = WinAmount(b.Amount, rates.For(b.GameType))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
