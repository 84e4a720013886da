package game

import (
	"fmt"
	"strconv"
	"strings"
)

// digitRank orders panna digits with 0 ranked after 9.
func digitRank(c byte) int {
	if c == '0' {
		return 10
	}
	return int(c - '0')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidPanna reports whether s is a canonical three digit panna.
func ValidPanna(s string) bool {
	if len(s) != 3 || !isDigits(s) {
		return false
	}
	return digitRank(s[0]) <= digitRank(s[1]) && digitRank(s[1]) <= digitRank(s[2])
}

// ClassifyPanna returns SinglePanna, DoublePanna or TriplePanna by the
// number of repeated digits.
func ClassifyPanna(s string) (GameType, error) {
	if !ValidPanna(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPanna, s)
	}
	switch {
	case s[0] == s[1] && s[1] == s[2]:
		return TriplePanna, nil
	case s[0] == s[1] || s[1] == s[2] || s[0] == s[2]:
		return DoublePanna, nil
	default:
		return SinglePanna, nil
	}
}

// Ank is the digit sum of a panna, mod 10.
func Ank(panna string) int {
	sum := 0
	for i := 0; i < len(panna); i++ {
		sum += int(panna[i] - '0')
	}
	return sum % 10
}

func ankString(panna string) string {
	return strconv.Itoa(Ank(panna))
}

// ValidateBetNumber checks number against the format of its game type and
// returns the normalised session and number. Sessionless game types are
// normalised to the close session.
func ValidateBetNumber(g GameType, s Session, number string) (Session, string, error) {
	if !g.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGameType, g)
	}

	number = strings.TrimSpace(number)

	if g.Sessionless() {
		s = SessionClose
	} else if !s.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSession, s)
	}

	invalid := func() (Session, string, error) {
		return "", "", fmt.Errorf("%w: %q is not a valid %s", ErrInvalidNumber, number, g)
	}

	switch g {
	case SingleDigit:
		if len(number) != 1 || !isDigits(number) {
			return invalid()
		}

	case JodiDigit:
		if len(number) != 2 || !isDigits(number) {
			return invalid()
		}

	case SinglePanna, DoublePanna, TriplePanna:
		kind, err := ClassifyPanna(number)
		if err != nil || kind != g {
			return invalid()
		}

	case HalfSangam:
		left, right, ok := strings.Cut(number, "-")
		if !ok {
			return invalid()
		}
		ankPanna := len(left) == 1 && isDigits(left) && ValidPanna(right)
		pannaAnk := ValidPanna(left) && len(right) == 1 && isDigits(right)
		if !ankPanna && !pannaAnk {
			return invalid()
		}

	case FullSangam:
		left, right, ok := strings.Cut(number, "-")
		if !ok || !ValidPanna(left) || !ValidPanna(right) {
			return invalid()
		}
	}

	return s, number, nil
}
