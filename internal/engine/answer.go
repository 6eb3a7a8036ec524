package engine

import "strings"

// answerBuffer accumulates typed arithmetic input for the current trial.
type answerBuffer struct {
	digits   strings.Builder
	negative bool
	decimal  bool
}

// key applies one keystroke. '-' toggles the sign, '.' is accepted once,
// backspace clears the whole entry. It reports whether the key was used.
func (a *answerBuffer) key(k rune) bool {
	switch {
	case k >= '0' && k <= '9':
		a.digits.WriteRune(k)
	case k == '-':
		a.negative = !a.negative
	case k == '.':
		if a.decimal {
			return false
		}
		a.decimal = true
		a.digits.WriteRune(k)
	case k == '\b' || k == 0x7f:
		a.reset()
	default:
		return false
	}
	return true
}

func (a *answerBuffer) reset() {
	a.digits.Reset()
	a.negative = false
	a.decimal = false
}

// String renders the answer text as typed, e.g. "-2.5".
func (a *answerBuffer) String() string {
	if a.negative {
		return "-" + a.digits.String()
	}
	return a.digits.String()
}
