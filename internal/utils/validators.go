package utils

import (
	"strings"
	"unicode"
)

const maxUserNameLength = 32

// IsValidUserName accepts 1-32 letters, digits, '_' and '-'. Names double
// as stats file prefixes, so path separators and dots are rejected.
func IsValidUserName(name string) bool {
	if name == "" || len(name) > maxUserNameLength {
		return false
	}
	if strings.HasPrefix(name, "-") {
		return false
	}
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// IsValidPIN checks for 4 to 8 digits.
func IsValidPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
