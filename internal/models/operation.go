package models

import (
	"fmt"
	"math/big"
	"strings"
)

// Operation is the arithmetic operator applied between the operand lag
// trials back and the current operand.
type Operation int

const (
	OpNone Operation = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

var operationNames = [...]string{"none", "add", "subtract", "multiply", "divide"}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operationNames[o]
}

// ParseOperation maps a config or wire name to an Operation.
func ParseOperation(name string) (Operation, error) {
	for i, n := range operationNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return Operation(i), nil
		}
	}
	return OpNone, fmt.Errorf("unknown arithmetic operation %q", name)
}

// Apply computes back <op> current exactly. Division by zero and OpNone
// yield ok=false.
func (o Operation) Apply(back, current int) (*big.Rat, bool) {
	a := big.NewRat(int64(back), 1)
	b := big.NewRat(int64(current), 1)
	switch o {
	case OpAdd:
		return new(big.Rat).Add(a, b), true
	case OpSubtract:
		return new(big.Rat).Sub(a, b), true
	case OpMultiply:
		return new(big.Rat).Mul(a, b), true
	case OpDivide:
		if current == 0 {
			return nil, false
		}
		return new(big.Rat).Quo(a, b), true
	}
	return nil, false
}

// ParseAnswer converts typed answer text ("", ".", "-2.5") to an exact value.
// Empty input counts as zero.
func ParseAnswer(text string) (*big.Rat, error) {
	text = strings.TrimSpace(text)
	negative := strings.HasPrefix(text, "-")
	digits := strings.TrimPrefix(text, "-")
	if digits == "" || digits == "." {
		return new(big.Rat), nil
	}
	digits = strings.TrimSuffix(digits, ".")
	if strings.HasPrefix(digits, ".") {
		digits = "0" + digits
	}
	r, ok := new(big.Rat).SetString(digits)
	if !ok {
		return nil, fmt.Errorf("invalid arithmetic answer %q", text)
	}
	if negative {
		r.Neg(r)
	}
	return r, nil
}
