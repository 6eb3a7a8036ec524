package sequence

import (
	"errors"
	"fmt"
	"math/big"

	"nback-go/internal/models"

	"go.uber.org/zap"
)

// ErrNoOperations is returned when arithmetic generation has nothing to pick from.
var ErrNoOperations = errors.New("no arithmetic operations enabled")

// arithmetic picks the trial's operation and operand. Division operands are
// restricted to divisors that give an integer or whitelisted decimal
// quotient of the reference operand.
func (s *Sequencer) arithmetic(sess *models.Session, trial int, rec *models.TrialRecord) error {
	ops := s.cfg.Operations()
	if len(ops) == 0 {
		return ErrNoOperations
	}
	rec.Operation = ops[s.rng.Intn(len(ops))]

	lo, hi := s.cfg.MinNumber(), s.cfg.Arithmetic.MaxNumber
	if rec.Operation != models.OpDivide || !sess.Mode.Has(models.Arithmetic) {
		rec.Number = lo + s.rng.Intn(hi-lo+1)
		return nil
	}

	if sess.History.Len() >= sess.Back {
		if ref, ok := sess.Reference(trial, sess.Lag(trial)); ok {
			decimals, err := s.cfg.AcceptableDecimals()
			if err != nil {
				return fmt.Errorf("division candidates: %w", err)
			}
			candidates := DivisorCandidates(ref.Number, lo, hi, decimals)
			if len(candidates) > 0 {
				rec.Number = candidates[s.rng.Intn(len(candidates))]
				return nil
			}
			// Unreachable with a validated config: max_number >= 1 keeps 1
			// in range and every dividend divides by 1.
			s.log.Debug("No acceptable divisor, drawing freely",
				zap.Int("trial", trial),
				zap.Int("dividend", ref.Number),
			)
		}
	}

	rec.Number = s.nonZero(lo, hi)
	return nil
}

// nonZero draws uniformly from [lo, hi] excluding zero.
func (s *Sequencer) nonZero(lo, hi int) int {
	for {
		if n := lo + s.rng.Intn(hi-lo+1); n != 0 {
			return n
		}
	}
}

// DivisorCandidates lists every non-zero x in [lo, hi] such that
// dividend / x is an integer or has a fractional part in decimals.
func DivisorCandidates(dividend, lo, hi int, decimals []*big.Rat) []int {
	var out []int
	for x := lo; x <= hi; x++ {
		if x == 0 {
			continue
		}
		if dividend%x == 0 {
			out = append(out, x)
			continue
		}
		if fractionAccepted(fractionalPart(abs(dividend), abs(x)), decimals) {
			out = append(out, x)
		}
	}
	return out
}

// fractionalPart returns (a/b) mod 1 for non-negative a and positive b.
func fractionalPart(a, b int) *big.Rat {
	return big.NewRat(int64(a%b), int64(b))
}

func fractionAccepted(frac *big.Rat, decimals []*big.Rat) bool {
	for _, d := range decimals {
		if frac.Cmp(d) == 0 {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
