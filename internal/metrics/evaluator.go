package metrics

import (
	"nback-go/internal/models"
)

// Outcome classifies one modality's response on one trial.
type Outcome int

const (
	Unknown Outcome = iota
	Correct
	Incorrect
	Missed
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	case Missed:
		return "missed"
	}
	return "unknown"
}

// IsMatch reports whether the current record repeats the reference lag
// trials back for modality m. ok is false when no reference exists.
func IsMatch(sess *models.Session, current models.TrialRecord, m models.Modality) (match, ok bool) {
	ref, ok := sess.Reference(current.Trial, sess.Lag(current.Trial))
	if !ok {
		return false, false
	}
	now, back := m.Streams()
	return current.Value(now) == ref.Value(back), true
}

// ExpectedAnswer computes the exact arithmetic result for current.
func ExpectedAnswer(sess *models.Session, current models.TrialRecord) (answer string, ok bool) {
	ref, found := sess.Reference(current.Trial, sess.Lag(current.Trial))
	if !found {
		return "", false
	}
	r, valid := current.Operation.Apply(ref.Number, current.Number)
	if !valid {
		return "", false
	}
	return r.RatString(), true
}

// Evaluate classifies the response recorded in current for modality m.
// current is the trial being answered; it need not be in the history yet.
//
// Unknown is returned during warm-up. A press is Correct when a match
// exists and Incorrect otherwise. Without a press, an existing match is
// Missed when checkMissed is set and Incorrect otherwise; no match and no
// press is Correct. Arithmetic compares the typed answer exactly.
func Evaluate(sess *models.Session, current models.TrialRecord, m models.Modality, checkMissed bool) Outcome {
	if current.Trial-1 < sess.Back {
		return Unknown
	}

	if m == models.Arithmetic {
		if arithmeticCorrect(sess, current) {
			return Correct
		}
		return Incorrect
	}

	match, ok := IsMatch(sess, current, m)
	if !ok {
		return Incorrect
	}
	pressed := current.Pressed[m]
	switch {
	case pressed && match:
		return Correct
	case pressed:
		return Incorrect
	case match && checkMissed:
		return Missed
	case match:
		return Incorrect
	}
	return Correct
}

func arithmeticCorrect(sess *models.Session, current models.TrialRecord) bool {
	ref, ok := sess.Reference(current.Trial, sess.Lag(current.Trial))
	if !ok {
		return false
	}
	want, ok := current.Operation.Apply(ref.Number, current.Number)
	if !ok {
		return false
	}
	got, err := models.ParseAnswer(current.Answer)
	if err != nil {
		return false
	}
	return want.Cmp(got) == 0
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
