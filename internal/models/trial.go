package models

import "time"

// TrialRecord is the snapshot of one trial: every stream value, the
// arithmetic operand and operation, and the user's responses.
type TrialRecord struct {
	Trial     int
	Values    [NumStreams]int
	Number    int
	Operation Operation
	Pressed   [NumModalities]bool
	Reaction  [NumModalities]time.Duration
	Answer    string
	Injected  [NumModalities]Injection
}

// Injection records how the sequencer forced a modality's value.
type Injection uint8

const (
	InjectNone Injection = iota
	InjectMatch
	InjectInterference
)

func (i Injection) String() string {
	switch i {
	case InjectMatch:
		return "match"
	case InjectInterference:
		return "interference"
	}
	return "none"
}

// Value returns the value shown on stream s.
func (r TrialRecord) Value(s Stream) int { return r.Values[s] }

// SessionHistory is the append-only record of a session's completed trials.
// Index i holds trial i+1.
type SessionHistory struct {
	trials []TrialRecord
}

func NewSessionHistory(capacity int) *SessionHistory {
	return &SessionHistory{trials: make([]TrialRecord, 0, capacity)}
}

func (h *SessionHistory) Append(r TrialRecord) {
	h.trials = append(h.trials, r)
}

func (h *SessionHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.trials)
}

// Trial returns the record of 1-based trial n.
func (h *SessionHistory) Trial(n int) (TrialRecord, bool) {
	if h == nil || n < 1 || n > len(h.trials) {
		return TrialRecord{}, false
	}
	return h.trials[n-1], true
}

// Records returns a copy of every recorded trial.
func (h *SessionHistory) Records() []TrialRecord {
	if h == nil {
		return nil
	}
	out := make([]TrialRecord, len(h.trials))
	copy(out, h.trials)
	return out
}

func (h *SessionHistory) Reset() {
	h.trials = h.trials[:0]
}

// VariableLagSchedule holds one lag per trial beyond the base back level.
type VariableLagSchedule []int

// ConstrainedSequence is the precomputed position/audio stream pair used in
// Jaeggi mode. Index i holds trial i+1.
type ConstrainedSequence struct {
	Position []int
	Audio    []int
}

// Session is the explicit context shared by the sequencer, evaluator and
// scorer for one practice session.
type Session struct {
	Mode        ModeDescriptor
	Back        int
	TotalTrials int
	History     *SessionHistory
	Lags        VariableLagSchedule
	Constrained *ConstrainedSequence
}

// Lag is the effective back-distance for a trial: the variable schedule when
// present, the crab triangle for crab modes, the static level otherwise.
func (s *Session) Lag(trial int) int {
	if len(s.Lags) > 0 {
		if i := trial - s.Back - 1; i >= 0 && i < len(s.Lags) {
			return s.Lags[i]
		}
		return s.Back
	}
	if s.Mode.Crab && s.Back > 0 {
		return CrabLag(trial, s.Back)
	}
	return s.Back
}

// CrabLag is 1 + 2*((trial-1) mod back).
func CrabLag(trial, back int) int {
	return 1 + 2*((trial-1)%back)
}

// Reference returns the record lag trials before trial.
func (s *Session) Reference(trial, lag int) (TrialRecord, bool) {
	return s.History.Trial(trial - lag)
}
