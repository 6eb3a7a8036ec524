package models

// LevelState is the adaptive difficulty state carried between sessions.
type LevelState struct {
	Mode          ModeID
	Level         int
	SessionNumber int
	Progress      int
	Manual        bool

	TrialsBase     int
	TrialsFactor   int
	TrialsExponent int
}

// TotalTrials is base + factor * level^exponent.
func (s LevelState) TotalTrials() int {
	return TotalTrials(s.TrialsBase, s.TrialsFactor, s.TrialsExponent, s.Level)
}

func TotalTrials(base, factor, exponent, level int) int {
	pow := 1
	for i := 0; i < exponent; i++ {
		pow *= level
	}
	return base + factor*pow
}
