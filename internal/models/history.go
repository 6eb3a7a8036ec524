package models

import "time"

// HistoryRecord is the persisted summary of one completed session.
type HistoryRecord struct {
	Timestamp        time.Time
	ShortName        string
	Percent          int
	Mode             ModeID
	Back             int
	TicksPerTrial    int
	TotalTrials      int
	Manual           bool
	SessionNumber    int
	CategoryPercents [NumModalities]int // indexed by Modality
	DurationSeconds  float64
}

// Duration is the nominal session length.
func (r HistoryRecord) Duration() time.Duration {
	return time.Duration(r.DurationSeconds * float64(time.Second))
}
