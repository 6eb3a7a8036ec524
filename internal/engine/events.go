package engine

import (
	"nback-go/internal/level"
	"nback-go/internal/metrics"
	"nback-go/internal/models"
)

// EventKind identifies what changed on a tick or input.
type EventKind int

const (
	SessionStarted EventKind = iota
	TrialStarted
	StimulusHidden
	Feedback
	SessionEnded
	SessionCancelled
	Paused
	Resumed
)

var eventNames = [...]string{
	"session_started", "trial_started", "stimulus_hidden", "feedback",
	"session_ended", "session_cancelled", "paused", "resumed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Stimulus is what the rendering layer shows for one trial.
type Stimulus struct {
	Positions []int            `json:"positions"`
	Vis       []int            `json:"vis,omitempty"`
	Color     int              `json:"color"`
	Image     int              `json:"image"`
	Audio     int              `json:"audio"`
	Audio2    int              `json:"audio2,omitempty"`
	Number    int              `json:"number,omitempty"`
	Operation models.Operation `json:"-"`
	OpName    string           `json:"operation,omitempty"`
}

// Result is the full report of a completed session.
type Result struct {
	SessionID string                    `json:"sessionId"`
	User      string                    `json:"user,omitempty"`
	Score     metrics.Score             `json:"-"`
	Percents  map[models.Modality]int   `json:"percents"`
	Outcome   level.Outcome             `json:"outcome"`
	Record    models.HistoryRecord      `json:"-"`
	Trials    []models.TrialRecord      `json:"-"`
	Session   *models.Session           `json:"-"`
	Metrics   []metrics.ModalityMetrics `json:"metrics"`
}

// Event is emitted by Tick and the input methods. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind      EventKind                           `json:"kind"`
	SessionID string                              `json:"sessionId"`
	Trial     int                                 `json:"trial,omitempty"`
	Stimulus  *Stimulus                           `json:"stimulus,omitempty"`
	Feedback  map[models.Modality]metrics.Outcome `json:"feedback,omitempty"`
	Result    *Result                             `json:"result,omitempty"`
}

func stimulusOf(sess *models.Session, rec models.TrialRecord) *Stimulus {
	mode := sess.Mode
	slots := max(mode.PositionCount(), 1)
	s := &Stimulus{
		Positions: make([]int, slots),
		Color:     rec.Value(models.StreamColor),
		Image:     rec.Value(models.StreamVis),
		Audio:     rec.Value(models.StreamAudio),
	}
	for i := range s.Positions {
		s.Positions[i] = rec.Value(models.PositionStream(i + 1))
	}
	if mode.Multi > 1 {
		s.Vis = make([]int, mode.Multi)
		for i := range s.Vis {
			s.Vis[i] = rec.Value(models.VisStream(i + 1))
		}
	}
	if mode.Has(models.Audio2) {
		s.Audio2 = rec.Value(models.StreamAudio2)
	}
	if mode.Has(models.Arithmetic) {
		s.Number = rec.Number
		s.Operation = rec.Operation
		if rec.Trial > sess.Back {
			s.OpName = rec.Operation.String()
		}
	}
	return s
}

func percentsOf(score metrics.Score) map[models.Modality]int {
	out := make(map[models.Modality]int, len(score.Modalities))
	for _, m := range score.Modalities {
		out[m] = score.Percent(m)
	}
	return out
}
