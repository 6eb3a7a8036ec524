package metrics

import (
	"nback-go/internal/models"
)

// ScoringModel selects how rights and wrongs become a session percentage.
type ScoringModel int

const (
	// DefaultScoring counts hits as rights and sums over modalities.
	DefaultScoring ScoringModel = iota
	// JaeggiScoring also counts correct rejections and takes the minimum.
	JaeggiScoring
)

func (m ScoringModel) String() string {
	if m == JaeggiScoring {
		return "jaeggi"
	}
	return "default"
}

// Score is the result of scoring one session.
type Score struct {
	Model      ScoringModel
	Overall    int
	Modalities []models.Modality
	Rights     [models.NumModalities]int
	Wrongs     [models.NumModalities]int
	Percents   [models.NumModalities]int
}

// Percent returns the percentage for m, zero for inactive modalities.
func (s Score) Percent(m models.Modality) int { return s.Percents[m] }

// ScoreSession aggregates every scored trial of the session history. The
// first back trials are warm-up and never count. It reads the session only.
func ScoreSession(sess *models.Session, model ScoringModel) Score {
	score := Score{Model: model, Modalities: append([]models.Modality(nil), sess.Mode.Modalities...)}

	for _, rec := range sess.History.Records() {
		if rec.Trial-1 < sess.Back {
			continue
		}
		for _, m := range score.Modalities {
			if m == models.Arithmetic {
				if arithmeticCorrect(sess, rec) {
					score.Rights[m]++
				} else {
					score.Wrongs[m]++
				}
				continue
			}

			match, _ := IsMatch(sess, rec, m)
			pressed := rec.Pressed[m]
			if match && pressed {
				score.Rights[m]++
			}
			if match != pressed {
				score.Wrongs[m]++
			}
			if model == JaeggiScoring && !match && !pressed {
				score.Rights[m]++
			}
		}
	}

	right, wrong := 0, 0
	for _, m := range score.Modalities {
		score.Percents[m] = percent(score.Rights[m], score.Wrongs[m])
		right += score.Rights[m]
		wrong += score.Wrongs[m]
	}

	if model == JaeggiScoring {
		score.Overall = minPercent(score)
	} else {
		score.Overall = percent(right, wrong)
	}
	return score
}

// percent truncates 100*r/(r+w); zero opportunities yield zero.
func percent(r, w int) int {
	if r+w == 0 {
		return 0
	}
	return r * 100 / (r + w)
}

func minPercent(s Score) int {
	if len(s.Modalities) == 0 {
		return 0
	}
	lowest := s.Percents[s.Modalities[0]]
	for _, m := range s.Modalities[1:] {
		lowest = min(lowest, s.Percents[m])
	}
	return lowest
}
