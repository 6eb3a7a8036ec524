package metrics

import (
	"math"
	"time"

	"nback-go/internal/models"
)

type MetricResult struct {
	Value      float64 `json:"value"`
	Calculated bool    `json:"calculated"`
	SampleSize int     `json:"sampleSize,omitempty"`
}

// SignalCounts are the signal-detection tallies for one modality.
type SignalCounts struct {
	Hits              int `json:"hits"`
	Misses            int `json:"misses"`
	FalseAlarms       int `json:"falseAlarms"`
	CorrectRejections int `json:"correctRejections"`
}

// ModalityMetrics summarises responses to one modality over a session.
type ModalityMetrics struct {
	Modality models.Modality         `json:"-"`
	Name     string                  `json:"modality"`
	Counts   SignalCounts            `json:"counts"`
	Metrics  map[string]MetricResult `json:"metrics"`
}

// CalculateSessionMetrics computes detection rates and reaction-time
// statistics for every non-arithmetic modality of the session.
func CalculateSessionMetrics(sess *models.Session) []ModalityMetrics {
	var out []ModalityMetrics
	for _, m := range sess.Mode.Modalities {
		if m == models.Arithmetic {
			continue
		}
		counts, hitRTs := countSignals(sess, m)
		out = append(out, ModalityMetrics{
			Modality: m,
			Name:     m.String(),
			Counts:   counts,
			Metrics: map[string]MetricResult{
				"detection_rate":        detectionRate(counts),
				"commission_error_rate": commissionErrorRate(counts),
				"average_reaction_ms":   averageReactionTime(hitRTs),
				"reaction_sd_ms":        reactionTimeSD(hitRTs),
			},
		})
	}
	return out
}

func countSignals(sess *models.Session, m models.Modality) (SignalCounts, []time.Duration) {
	var c SignalCounts
	var rts []time.Duration
	for _, rec := range sess.History.Records() {
		if rec.Trial-1 < sess.Back {
			continue
		}
		match, _ := IsMatch(sess, rec, m)
		pressed := rec.Pressed[m]
		switch {
		case match && pressed:
			c.Hits++
			if rec.Reaction[m] > 0 {
				rts = append(rts, rec.Reaction[m])
			}
		case match:
			c.Misses++
		case pressed:
			c.FalseAlarms++
		default:
			c.CorrectRejections++
		}
	}
	return c, rts
}

func detectionRate(c SignalCounts) MetricResult {
	targets := c.Hits + c.Misses
	if targets == 0 {
		return MetricResult{}
	}
	return MetricResult{Value: float64(c.Hits) / float64(targets), Calculated: true, SampleSize: targets}
}

func commissionErrorRate(c SignalCounts) MetricResult {
	nonTargets := c.FalseAlarms + c.CorrectRejections
	if nonTargets == 0 {
		return MetricResult{}
	}
	return MetricResult{Value: float64(c.FalseAlarms) / float64(nonTargets), Calculated: true, SampleSize: nonTargets}
}

func averageReactionTime(rts []time.Duration) MetricResult {
	if len(rts) == 0 {
		return MetricResult{}
	}
	var sum float64
	for _, rt := range rts {
		sum += float64(rt) / float64(time.Millisecond)
	}
	return MetricResult{Value: sum / float64(len(rts)), Calculated: true, SampleSize: len(rts)}
}

func reactionTimeSD(rts []time.Duration) MetricResult {
	if len(rts) <= 1 {
		return MetricResult{}
	}
	avg := averageReactionTime(rts).Value
	var sumSquaredDiff float64
	for _, rt := range rts {
		diff := float64(rt)/float64(time.Millisecond) - avg
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(rts))
	return MetricResult{Value: math.Sqrt(variance), Calculated: true, SampleSize: len(rts)}
}
