package metrics

import (
	"testing"

	"nback-go/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noMatchSession builds a dual 2-back session of n trials in which neither
// stream ever matches, then presses position on the first posPresses scored
// trials and audio on the first audioPresses.
func noMatchSession(t *testing.T, n, posPresses, audioPresses int) *models.Session {
	t.Helper()
	mode, err := models.LookupMode(models.DualMode)
	require.NoError(t, err)
	sess := &models.Session{Mode: mode, Back: 2, TotalTrials: n, History: models.NewSessionHistory(n)}
	for trial := 1; trial <= n; trial++ {
		rec := models.TrialRecord{Trial: trial}
		rec.Values[models.StreamPosition1] = trial%8 + 1
		rec.Values[models.StreamAudio] = (trial+3)%8 + 1
		scored := trial - sess.Back
		rec.Pressed[models.Position1] = scored >= 1 && scored <= posPresses
		rec.Pressed[models.Audio] = scored >= 1 && scored <= audioPresses
		sess.History.Append(rec)
	}
	return sess
}

func TestJaeggiOverallIsMinimum(t *testing.T) {
	// 20 scored trials: position 14 right 6 wrong, audio 19 right 1 wrong.
	sess := noMatchSession(t, 22, 6, 1)

	score := ScoreSession(sess, JaeggiScoring)
	assert.Equal(t, 70, score.Percent(models.Position1))
	assert.Equal(t, 95, score.Percent(models.Audio))
	assert.Equal(t, 70, score.Overall)
}

func TestDefaultScoringIgnoresCorrectRejections(t *testing.T) {
	sess := noMatchSession(t, 22, 6, 1)

	score := ScoreSession(sess, DefaultScoring)
	assert.Equal(t, 0, score.Rights[models.Position1])
	assert.Equal(t, 6, score.Wrongs[models.Position1])
	assert.Equal(t, 0, score.Overall)
}

func TestDefaultScoringSumsModalities(t *testing.T) {
	mode, err := models.LookupMode(models.DualMode)
	require.NoError(t, err)
	sess := &models.Session{Mode: mode, Back: 1, History: models.NewSessionHistory(5)}

	// Position repeats on every trial, audio never does.
	for trial := 1; trial <= 5; trial++ {
		rec := models.TrialRecord{Trial: trial}
		rec.Values[models.StreamPosition1] = 4
		rec.Values[models.StreamAudio] = trial
		rec.Pressed[models.Position1] = trial != 5 // miss on the last trial
		rec.Pressed[models.Audio] = trial == 3     // one false alarm
		sess.History.Append(rec)
	}

	score := ScoreSession(sess, DefaultScoring)
	assert.Equal(t, 3, score.Rights[models.Position1])
	assert.Equal(t, 1, score.Wrongs[models.Position1])
	assert.Equal(t, 0, score.Rights[models.Audio])
	assert.Equal(t, 1, score.Wrongs[models.Audio])
	assert.Equal(t, 75, score.Percent(models.Position1))
	assert.Equal(t, 0, score.Percent(models.Audio))
	assert.Equal(t, 60, score.Overall) // 3 / (3+2)
}

func TestScoreIsIdempotent(t *testing.T) {
	sess := noMatchSession(t, 30, 4, 9)
	before := sess.History.Records()

	first := ScoreSession(sess, DefaultScoring)
	second := ScoreSession(sess, DefaultScoring)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("scores differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, sess.History.Records()); diff != "" {
		t.Errorf("history mutated (-before +after):\n%s", diff)
	}

	assert.Equal(t, ScoreSession(sess, JaeggiScoring), ScoreSession(sess, JaeggiScoring))
}

func TestScoreZeroOpportunities(t *testing.T) {
	sess := noMatchSession(t, 2, 0, 0) // warm-up only
	score := ScoreSession(sess, DefaultScoring)
	assert.Equal(t, 0, score.Overall)
	assert.Equal(t, 0, score.Percent(models.Position1))

	jaeggi := ScoreSession(sess, JaeggiScoring)
	assert.Equal(t, 0, jaeggi.Overall)
}

func TestScoreArithmetic(t *testing.T) {
	mode, err := models.LookupMode(7)
	require.NoError(t, err)
	sess := &models.Session{Mode: mode, Back: 1, History: models.NewSessionHistory(4)}
	sess.History.Append(models.TrialRecord{Trial: 1, Number: 6})
	sess.History.Append(models.TrialRecord{Trial: 2, Number: 4, Operation: models.OpDivide, Answer: "1.5"})
	sess.History.Append(models.TrialRecord{Trial: 3, Number: 2, Operation: models.OpMultiply, Answer: "8"})
	sess.History.Append(models.TrialRecord{Trial: 4, Number: 5, Operation: models.OpAdd, Answer: "6"})

	score := ScoreSession(sess, DefaultScoring)
	assert.Equal(t, 2, score.Rights[models.Arithmetic])
	assert.Equal(t, 1, score.Wrongs[models.Arithmetic])
	assert.Equal(t, 66, score.Overall)
}

func TestSessionMetrics(t *testing.T) {
	sess := noMatchSession(t, 12, 2, 0)
	got := CalculateSessionMetrics(sess)
	require.Len(t, got, 2)

	assert.Equal(t, models.Position1, got[0].Modality)
	assert.Equal(t, SignalCounts{FalseAlarms: 2, CorrectRejections: 8}, got[0].Counts)
	assert.False(t, got[0].Metrics["detection_rate"].Calculated)
	assert.InDelta(t, 0.2, got[0].Metrics["commission_error_rate"].Value, 1e-9)
	assert.Equal(t, SignalCounts{CorrectRejections: 10}, got[1].Counts)
}
