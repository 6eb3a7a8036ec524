package metrics

import (
	"testing"

	"nback-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSession creates a session whose history holds one record per entry
// of positions, with audio values from audio when non-nil.
func buildSession(t *testing.T, id models.ModeID, back int, positions, audio []int) *models.Session {
	t.Helper()
	mode, err := models.LookupMode(id)
	require.NoError(t, err)
	sess := &models.Session{
		Mode:        mode,
		Back:        back,
		TotalTrials: len(positions),
		History:     models.NewSessionHistory(len(positions)),
	}
	for i, p := range positions {
		rec := models.TrialRecord{Trial: i + 1}
		rec.Values[models.StreamPosition1] = p
		if audio != nil {
			rec.Values[models.StreamAudio] = audio[i]
		}
		sess.History.Append(rec)
	}
	return sess
}

func next(sess *models.Session, position int) models.TrialRecord {
	rec := models.TrialRecord{Trial: sess.History.Len() + 1}
	rec.Values[models.StreamPosition1] = position
	return rec
}

func TestEvaluateOutcomes(t *testing.T) {
	sess := buildSession(t, 10, 2, []int{3, 5, 3}, nil)

	match := next(sess, 5) // trial 4 repeats trial 2
	noMatch := next(sess, 7)

	tests := []struct {
		name        string
		rec         models.TrialRecord
		pressed     bool
		checkMissed bool
		want        Outcome
	}{
		{"hit", match, true, false, Correct},
		{"false alarm", noMatch, true, false, Incorrect},
		{"miss unchecked", match, false, false, Incorrect},
		{"miss checked", match, false, true, Missed},
		{"correct rejection", noMatch, false, true, Correct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			rec.Pressed[models.Position1] = tt.pressed
			assert.Equal(t, tt.want, Evaluate(sess, rec, models.Position1, tt.checkMissed))
		})
	}
}

func TestEvaluateUnknownDuringWarmUp(t *testing.T) {
	sess := buildSession(t, 10, 3, []int{1, 2}, nil)
	rec := next(sess, 1)
	rec.Pressed[models.Position1] = true
	assert.Equal(t, Unknown, Evaluate(sess, rec, models.Position1, false))

	sess.History.Append(rec)
	rec = next(sess, 1)
	rec.Pressed[models.Position1] = true
	assert.Equal(t, Correct, Evaluate(sess, rec, models.Position1, false))
}

func TestEvaluateCombinationModalities(t *testing.T) {
	sess := buildSession(t, 4, 1, []int{0}, nil)
	first, _ := sess.History.Trial(1)
	first.Values[models.StreamVis] = 4
	first.Values[models.StreamAudio] = 6
	sess.History.Reset()
	sess.History.Append(first)

	rec := models.TrialRecord{Trial: 2}
	rec.Values[models.StreamVis] = 6   // matches audio one back
	rec.Values[models.StreamAudio] = 4 // matches vis one back
	for _, m := range []models.Modality{models.VisVis, models.VisAudio, models.AudioVis, models.Audio} {
		rec.Pressed[m] = true
	}

	assert.Equal(t, Incorrect, Evaluate(sess, rec, models.VisVis, false))
	assert.Equal(t, Correct, Evaluate(sess, rec, models.VisAudio, false))
	assert.Equal(t, Correct, Evaluate(sess, rec, models.AudioVis, false))
	assert.Equal(t, Incorrect, Evaluate(sess, rec, models.Audio, false))
}

func TestEvaluateUsesCrabLag(t *testing.T) {
	// Crab 2-back: trial 3 looks 1 back, trial 4 looks 3 back.
	sess := buildSession(t, 10|models.CrabFlag, 2, []int{8, 2, 2}, nil)
	rec := next(sess, 8)
	rec.Pressed[models.Position1] = true
	assert.Equal(t, Correct, Evaluate(sess, rec, models.Position1, false))

	sess = buildSession(t, 10|models.CrabFlag, 2, []int{8, 2}, nil)
	rec = next(sess, 2)
	rec.Pressed[models.Position1] = true
	assert.Equal(t, Correct, Evaluate(sess, rec, models.Position1, false))
}

func TestEvaluateArithmeticExact(t *testing.T) {
	mode, err := models.LookupMode(7)
	require.NoError(t, err)
	sess := &models.Session{Mode: mode, Back: 1, History: models.NewSessionHistory(4)}
	sess.History.Append(models.TrialRecord{Trial: 1, Number: 3})

	tests := []struct {
		op     models.Operation
		number int
		answer string
		want   Outcome
	}{
		{models.OpAdd, 4, "7", Correct},
		{models.OpSubtract, 5, "-2", Correct},
		{models.OpMultiply, 4, "12.", Correct},
		{models.OpDivide, 4, ".75", Correct},
		{models.OpDivide, 4, "0.7500", Correct},
		{models.OpDivide, 8, "0.375", Correct},
		{models.OpDivide, 9, "0.333", Incorrect},
		{models.OpSubtract, 3, "", Correct},
		{models.OpAdd, 1, "", Incorrect},
		{models.OpAdd, 1, "4x", Incorrect},
	}
	for _, tt := range tests {
		rec := models.TrialRecord{Trial: 2, Number: tt.number, Operation: tt.op, Answer: tt.answer}
		assert.Equal(t, tt.want, Evaluate(sess, rec, models.Arithmetic, false), "%s %d answer %q", tt.op, tt.number, tt.answer)
	}

	want, ok := ExpectedAnswer(sess, models.TrialRecord{Trial: 2, Number: 4, Operation: models.OpDivide})
	require.True(t, ok)
	assert.Equal(t, "3/4", want)
}
