package sequence

import (
	"math/big"
	"math/rand"
	"testing"

	"nback-go/internal/config"
	"nback-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSession(t *testing.T, id models.ModeID, back, trials int) *models.Session {
	t.Helper()
	mode, err := models.LookupMode(id)
	require.NoError(t, err)
	return &models.Session{
		Mode:        mode,
		Back:        back,
		TotalTrials: trials,
		History:     models.NewSessionHistory(trials),
	}
}

// run generates and appends every trial of the session.
func run(t *testing.T, s *Sequencer, sess *models.Session) []models.TrialRecord {
	t.Helper()
	for trial := 1; trial <= sess.TotalTrials; trial++ {
		rec, err := s.Generate(sess, trial)
		require.NoError(t, err)
		sess.History.Append(rec)
	}
	return sess.History.Records()
}

func TestGuaranteedMatchRate(t *testing.T) {
	cfg := config.Default()
	cfg.Game.ChanceOfGuaranteedMatch = 0.125
	cfg.Game.ChanceOfInterference = 0

	s := NewSequencer(cfg, rand.New(rand.NewSource(7)), zap.NewNop())
	sess := newSession(t, 10, 2, 20000)
	records := run(t, s, sess)

	forced, natural, eligible := 0, 0, 0
	for _, rec := range records[sess.Back:] {
		eligible++
		if rec.Injected[models.Position1] == models.InjectMatch {
			forced++
			continue
		}
		ref, ok := sess.Reference(rec.Trial, sess.Lag(rec.Trial))
		require.True(t, ok)
		if rec.Value(models.StreamPosition1) == ref.Value(models.StreamPosition1) {
			natural++
		}
	}

	assert.InDelta(t, 0.125, float64(forced)/float64(eligible), 0.01, "forced match rate")
	assert.InDelta(t, 0.125, float64(natural)/float64(eligible-forced), 0.01, "chance match rate among unforced trials")
}

func TestNoMatchInjectionDuringWarmUp(t *testing.T) {
	cfg := config.Default()
	cfg.Game.ChanceOfGuaranteedMatch = 1
	s := NewSequencer(cfg, rand.New(rand.NewSource(3)), zap.NewNop())
	sess := newSession(t, 2, 3, 20)

	records := run(t, s, sess)
	for _, rec := range records[:3] {
		assert.Equal(t, models.InjectNone, rec.Injected[models.Position1])
		assert.Equal(t, models.InjectNone, rec.Injected[models.Audio])
	}
	for _, rec := range records[3:] {
		ref, _ := sess.Reference(rec.Trial, 3)
		assert.Equal(t, ref.Value(models.StreamPosition1), rec.Value(models.StreamPosition1))
		assert.Equal(t, ref.Value(models.StreamAudio), rec.Value(models.StreamAudio))
	}
}

func TestInterferenceNeverMatchesGenuineReference(t *testing.T) {
	for _, mode := range []models.ModeID{10, 11, 22, models.DualMode, 10 | models.CrabFlag} {
		cfg := config.Default()
		cfg.Game.ChanceOfGuaranteedMatch = 0
		cfg.Game.ChanceOfInterference = 1

		s := NewSequencer(cfg, rand.New(rand.NewSource(int64(mode))), zap.NewNop())
		sess := newSession(t, mode, 3, 3000)
		interfered := 0
		for trial := 1; trial <= sess.TotalTrials; trial++ {
			rec, err := s.Generate(sess, trial)
			require.NoError(t, err)
			for _, m := range sess.Mode.Modalities {
				if rec.Injected[m] != models.InjectInterference {
					continue
				}
				interfered++
				current, back := m.Streams()
				genuine, ok := sess.Reference(trial, sess.Lag(trial))
				require.True(t, ok)
				assert.NotEqual(t, genuine.Value(back), rec.Value(current),
					"mode %d trial %d modality %s", mode, trial, m)
			}
			sess.History.Append(rec)
		}
		assert.Positive(t, interfered, "mode %d", mode)
	}
}

func TestInterferenceLagCandidates(t *testing.T) {
	cfg := config.Default()
	s := NewSequencer(cfg, rand.New(rand.NewSource(1)), zap.NewNop())
	sess := newSession(t, 10, 2, 10)
	// Trial 5 at lag 2 references trial 3; candidates are lag+1 and lag+N.
	for i, v := range []int{4, 1, 4, 6} {
		var rec models.TrialRecord
		rec.Trial = i + 1
		rec.Values[models.StreamPosition1] = v
		sess.History.Append(rec)
	}
	for i := 0; i < 50; i++ {
		got := s.interferenceLag(sess, 5, 2, models.StreamPosition1)
		assert.Equal(t, 3, got, "only trial 2 differs from trial 3")
	}

	// All candidates equal the genuine reference.
	sess.History.Reset()
	for i := 0; i < 4; i++ {
		var rec models.TrialRecord
		rec.Values[models.StreamPosition1] = 5
		sess.History.Append(rec)
	}
	assert.Zero(t, s.interferenceLag(sess, 5, 2, models.StreamPosition1))
}

func TestMultiStimPositionsNeverCollide(t *testing.T) {
	cfg := config.Default()
	cfg.Game.ChanceOfGuaranteedMatch = 0.5
	cfg.Game.ChanceOfInterference = 0

	for _, mode := range []models.ModeID{2 | 256, 2 | 512, 2 | 768, 20 | 512} {
		s := NewSequencer(cfg, rand.New(rand.NewSource(11)), zap.NewNop())
		sess := newSession(t, mode, 2, 500)
		for _, rec := range run(t, s, sess) {
			seen := map[int]bool{}
			for slot := 1; slot <= sess.Mode.Multi; slot++ {
				v := rec.Value(models.PositionStream(slot))
				assert.False(t, seen[v], "mode %d trial %d: slot %d collides on %d", mode, rec.Trial, slot, v)
				seen[v] = true
			}
		}
	}
}

func TestStaticDefaults(t *testing.T) {
	cfg := config.Default()
	s := NewSequencer(cfg, rand.New(rand.NewSource(5)), zap.NewNop())

	sess := newSession(t, 11, 2, 10) // audio only
	for _, rec := range run(t, s, sess) {
		assert.Equal(t, 0, rec.Value(models.StreamPosition1))
		assert.Equal(t, cfg.Game.VisualColors[0], rec.Value(models.StreamColor))
		assert.Equal(t, 0, rec.Value(models.StreamVis))
		assert.GreaterOrEqual(t, rec.Value(models.StreamAudio), 1)
		assert.LessOrEqual(t, rec.Value(models.StreamAudio), 8)
	}

	cfg.Game.MultiMode = "image"
	s = NewSequencer(cfg, rand.New(rand.NewSource(5)), zap.NewNop())
	sess = newSession(t, 2|256, 2, 10)
	for _, rec := range run(t, s, sess) {
		for i := 1; i <= 4; i++ {
			assert.Equal(t, cfg.Game.VisualColors[0], rec.Value(models.VisStream(i)))
		}
	}
}

func TestJaeggiModeUsesConstrainedSequence(t *testing.T) {
	cfg := config.Default()
	cfg.Game.JaeggiMode = true
	cfg.Normalize()

	rng := rand.New(rand.NewSource(9))
	s := NewSequencer(cfg, rng, zap.NewNop())
	sess := newSession(t, models.DualMode, 2, 22)

	_, err := s.Generate(sess, 1)
	require.ErrorIs(t, err, ErrConstrainedMissing)

	pos, audio, err := GenerateConstrained(rng, 22, 2)
	require.NoError(t, err)
	sess.Constrained = &models.ConstrainedSequence{Position: pos, Audio: audio}

	for i, rec := range run(t, s, sess) {
		assert.Equal(t, pos[i], rec.Value(models.StreamPosition1))
		assert.Equal(t, audio[i], rec.Value(models.StreamAudio))
	}
}

func TestArithmeticDivisionProducesAcceptableQuotients(t *testing.T) {
	cfg := config.Default()
	cfg.Arithmetic.UseAddition = false
	cfg.Arithmetic.UseSubtraction = false
	cfg.Arithmetic.UseMultiplication = false
	cfg.Arithmetic.UseNegatives = true
	decimals, err := cfg.AcceptableDecimals()
	require.NoError(t, err)

	s := NewSequencer(cfg, rand.New(rand.NewSource(21)), zap.NewNop())
	sess := newSession(t, 7, 2, 400)
	for _, rec := range run(t, s, sess) {
		assert.Equal(t, models.OpDivide, rec.Operation)
		assert.NotZero(t, rec.Number, "trial %d", rec.Trial)
		if rec.Trial <= sess.Back {
			continue
		}
		ref, _ := sess.Reference(rec.Trial, sess.Lag(rec.Trial))
		q, ok := rec.Operation.Apply(ref.Number, rec.Number)
		require.True(t, ok)
		frac := new(big.Rat).Abs(q)
		frac.Sub(frac, new(big.Rat).SetInt(new(big.Int).Quo(frac.Num(), frac.Denom())))
		if frac.Sign() == 0 {
			continue
		}
		assert.True(t, fractionAccepted(frac, decimals), "trial %d: %d / %d", rec.Trial, ref.Number, rec.Number)
	}
}

func TestDivisorCandidates(t *testing.T) {
	decimals := []*big.Rat{big.NewRat(1, 2), big.NewRat(1, 4)}

	assert.Equal(t, []int{1, 2, 3, 4, 6, 8, 12}, DivisorCandidates(12, 0, 12, decimals))
	// 3/2 = 1.5, 3/4 = 0.75 is not whitelisted, 3/12 = 0.25
	assert.Equal(t, []int{1, 2, 3, 6, 12}, DivisorCandidates(3, 0, 12, decimals))
	assert.Equal(t, []int{-2, -1, 1, 2}, DivisorCandidates(-2, -2, 2, nil))
	assert.Empty(t, DivisorCandidates(7, 2, 6, nil))
}

func TestNoOperationsEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Arithmetic.UseAddition = false
	cfg.Arithmetic.UseSubtraction = false
	cfg.Arithmetic.UseMultiplication = false
	cfg.Arithmetic.UseDivision = false

	s := NewSequencer(cfg, rand.New(rand.NewSource(1)), zap.NewNop())
	_, err := s.Generate(newSession(t, 7, 2, 5), 1)
	assert.ErrorIs(t, err, ErrNoOperations)
}
