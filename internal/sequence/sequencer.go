package sequence

import (
	"errors"
	"fmt"
	"math/rand"

	"nback-go/internal/config"
	"nback-go/internal/models"

	"go.uber.org/zap"
)

// ErrConstrainedMissing is returned when Jaeggi mode is active but the
// session carries no precomputed sequence long enough for the trial.
var ErrConstrainedMissing = errors.New("constrained sequence missing for trial")

// StimulusValues is the size of every raw stimulus alphabet (values 1..8).
const StimulusValues = 8

// Sequencer draws the stimulus set for each trial of a session.
type Sequencer struct {
	cfg *config.Config
	rng *rand.Rand
	log *zap.Logger
}

// NewSequencer creates a sequencer. The rng is owned by the caller and must
// not be shared across goroutines.
func NewSequencer(cfg *config.Config, rng *rand.Rand, log *zap.Logger) *Sequencer {
	return &Sequencer{cfg: cfg, rng: rng, log: log}
}

// Generate returns the stimulus record for trial (1-based). It only reads
// the session history; the caller appends the returned record.
func (s *Sequencer) Generate(sess *models.Session, trial int) (models.TrialRecord, error) {
	rec := models.TrialRecord{Trial: trial}
	mode := sess.Mode

	// Positions are a sample without replacement so multi-stim slots never
	// collide on a random draw.
	positions := s.rng.Perm(StimulusValues)[:4]
	for i := range positions {
		positions[i]++
		rec.Values[models.PositionStream(i+1)] = positions[i]
		rec.Values[models.VisStream(i+1)] = s.draw()
	}
	rec.Values[models.StreamColor] = s.draw()
	rec.Values[models.StreamVis] = s.draw()
	rec.Values[models.StreamAudio] = s.draw()
	rec.Values[models.StreamAudio2] = s.draw()

	if err := s.arithmetic(sess, trial, &rec); err != nil {
		return models.TrialRecord{}, err
	}

	lag := sess.Lag(trial)
	if !mode.OnlyArithmetic() && trial > sess.Back {
		for _, m := range mode.Modalities {
			if m == models.Arithmetic {
				continue
			}
			s.inject(sess, trial, lag, m, &rec, positions)
		}
		if mode.Multi > 1 {
			s.reversal(sess, trial, lag, &rec)
		}
	}

	s.applyStaticDefaults(mode, &rec)

	if s.cfg.Game.JaeggiMode {
		c := sess.Constrained
		if c == nil || trial > len(c.Position) || trial > len(c.Audio) {
			return models.TrialRecord{}, fmt.Errorf("%w: trial %d", ErrConstrainedMissing, trial)
		}
		rec.Values[models.StreamPosition1] = c.Position[trial-1]
		rec.Values[models.StreamAudio] = c.Audio[trial-1]
	}
	return rec, nil
}

// draw returns a uniform value in 1..8.
func (s *Sequencer) draw() int {
	return s.rng.Intn(StimulusValues) + 1
}

// inject applies guaranteed-match or interference forcing to one modality.
// The guaranteed match is checked first; at most one of the two applies.
func (s *Sequencer) inject(sess *models.Session, trial, lag int, m models.Modality, rec *models.TrialRecord, positions []int) {
	current, backStream := m.Streams()

	r1, r2 := s.rng.Float64(), s.rng.Float64()
	if sess.Mode.Multi > 1 {
		r2 = r2 * 3 / 2
	}

	back, kind := 0, models.InjectNone
	switch {
	case r1 < s.cfg.Game.ChanceOfGuaranteedMatch:
		back, kind = lag, models.InjectMatch
	case r2 < s.cfg.Game.ChanceOfInterference && sess.Back > 1:
		back, kind = s.interferenceLag(sess, trial, lag, backStream), models.InjectInterference
		if back != 0 {
			s.log.Debug("Forcing interference",
				zap.Int("trial", trial),
				zap.Stringer("modality", m),
				zap.Int("lag", lag),
				zap.Int("interference_lag", back),
			)
		}
	}
	if back == 0 {
		return
	}

	ref, ok := sess.Reference(trial, back)
	if !ok {
		return
	}
	matching := ref.Value(backStream)

	if slot := m.PositionSlot(); slot > 0 && sess.Mode.Multi > 1 {
		s.avoidCollision(sess.Mode.Multi, slot, matching, rec, positions)
		positions[slot-1] = matching
	}
	rec.Values[current] = matching
	rec.Injected[m] = kind
}

// interferenceLag picks a near-miss distance from lag-1, lag+1 and lag+N.
// A candidate is only usable when its value differs from the genuine
// reference at lag, so the forced value can never produce a real match.
// Candidates are shuffled and the last usable one wins. Zero means none.
func (s *Sequencer) interferenceLag(sess *models.Session, trial, lag int, stream models.Stream) int {
	offsets := []int{-1, 1, sess.Back}
	if lag < 3 {
		offsets = offsets[1:]
	}
	s.rng.Shuffle(len(offsets), func(i, j int) { offsets[i], offsets[j] = offsets[j], offsets[i] })

	genuine, ok := sess.Reference(trial, lag)
	if !ok {
		return 0
	}
	chosen := 0
	for _, off := range offsets {
		ref, ok := sess.Reference(trial, lag+off)
		if !ok {
			continue
		}
		if ref.Value(stream) != genuine.Value(stream) {
			chosen = lag + off
		}
	}
	return chosen
}

// avoidCollision moves another displayed slot out of the way when the forced
// value for slot is already shown there, giving it slot's random draw.
func (s *Sequencer) avoidCollision(multi, slot, matching int, rec *models.TrialRecord, positions []int) {
	for i := 0; i < multi; i++ {
		if i == slot-1 || positions[i] != matching {
			continue
		}
		displaced := rec.Values[models.PositionStream(slot)]
		s.log.Debug("Moving colliding position",
			zap.Int("slot", i+1),
			zap.Int("from", positions[i]),
			zap.Int("to", displaced),
		)
		rec.Values[models.PositionStream(i+1)] = displaced
		positions[i] = displaced
		return
	}
}

// reversal copies the lag-back position (or vis) slots rotated by a random
// offset, a multi-stim specific near-miss.
func (s *Sequencer) reversal(sess *models.Session, trial, lag int, rec *models.TrialRecord) {
	if s.rng.Float64() >= s.cfg.Game.ChanceOfInterference/3 {
		return
	}
	ref, ok := sess.Reference(trial, lag)
	if !ok {
		return
	}
	multi := sess.Mode.Multi
	stream := models.PositionStream
	if sess.Mode.Has(models.Vis1) && s.rng.Float64() < 0.5 {
		stream = models.VisStream
	}
	offset := 1 + s.rng.Intn(multi-1)
	for i := 0; i < multi; i++ {
		rec.Values[stream(i+1)] = ref.Value(stream((i+offset)%multi + 1))
	}
	s.log.Debug("Multi-stim reversal", zap.Int("trial", trial), zap.Int("offset", offset))
}

// applyStaticDefaults pins streams the mode does not train to fixed values.
func (s *Sequencer) applyStaticDefaults(mode models.ModeDescriptor, rec *models.TrialRecord) {
	if !mode.Has(models.Color) {
		rec.Values[models.StreamColor] = s.cfg.Game.VisualColors[0]
	}
	if !mode.Has(models.Position1) {
		rec.Values[models.StreamPosition1] = 0
	}
	if !mode.Has(models.VisVis) && !mode.Has(models.Arithmetic) && !mode.Has(models.Image) {
		rec.Values[models.StreamVis] = 0
	}
	if mode.Multi > 1 && !mode.Has(models.Vis1) {
		for i := 1; i <= 4; i++ {
			if s.cfg.Game.MultiMode == "image" {
				rec.Values[models.VisStream(i)] = s.cfg.Game.VisualColors[0]
			} else {
				rec.Values[models.VisStream(i)] = 0
			}
		}
	}
}
