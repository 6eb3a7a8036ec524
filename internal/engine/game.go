package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/level"
	"nback-go/internal/metrics"
	"nback-go/internal/models"
	"nback-go/internal/sequence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TickDuration is the nominal period of one Tick.
const TickDuration = 100 * time.Millisecond

var (
	ErrNotRunning    = errors.New("no session running")
	ErrAlreadyActive = errors.New("session already running")
	ErrNotSelfPaced  = errors.New("mode is not self-paced")
)

// Game runs practice sessions one tick at a time. It owns the level
// controller, the sequencer and the session history, and must be driven
// from a single goroutine.
type Game struct {
	cfg        *config.Config
	controller *level.Controller
	sequencer  *sequence.Sequencer
	rng        *rand.Rand
	log        *zap.Logger
	clock      func() time.Time

	user      string
	sessionID string
	session   *models.Session
	model     metrics.ScoringModel
	current   models.TrialRecord
	answer    answerBuffer

	running    bool
	paused     bool
	hidden     bool
	frozen     bool
	tick       int
	trial      int
	ticks      int
	trialStart time.Time
	startedAt  time.Time
}

// Option customises a Game.
type Option func(*Game)

// WithClock replaces time.Now for reaction times and record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(g *Game) { g.clock = clock }
}

// WithUser tags results with a user name.
func WithUser(user string) Option {
	return func(g *Game) { g.user = user }
}

// NewGame creates an idle game around an existing level controller.
func NewGame(cfg *config.Config, controller *level.Controller, rng *rand.Rand, log *zap.Logger, opts ...Option) *Game {
	g := &Game{
		cfg:        cfg,
		controller: controller,
		sequencer:  sequence.NewSequencer(cfg, rng, log),
		rng:        rng,
		log:        log,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) Running() bool { return g.running }

func (g *Game) Controller() *level.Controller { return g.controller }

// Reconfigure swaps configuration and controller. It is refused while a
// session runs; new values apply from the next Start.
func (g *Game) Reconfigure(cfg *config.Config, controller *level.Controller) error {
	if g.running {
		return ErrAlreadyActive
	}
	g.cfg = cfg
	g.controller = controller
	g.sequencer = sequence.NewSequencer(cfg, g.rng, g.log)
	return nil
}

// Start begins a new session at the controller's current level.
func (g *Game) Start() ([]Event, error) {
	if g.running {
		return nil, ErrAlreadyActive
	}
	state := g.controller.Level()
	mode, err := models.LookupMode(state.Mode)
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		Mode:        mode,
		Back:        state.Level,
		TotalTrials: state.TotalTrials(),
		History:     models.NewSessionHistory(state.TotalTrials()),
	}
	if g.cfg.Game.JaeggiMode {
		pos, audio, err := sequence.GenerateConstrained(g.rng, sess.TotalTrials, sess.Back)
		if err != nil {
			return nil, fmt.Errorf("jaeggi sequence: %w", err)
		}
		sess.Constrained = &models.ConstrainedSequence{Position: pos, Audio: audio}
	}
	if g.cfg.Game.VariableNBack {
		sess.Lags = sequence.GenerateLagSchedule(g.rng, sess.TotalTrials, sess.Back)
	}

	if _, err := g.controller.StartSession(); err != nil {
		return nil, err
	}

	g.session = sess
	g.sessionID = uuid.NewString()
	g.model = metrics.DefaultScoring
	if g.cfg.Game.JaeggiScoring {
		g.model = metrics.JaeggiScoring
	}
	g.ticks = g.cfg.ResolveTicks(mode.ID)
	g.tick = -9 - 5*(mode.Multi-1)
	if g.cfg.Game.MultiMode == "image" {
		g.tick -= 5 * (mode.Multi - 1)
	}
	g.trial = 0
	g.running, g.paused, g.hidden, g.frozen = true, false, false, false
	g.current = models.TrialRecord{}
	g.answer.reset()
	g.startedAt = g.clock()

	g.log.Info("Session started",
		zap.String("session_id", g.sessionID),
		zap.String("user", g.user),
		zap.String("mode", mode.Label(sess.Back)),
		zap.Int("trials", sess.TotalTrials),
		zap.Int("ticks_per_trial", g.ticks),
	)
	return []Event{{Kind: SessionStarted, SessionID: g.sessionID}}, nil
}

// Tick advances the running session by one tick and returns what happened.
func (g *Game) Tick() ([]Event, error) {
	if !g.running || g.paused {
		return nil, nil
	}
	if !g.session.Mode.SelfPaced || g.tick > g.ticks-6 || g.tick < 5 {
		g.tick++
	}

	var events []Event
	if g.tick == 1 {
		if g.trial > 0 {
			g.closeTrial()
		}
		g.trial++
		if g.trial > g.session.TotalTrials {
			ev, err := g.finish()
			if err != nil {
				return nil, err
			}
			return append(events, ev), nil
		}
		ev, err := g.openTrial()
		if err != nil {
			g.abort()
			return nil, err
		}
		events = append(events, ev)
	}

	if g.trial < 1 {
		return events, nil
	}
	if !g.hidden && g.tick == g.hideTick() {
		g.hidden = true
		events = append(events, Event{Kind: StimulusHidden, SessionID: g.sessionID, Trial: g.trial})
	}
	if g.tick >= g.ticks-2 {
		if !g.hidden {
			g.hidden = true
			events = append(events, Event{Kind: StimulusHidden, SessionID: g.sessionID, Trial: g.trial})
		}
		events = append(events, g.feedback())
		g.frozen = true
		g.tick = 0
	}
	return events, nil
}

// hideTick is the tick at which the stimulus disappears, later for modes
// that show several positions.
func (g *Game) hideTick() int {
	return 6 + max(0, g.session.Mode.PositionCount()-1)
}

func (g *Game) openTrial() (Event, error) {
	rec, err := g.sequencer.Generate(g.session, g.trial)
	if err != nil {
		return Event{}, fmt.Errorf("trial %d: %w", g.trial, err)
	}
	g.current = rec
	g.answer.reset()
	g.hidden, g.frozen = false, false
	g.trialStart = g.clock()
	return Event{Kind: TrialStarted, SessionID: g.sessionID, Trial: g.trial, Stimulus: stimulusOf(g.session, rec)}, nil
}

func (g *Game) closeTrial() {
	g.current.Answer = g.answer.String()
	g.session.History.Append(g.current)
	g.current = models.TrialRecord{}
}

// feedback evaluates the frozen responses of the current trial.
func (g *Game) feedback() Event {
	rec := g.current
	rec.Answer = g.answer.String()
	out := map[models.Modality]metrics.Outcome{}
	for _, m := range g.session.Mode.Modalities {
		switch {
		case m == models.Arithmetic:
			out[m] = metrics.Evaluate(g.session, rec, m, false)
		case rec.Pressed[m]:
			out[m] = metrics.Evaluate(g.session, rec, m, false)
		default:
			if o := metrics.Evaluate(g.session, rec, m, true); o == metrics.Missed {
				out[m] = o
			}
		}
	}
	return Event{Kind: Feedback, SessionID: g.sessionID, Trial: g.trial, Feedback: out}
}

func (g *Game) finish() (Event, error) {
	score := metrics.ScoreSession(g.session, g.model)
	outcome, err := g.controller.EndSession(score.Overall)
	if err != nil {
		return Event{}, err
	}

	sess := g.session
	record := models.HistoryRecord{
		Timestamp:        g.clock(),
		ShortName:        sess.Mode.Label(sess.Back),
		Percent:          score.Overall,
		Mode:             sess.Mode.ID,
		Back:             sess.Back,
		TicksPerTrial:    g.ticks,
		TotalTrials:      sess.TotalTrials,
		Manual:           g.controller.Level().Manual,
		SessionNumber:    outcome.SessionNumber,
		CategoryPercents: score.Percents,
		DurationSeconds:  float64(g.ticks) * TickDuration.Seconds() * float64(sess.TotalTrials),
	}
	result := &Result{
		SessionID: g.sessionID,
		User:      g.user,
		Score:     score,
		Percents:  percentsOf(score),
		Outcome:   outcome,
		Record:    record,
		Trials:    sess.History.Records(),
		Session:   sess,
		Metrics:   metrics.CalculateSessionMetrics(sess),
	}
	g.running = false

	g.log.Info("Session finished",
		zap.String("session_id", g.sessionID),
		zap.String("mode", record.ShortName),
		zap.Int("score", score.Overall),
		zap.Int("level", outcome.Level),
		zap.Stringer("tier", outcome.Tier),
	)
	return Event{Kind: SessionEnded, SessionID: g.sessionID, Trial: g.trial - 1, Result: result}, nil
}

// abort stops a session that cannot continue without scoring it.
func (g *Game) abort() {
	if err := g.controller.Cancel(); err != nil {
		g.log.Warn("Cancel after failure", zap.Error(err))
	}
	g.running = false
}

// Cancel discards the session in progress, including the current trial.
func (g *Game) Cancel() ([]Event, error) {
	if !g.running {
		return nil, ErrNotRunning
	}
	g.abort()
	g.current = models.TrialRecord{}
	g.log.Info("Session cancelled", zap.String("session_id", g.sessionID), zap.Int("trial", g.trial))
	return []Event{{Kind: SessionCancelled, SessionID: g.sessionID, Trial: g.trial}}, nil
}

// TogglePause stops or resumes the tick clock.
func (g *Game) TogglePause() ([]Event, error) {
	if !g.running {
		return nil, ErrNotRunning
	}
	g.paused = !g.paused
	kind := Resumed
	if g.paused {
		kind = Paused
	}
	return []Event{{Kind: kind, SessionID: g.sessionID, Trial: g.trial}}, nil
}

// accepting reports whether responses for the current trial are open.
func (g *Game) accepting() bool {
	return g.running && !g.paused && g.trial > 0 && g.trial <= g.session.TotalTrials && !g.frozen
}

// Press records a match response for modality m. Presses outside the
// response window or for modalities the mode does not train are ignored.
// Only the first press of a trial sets the reaction time.
func (g *Game) Press(m models.Modality) (bool, error) {
	if !g.running {
		return false, ErrNotRunning
	}
	if !g.accepting() || m == models.Arithmetic || !g.session.Mode.Has(m) {
		return false, nil
	}
	if !g.current.Pressed[m] {
		g.current.Pressed[m] = true
		g.current.Reaction[m] = g.clock().Sub(g.trialStart)
	}
	return true, nil
}

// AnswerKey feeds one keystroke of arithmetic input.
func (g *Game) AnswerKey(k rune) (bool, error) {
	if !g.running {
		return false, ErrNotRunning
	}
	if !g.accepting() || !g.session.Mode.Has(models.Arithmetic) {
		return false, nil
	}
	return g.answer.key(k), nil
}

// Advance ends the waiting period of a self-paced trial.
func (g *Game) Advance() error {
	if !g.running {
		return ErrNotRunning
	}
	if !g.session.Mode.SelfPaced {
		return ErrNotSelfPaced
	}
	if g.trial > 0 && !g.frozen {
		g.tick = max(g.tick, g.ticks-3)
	}
	return nil
}

// Snapshot is the state exposed to rendering and API layers.
type Snapshot struct {
	SessionID     string                  `json:"sessionId,omitempty"`
	User          string                  `json:"user,omitempty"`
	Running       bool                    `json:"running"`
	Paused        bool                    `json:"paused"`
	Mode          models.ModeID           `json:"mode"`
	ModeName      string                  `json:"modeName"`
	Level         int                     `json:"level"`
	Progress      int                     `json:"progress"`
	FallbackAfter int                     `json:"fallbackAfter"`
	SessionNumber int                     `json:"sessionNumber"`
	Manual        bool                    `json:"manual"`
	Trial         int                     `json:"trial"`
	TotalTrials   int                     `json:"totalTrials"`
	TicksPerTrial int                     `json:"ticksPerTrial"`
	Stimulus      *Stimulus               `json:"stimulus,omitempty"`
	Answer        string                  `json:"answer,omitempty"`
	Scores        map[models.Modality]int `json:"scores,omitempty"`
}

// Snapshot reports the current game state, including the score so far.
func (g *Game) Snapshot() Snapshot {
	state := g.controller.Level()
	s := Snapshot{
		User:          g.user,
		Running:       g.running,
		Paused:        g.paused,
		Mode:          state.Mode,
		Level:         state.Level,
		Progress:      state.Progress,
		FallbackAfter: g.controller.Policy().FallbackSessions,
		SessionNumber: state.SessionNumber,
		Manual:        state.Manual,
		TotalTrials:   state.TotalTrials(),
		TicksPerTrial: g.cfg.ResolveTicks(state.Mode),
	}
	if mode, err := models.LookupMode(state.Mode); err == nil {
		s.ModeName = mode.LongName
	}
	if !g.running {
		return s
	}
	s.SessionID = g.sessionID
	s.Trial = g.trial
	s.TotalTrials = g.session.TotalTrials
	s.TicksPerTrial = g.ticks
	s.Answer = g.answer.String()
	if g.trial > 0 && !g.hidden {
		s.Stimulus = stimulusOf(g.session, g.current)
	}
	s.Scores = percentsOf(metrics.ScoreSession(g.session, g.model))
	return s
}

// Solution is the correct response to the trial on screen.
type Solution struct {
	Matches []models.Modality
	// Answer is the arithmetic result as decimal text, empty when the mode
	// has no arithmetic or the trial is in warm-up.
	Answer string
}

// Solution reports the correct response for the current trial. ok is false
// when no trial is open.
func (g *Game) Solution() (sol Solution, ok bool) {
	if !g.running || g.trial < 1 || g.trial > g.session.TotalTrials {
		return Solution{}, false
	}
	for _, m := range g.session.Mode.Modalities {
		if m == models.Arithmetic {
			continue
		}
		if match, found := metrics.IsMatch(g.session, g.current, m); found && match {
			sol.Matches = append(sol.Matches, m)
		}
	}
	if g.session.Mode.Has(models.Arithmetic) && g.trial > g.session.Back {
		if ref, found := g.session.Reference(g.trial, g.session.Lag(g.trial)); found {
			if r, valid := g.current.Operation.Apply(ref.Number, g.current.Number); valid {
				sol.Answer = strings.TrimSuffix(strings.TrimRight(r.FloatString(6), "0"), ".")
			}
		}
	}
	return sol, true
}
