package level

import (
	"errors"
	"fmt"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/metrics"
	"nback-go/internal/models"

	"go.uber.org/zap"
)

var (
	ErrSessionActive = errors.New("session already in progress")
	ErrNoSession     = errors.New("no session in progress")
)

// State is the controller's lifecycle phase.
type State int

const (
	Idle State = iota
	InSession
)

func (s State) String() string {
	if s == InSession {
		return "in_session"
	}
	return "idle"
}

// Tier is the congratulation shown for a session score.
type Tier int

const (
	TierNone Tier = iota
	TierGood
	TierGreat
	TierAwesome
	TierPerfect
)

func (t Tier) String() string {
	switch t {
	case TierGood:
		return "good"
	case TierGreat:
		return "great"
	case TierAwesome:
		return "awesome"
	case TierPerfect:
		return "perfect"
	}
	return "none"
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Policy holds the thresholds and replay switches of the controller.
type Policy struct {
	Advance          int
	Fallback         int
	FallbackSessions int
	// Strict falls back immediately on a single sub-threshold session.
	Strict bool
	// TodayOnly scopes history replay to the current training day.
	TodayOnly    bool
	RolloverHour int
	DefaultBack  int
}

// PolicyFromConfig derives the policy for mode.
func PolicyFromConfig(cfg *config.Config, mode models.ModeID) Policy {
	return Policy{
		Advance:          cfg.AdvanceThreshold(),
		Fallback:         cfg.FallbackThreshold(),
		FallbackSessions: cfg.Thresholds.FallbackSessions,
		Strict:           cfg.Game.JaeggiMode,
		TodayOnly:        cfg.Game.ResetLevel,
		RolloverHour:     cfg.Game.RolloverHour,
		DefaultBack:      cfg.ResolveBack(mode),
	}
}

// Outcome reports what EndSession did with a score.
type Outcome struct {
	Score         int  `json:"score"`
	SessionNumber int  `json:"sessionNumber"`
	PlayedLevel   int  `json:"playedLevel"`
	Level         int  `json:"level"`
	Progress      int  `json:"progress"`
	Advanced      bool `json:"advanced"`
	FellBack      bool `json:"fellBack"`
	Tier          Tier `json:"tier"`
}

// Controller owns the adaptive level state between sessions. It is not
// safe for concurrent use.
type Controller struct {
	state  State
	level  models.LevelState
	policy Policy
	log    *zap.Logger
}

// NewController starts Idle at the policy's default level.
func NewController(mode models.ModeID, trials config.TrialsConfig, manual bool, policy Policy, log *zap.Logger) *Controller {
	return &Controller{
		level: models.LevelState{
			Mode:           mode,
			Level:          max(policy.DefaultBack, 1),
			Manual:         manual,
			TrialsBase:     trials.Base,
			TrialsFactor:   trials.Factor,
			TrialsExponent: trials.Exponent,
		},
		policy: policy,
		log:    log,
	}
}

// FromConfig builds a controller for the configured mode.
func FromConfig(cfg *config.Config, log *zap.Logger) *Controller {
	mode := models.ModeID(cfg.Game.Mode)
	return NewController(mode, cfg.Trials, cfg.Game.Manual, PolicyFromConfig(cfg, mode), log)
}

func (c *Controller) State() State { return c.state }

// Level returns a snapshot of the level state.
func (c *Controller) Level() models.LevelState { return c.level }

func (c *Controller) Policy() Policy { return c.policy }

// SetLevel changes the N-back level by hand, which marks following
// sessions as manual.
func (c *Controller) SetLevel(back int) error {
	if c.state != Idle {
		return ErrSessionActive
	}
	if back < 1 {
		return fmt.Errorf("level must be >= 1, got %d", back)
	}
	c.level.Level = back
	c.level.Progress = 0
	c.level.Manual = true
	return nil
}

// StartSession moves Idle to InSession and numbers the new session.
func (c *Controller) StartSession() (models.LevelState, error) {
	if c.state != Idle {
		return c.level, ErrSessionActive
	}
	c.state = InSession
	c.level.SessionNumber++
	c.log.Debug("Session started",
		zap.Int("session", c.level.SessionNumber),
		zap.Int("mode", int(c.level.Mode)),
		zap.Int("level", c.level.Level),
		zap.Int("trials", c.level.TotalTrials()),
	)
	return c.level, nil
}

// Cancel aborts the running session without scoring it and rolls the
// session number back.
func (c *Controller) Cancel() error {
	if c.state != InSession {
		return ErrNoSession
	}
	c.state = Idle
	c.level.SessionNumber--
	return nil
}

// EndSession applies the hysteresis rules to score and returns to Idle.
func (c *Controller) EndSession(score int) (Outcome, error) {
	if c.state != InSession {
		return Outcome{}, ErrNoSession
	}
	c.state = Idle

	out := Outcome{Score: score, SessionNumber: c.level.SessionNumber, PlayedLevel: c.level.Level}
	if !c.level.Manual {
		out.Advanced, out.FellBack = c.apply(score)
		out.Tier = c.tier(score)
	}
	out.Level = c.level.Level
	out.Progress = c.level.Progress

	if out.Advanced || out.FellBack {
		c.log.Info("Level changed",
			zap.Int("from", out.PlayedLevel),
			zap.Int("to", out.Level),
			zap.Int("score", score),
		)
	}
	return out, nil
}

// apply runs one hysteresis step on the live level state.
func (c *Controller) apply(score int) (advanced, fellBack bool) {
	p := c.policy
	switch {
	case score >= p.Advance:
		c.level.Level++
		c.level.Progress = 0
		return true, false
	case c.level.Level > 1 && score < p.Fallback:
		if p.Strict || c.level.Progress >= p.FallbackSessions-1 {
			c.level.Level--
			c.level.Progress = 0
			return false, true
		}
		c.level.Progress++
	}
	return false, false
}

func (c *Controller) tier(score int) Tier {
	p := c.policy
	switch {
	case score == 100:
		return TierPerfect
	case score >= p.Advance:
		return TierAwesome
	case score >= (p.Advance+p.Fallback)/2:
		return TierGreat
	case score >= p.Fallback:
		return TierGood
	}
	return TierNone
}

// Replay rebuilds level, progress and session number from persisted
// records as if each session of the active mode had just been played.
// Manual sessions only advance the session number. With TodayOnly set, only
// records from the training day containing now count.
func (c *Controller) Replay(records []models.HistoryRecord, now time.Time) error {
	if c.state != Idle {
		return ErrSessionActive
	}
	if c.policy.TodayOnly {
		records = metrics.Today(records, now, c.policy.RolloverHour)
	}

	c.level.Level = max(c.policy.DefaultBack, 1)
	c.level.Progress = 0
	c.level.SessionNumber = 0

	replayed := 0
	for _, r := range records {
		if r.Mode != c.level.Mode {
			continue
		}
		// stored manual sessions carry no number of their own
		if r.Manual {
			c.level.SessionNumber++
			continue
		}
		if r.Back != c.level.Level {
			c.level.Level = max(r.Back, 1)
			c.level.Progress = 0
		}
		c.apply(r.Percent)
		c.level.SessionNumber = r.SessionNumber
		replayed++
	}

	c.log.Debug("Replayed history",
		zap.Int("records", replayed),
		zap.Bool("today_only", c.policy.TodayOnly),
		zap.Int("level", c.level.Level),
		zap.Int("progress", c.level.Progress),
		zap.Int("session", c.level.SessionNumber),
	)
	return nil
}
