package services

import (
	"context"
	"math/rand"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/engine"
	"nback-go/internal/level"
	"nback-go/internal/models"
	"nback-go/internal/repository"

	"go.uber.org/zap"
)

// Trainer ties the game to one user's history. It is not safe for
// concurrent use; Runner serializes access to it.
type Trainer struct {
	cfg     *config.Config
	pending *config.Config
	store   repository.HistoryStore
	archive *repository.Archive
	rng     *rand.Rand
	log     *zap.Logger
	now     func() time.Time

	user    string
	records []models.HistoryRecord
	game    *engine.Game
}

// NewTrainer creates a trainer for the default user. store and archive may
// be nil, in which case results are not persisted.
func NewTrainer(cfg *config.Config, store repository.HistoryStore, archive *repository.Archive, rng *rand.Rand, log *zap.Logger) *Trainer {
	t := &Trainer{
		cfg:     cfg,
		store:   store,
		archive: archive,
		rng:     rng,
		log:     log,
		now:     time.Now,
		user:    repository.DefaultUser,
	}
	t.game = t.newGame(level.FromConfig(cfg, log))
	return t
}

func (t *Trainer) newGame(ctrl *level.Controller) *engine.Game {
	return engine.NewGame(t.cfg, ctrl, t.rng, t.log,
		engine.WithUser(t.user), engine.WithClock(func() time.Time { return t.now() }))
}

func (t *Trainer) Game() *engine.Game { return t.game }

func (t *Trainer) User() string { return t.user }

func (t *Trainer) Config() *config.Config { return t.cfg }

// History returns a copy of the active user's records.
func (t *Trainer) History() []models.HistoryRecord {
	out := make([]models.HistoryRecord, len(t.records))
	copy(out, t.records)
	return out
}

// SelectUser loads the user's history and rebuilds the level state from it.
// A history that cannot be read is logged and treated as empty.
func (t *Trainer) SelectUser(ctx context.Context, user string) error {
	if t.game.Running() {
		return engine.ErrAlreadyActive
	}
	if user == "" {
		user = repository.DefaultUser
	}
	var records []models.HistoryRecord
	if t.store != nil {
		var err error
		records, err = t.store.Load(ctx, user)
		if err != nil {
			t.log.Error("Failed to load history, starting fresh", zap.String("user", user), zap.Error(err))
			records = nil
		}
	}
	t.user = user
	t.records = records
	t.game = t.newGame(t.replay())
	t.log.Info("User selected",
		zap.String("user", user),
		zap.Int("sessions", len(records)),
		zap.Int("level", t.game.Controller().Level().Level),
	)
	return nil
}

// replay builds a controller for the current configuration from history.
func (t *Trainer) replay() *level.Controller {
	ctrl := level.FromConfig(t.cfg, t.log)
	if err := ctrl.Replay(t.records, t.now()); err != nil {
		t.log.Warn("History replay failed", zap.Error(err))
	}
	return ctrl
}

// SetConfig stages a new configuration. It takes effect at the next session
// start, or immediately when idle.
func (t *Trainer) SetConfig(cfg *config.Config) {
	t.pending = cfg
	if !t.game.Running() {
		t.applyPending()
	}
}

func (t *Trainer) applyPending() {
	if t.pending == nil {
		return
	}
	t.cfg, t.pending = t.pending, nil
	if err := t.game.Reconfigure(t.cfg, t.replay()); err != nil {
		t.log.Warn("Reconfigure refused", zap.Error(err))
		return
	}
	t.log.Info("Configuration applied", zap.Int("mode", t.cfg.Game.Mode))
}

// SetLevel switches the active mode's level by hand.
func (t *Trainer) SetLevel(back int) error {
	return t.game.Controller().SetLevel(back)
}

// Start begins a session, applying any staged configuration first.
func (t *Trainer) Start() ([]engine.Event, error) {
	t.applyPending()
	return t.game.Start()
}

// HandleEvents persists completed sessions. Storage failures are logged;
// the in-memory history is updated regardless.
func (t *Trainer) HandleEvents(ctx context.Context, events []engine.Event) {
	for _, ev := range events {
		if ev.Kind != engine.SessionEnded || ev.Result == nil {
			continue
		}
		res := ev.Result
		t.records = append(t.records, res.Record)
		sess := res.Session
		if t.store != nil {
			if err := t.store.Save(ctx, t.user, res.Record, sess); err != nil {
				t.log.Error("Failed to save session", zap.String("user", t.user), zap.Error(err))
			}
		}
		if t.archive != nil {
			if err := t.archive.Append(t.user, res.SessionID, res.Record, sess); err != nil {
				t.log.Error("Failed to archive session", zap.String("user", t.user), zap.Error(err))
			}
		}
		if t.pending != nil {
			t.applyPending()
		}
	}
}
