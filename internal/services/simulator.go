package services

import (
	"context"
	"errors"
	"math/rand"
	"slices"

	"nback-go/internal/engine"
	"nback-go/internal/models"

	"go.uber.org/zap"
)

// maxSessionTicks bounds one simulated session.
const maxSessionTicks = 1_000_000

// Player is a synthetic responder. It presses genuine matches with
// probability Accuracy, false-alarms on other trials with probability
// FalseAlarm, and types the right arithmetic answer with probability
// Accuracy.
type Player struct {
	Accuracy   float64
	FalseAlarm float64
	rng        *rand.Rand
}

func NewPlayer(accuracy float64, rng *rand.Rand) *Player {
	return &Player{Accuracy: accuracy, FalseAlarm: (1 - accuracy) / 4, rng: rng}
}

func (p *Player) respond(g *engine.Game, mode models.ModeDescriptor) error {
	sol, ok := g.Solution()
	if !ok {
		return nil
	}
	for _, m := range mode.Modalities {
		if m == models.Arithmetic {
			continue
		}
		chance := p.FalseAlarm
		if slices.Contains(sol.Matches, m) {
			chance = p.Accuracy
		}
		if p.rng.Float64() < chance {
			if _, err := g.Press(m); err != nil {
				return err
			}
		}
	}
	if sol.Answer != "" && p.rng.Float64() < p.Accuracy {
		for _, k := range sol.Answer {
			if k == '-' {
				continue
			}
			if _, err := g.AnswerKey(k); err != nil {
				return err
			}
		}
		if sol.Answer[0] == '-' {
			if _, err := g.AnswerKey('-'); err != nil {
				return err
			}
		}
	}
	return nil
}

// Simulate plays sessions back to back on the trainer without waiting for
// real time. Results are persisted through the trainer like live sessions.
func Simulate(ctx context.Context, t *Trainer, player *Player, sessions int, log *zap.Logger) ([]*engine.Result, error) {
	results := make([]*engine.Result, 0, sessions)
	for i := 0; i < sessions; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := simulateSession(ctx, t, player)
		if err != nil {
			return results, err
		}
		log.Debug("Simulated session",
			zap.Int("session", res.Outcome.SessionNumber),
			zap.Int("score", res.Score.Overall),
			zap.Int("level", res.Outcome.Level),
		)
		results = append(results, res)
	}
	return results, nil
}

func simulateSession(ctx context.Context, t *Trainer, player *Player) (*engine.Result, error) {
	events, err := t.Start()
	if err != nil {
		return nil, err
	}
	t.HandleEvents(ctx, events)
	g := t.Game()
	mode, err := models.LookupMode(g.Controller().Level().Mode)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxSessionTicks; i++ {
		if mode.SelfPaced {
			if err := g.Advance(); err != nil {
				return nil, err
			}
		}
		events, err := g.Tick()
		if err != nil {
			return nil, err
		}
		t.HandleEvents(ctx, events)
		for _, ev := range events {
			switch ev.Kind {
			case engine.TrialStarted:
				if err := player.respond(g, mode); err != nil {
					return nil, err
				}
			case engine.SessionEnded:
				return ev.Result, nil
			}
		}
	}
	return nil, errors.New("simulated session did not finish")
}
