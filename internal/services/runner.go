package services

import (
	"context"
	"errors"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/engine"
	"nback-go/internal/models"

	"go.uber.org/zap"
)

// ErrStopped is returned by calls made after the runner has shut down.
var ErrStopped = errors.New("runner stopped")

const subscriberBuffer = 64

type command struct {
	run   func(context.Context, *Trainer) (any, []engine.Event, error)
	reply chan reply
}

type reply struct {
	value any
	err   error
}

// Runner owns a Trainer on a single goroutine. The game is ticked by a
// ticker, and every other access arrives as a command over a channel.
// Events are fanned out to subscribers; slow subscribers lose events.
type Runner struct {
	trainer  *Trainer
	log      *zap.Logger
	interval time.Duration

	cmds        chan command
	subscribe   chan chan engine.Event
	unsubscribe chan chan engine.Event
	done        chan struct{}
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithTickInterval overrides the wall-clock tick period.
func WithTickInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.interval = d }
}

func NewRunner(trainer *Trainer, log *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		trainer:     trainer,
		log:         log,
		interval:    engine.TickDuration,
		cmds:        make(chan command),
		subscribe:   make(chan chan engine.Event),
		unsubscribe: make(chan chan engine.Event),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the loop in a goroutine until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("Starting session runner...", zap.Duration("tick", r.interval))
	go r.loop(ctx)
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	subs := map[chan engine.Event]struct{}{}
	defer func() {
		for ch := range subs {
			close(ch)
		}
		close(r.done)
	}()

	for {
		select {
		case <-ctx.Done():
			if r.trainer.Game().Running() {
				if _, err := r.trainer.Game().Cancel(); err != nil {
					r.log.Warn("Cancel on shutdown", zap.Error(err))
				}
			}
			r.log.Info("Session runner stopped")
			return
		case <-ticker.C:
			events, err := r.trainer.Game().Tick()
			if err != nil {
				r.log.Error("Tick failed", zap.Error(err))
			}
			r.dispatch(ctx, subs, events)
		case cmd := <-r.cmds:
			value, events, err := cmd.run(ctx, r.trainer)
			r.dispatch(ctx, subs, events)
			cmd.reply <- reply{value: value, err: err}
		case ch := <-r.subscribe:
			subs[ch] = struct{}{}
		case ch := <-r.unsubscribe:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, subs map[chan engine.Event]struct{}, events []engine.Event) {
	if len(events) == 0 {
		return
	}
	r.trainer.HandleEvents(ctx, events)
	for ch := range subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				r.log.Debug("Dropping event for slow subscriber", zap.Stringer("kind", ev.Kind))
			}
		}
	}
}

// Subscribe returns a channel receiving every future event and a function
// that ends the subscription. The channel is closed when either is done.
func (r *Runner) Subscribe(ctx context.Context) (<-chan engine.Event, func(), error) {
	ch := make(chan engine.Event, subscriberBuffer)
	select {
	case r.subscribe <- ch:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-r.done:
		return nil, nil, ErrStopped
	}
	cancel := func() {
		select {
		case r.unsubscribe <- ch:
		case <-r.done:
		}
	}
	return ch, cancel, nil
}

// do runs fn on the loop goroutine and waits for its result.
func (r *Runner) do(ctx context.Context, fn func(context.Context, *Trainer) (any, []engine.Event, error)) (any, error) {
	cmd := command{run: fn, reply: make(chan reply, 1)}
	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrStopped
	}
	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-r.done:
		return nil, ErrStopped
	}
}

func (r *Runner) StartSession(ctx context.Context) error {
	_, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		events, err := t.Start()
		return nil, events, err
	})
	return err
}

func (r *Runner) CancelSession(ctx context.Context) error {
	_, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		events, err := t.Game().Cancel()
		return nil, events, err
	})
	return err
}

func (r *Runner) TogglePause(ctx context.Context) error {
	_, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		events, err := t.Game().TogglePause()
		return nil, events, err
	})
	return err
}

func (r *Runner) Advance(ctx context.Context) error {
	_, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		return nil, nil, t.Game().Advance()
	})
	return err
}

// Press registers a match response. accepted is false when the press fell
// outside the response window.
func (r *Runner) Press(ctx context.Context, m models.Modality) (accepted bool, err error) {
	v, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		ok, err := t.Game().Press(m)
		return ok, nil, err
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (r *Runner) AnswerKey(ctx context.Context, key rune) (bool, error) {
	v, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		ok, err := t.Game().AnswerKey(key)
		return ok, nil, err
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (r *Runner) Snapshot(ctx context.Context) (engine.Snapshot, error) {
	v, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		return t.Game().Snapshot(), nil, nil
	})
	if err != nil {
		return engine.Snapshot{}, err
	}
	return v.(engine.Snapshot), nil
}

func (r *Runner) SelectUser(ctx context.Context, user string) error {
	_, err := r.do(ctx, func(ctx context.Context, t *Trainer) (any, []engine.Event, error) {
		return nil, nil, t.SelectUser(ctx, user)
	})
	return err
}

func (r *Runner) SetLevel(ctx context.Context, back int) error {
	_, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		return nil, nil, t.SetLevel(back)
	})
	return err
}

// History returns the active user and a copy of their records.
func (r *Runner) History(ctx context.Context) (string, []models.HistoryRecord, error) {
	type userHistory struct {
		user    string
		records []models.HistoryRecord
	}
	v, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		return userHistory{t.User(), t.History()}, nil, nil
	})
	if err != nil {
		return "", nil, err
	}
	h := v.(userHistory)
	return h.user, h.records, nil
}

// Config returns the configuration currently in force.
func (r *Runner) Config(ctx context.Context) (*config.Config, error) {
	v, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		return t.Config(), nil, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*config.Config), nil
}

// Reload stages cfg from a config watcher goroutine.
func (r *Runner) Reload(ctx context.Context, cfg *config.Config) error {
	_, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		t.SetConfig(cfg)
		return nil, nil, nil
	})
	return err
}

// User returns the active profile.
func (r *Runner) User(ctx context.Context) (string, error) {
	v, err := r.do(ctx, func(_ context.Context, t *Trainer) (any, []engine.Event, error) {
		return t.User(), nil, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
