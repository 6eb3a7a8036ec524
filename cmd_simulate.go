package main

import (
	"fmt"
	"math/rand"
	"time"

	"nback-go/internal/repository"
	"nback-go/internal/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cliUser     string
	simSessions int
	simAccuracy float64
	simSeed     int64
	simPersist  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play sessions headlessly with a scripted player",
	Long: `Plays complete sessions against the configured mode without waiting for
wall-clock ticks. The player answers each trial correctly with probability
--accuracy and otherwise errs or false-alarms.

Example:
  nback simulate --sessions 20 --accuracy 0.85 --seed 7`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if simAccuracy < 0 || simAccuracy > 1 {
		return fmt.Errorf("accuracy must be within [0, 1], got %v", simAccuracy)
	}
	conf, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	var (
		store   repository.HistoryStore
		archive *repository.Archive
	)
	if simPersist {
		st, err := openStorage(conf, log)
		if err != nil {
			return err
		}
		defer st.Close()
		store, archive = st.history, st.archive
	}

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Debug("Simulating", zap.Int64("seed", seed), zap.Int("sessions", simSessions))
	rng := rand.New(rand.NewSource(seed))

	ctx := commandContext(cmd)
	trainer := services.NewTrainer(conf, store, archive, rng, log)
	if err := trainer.SelectUser(ctx, cliUser); err != nil {
		return err
	}
	player := services.NewPlayer(simAccuracy, rand.New(rand.NewSource(seed+1)))
	results, err := services.Simulate(ctx, trainer, player, simSessions, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		o := res.Outcome
		change := ""
		switch {
		case o.Advanced:
			change = "  advanced"
		case o.FellBack:
			change = "  fell back"
		}
		fmt.Fprintf(out, "#%-4d %-8s %3d%%  -> level %d (progress %d)%s\n",
			o.SessionNumber, res.Record.ShortName, o.Score, o.Level, o.Progress, change)
	}
	return nil
}
