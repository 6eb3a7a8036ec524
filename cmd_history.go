package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"nback-go/internal/metrics"
	"nback-go/internal/models"

	"github.com/spf13/cobra"
)

var historyLast int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a profile's past sessions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List profiles with stored history",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	conf, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	st, err := openStorage(conf, log)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.history.Load(commandContext(cmd), cliUser)
	if err != nil {
		return err
	}
	shown := records
	if historyLast > 0 && len(shown) > historyLast {
		shown = shown[len(shown)-historyLast:]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPLAYED\tMODE\tSCORE\tTRIALS\tDURATION")
	for _, r := range shown {
		session := fmt.Sprint(r.SessionNumber)
		if r.Manual {
			session = "manual"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%d\t%s\n",
			session, r.Timestamp.Format(time.DateTime), r.ShortName, r.Percent, r.TotalTrials, r.Duration().Round(time.Second))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	sum := metrics.Summarize(records, time.Now(), conf.Game.RolloverHour)
	mode := models.ModeID(conf.Game.Mode)
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d sessions today (%s), %d in the last 24h (%s)\n",
		sum.SessionsToday, sum.TimeToday.Round(time.Second), sum.SessionsLast24h, sum.TimeLast24h.Round(time.Second))
	fmt.Fprintf(cmd.OutOrStdout(), "Average level over the last 20 sessions of mode %d: %.2f\n", mode, metrics.Average(records, mode, 20))
	return nil
}

func runUsers(cmd *cobra.Command, _ []string) error {
	conf, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	st, err := openStorage(conf, log)
	if err != nil {
		return err
	}
	defer st.Close()

	names, err := st.history.Users(commandContext(cmd))
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
