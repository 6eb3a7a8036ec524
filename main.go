package main

import (
	"fmt"
	"os"

	"nback-go/internal/config"
	"nback-go/internal/database"
	logging "nback-go/internal/logging"
	"nback-go/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	projectRoot string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "nback",
	Short: "Adaptive dual N-back working memory trainer",
	Long: `nback runs adaptive N-back training sessions.

The serve command exposes the game over an HTTP/JSON API with a live event
stream. simulate plays sessions headlessly with a scripted player, and
history prints a profile's past sessions.

Configuration is read from <root>/config/config.yaml and NBACK_* environment
variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root containing config/")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")

	simulateCmd.Flags().IntVarP(&simSessions, "sessions", "n", 10, "number of sessions to play")
	simulateCmd.Flags().Float64Var(&simAccuracy, "accuracy", 0.9, "probability of answering a trial correctly")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 picks one from the clock)")
	simulateCmd.Flags().StringVarP(&cliUser, "user", "u", repository.DefaultUser, "profile to play as")
	simulateCmd.Flags().BoolVar(&simPersist, "persist", false, "save the simulated sessions to the user's history")

	historyCmd.Flags().StringVarP(&cliUser, "user", "u", repository.DefaultUser, "profile to show")
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "only show the most recent sessions (0 shows all)")

	rootCmd.AddCommand(serveCmd, simulateCmd, historyCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// storage bundles the configured persistence backends.
type storage struct {
	history repository.HistoryStore
	archive *repository.Archive
	users   *repository.UserRepository
	db      *gorm.DB
}

// openStorage opens the history backend named in conf. Profile PINs are
// only available with the database backend.
func openStorage(conf *config.Config, log *zap.Logger) (*storage, error) {
	st := &storage{}
	if conf.Storage.Backend == "db" {
		db, err := database.Open(conf.Database, log)
		if err != nil {
			return nil, err
		}
		st.db = db
		st.users = repository.NewUserRepository(db)
	}
	history, err := repository.NewHistoryStore(conf.Storage, st.db, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	st.history = history
	if conf.Storage.Archive {
		st.archive = repository.NewArchive(conf.Storage.DataDir)
	}
	return st, nil
}

func (s *storage) Close() {
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			fmt.Fprintln(os.Stderr, "close database:", err)
		}
	}
}

// loadConfig reads configuration for the one-shot commands.
func loadConfig() (*config.Config, *zap.Logger, error) {
	log := logging.Console(verbose)
	conf, err := config.Init(projectRoot, log, nil)
	if err != nil {
		return nil, nil, err
	}
	return conf, log, nil
}
