package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"nback-go/internal/config"
	logging "nback-go/internal/logging"
	"nback-go/internal/router"
	"nback-go/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the training server",
	Long: `Starts the HTTP API and the session runner. Edits to config.yaml are
picked up while running and take effect at the next session start.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var active atomic.Pointer[services.Runner]
	boot := logging.Console(verbose)
	conf, err := config.Init(projectRoot, boot, func(next *config.Config) {
		runner := active.Load()
		if runner == nil {
			return
		}
		if err := runner.Reload(ctx, next); err != nil {
			boot.Warn("Configuration reload not applied", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	log, err := logging.Init(conf.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStorage(conf, log)
	if err != nil {
		log.Error("Failed to open storage", zap.Error(err))
		return err
	}
	defer st.Close()

	trainer := services.NewTrainer(conf, st.history, st.archive, rand.New(rand.NewSource(time.Now().UnixNano())), log)
	if err := trainer.SelectUser(ctx, ""); err != nil {
		return err
	}
	runner := services.NewRunner(trainer, log)
	runner.Start(ctx)
	active.Store(runner)

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.Setup(log, conf.Server, router.Deps{
		Runner:  runner,
		Store:   st.history,
		Users:   st.users,
		Archive: st.archive,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", conf.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", "http://localhost:"+conf.Server.Port))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
			<-runner.Done()
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	<-runner.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown incomplete", zap.Error(err))
	}
	return nil
}
