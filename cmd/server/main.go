package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/legop3/MultiRoombaRover-sub000/internal/auth"
	"github.com/legop3/MultiRoombaRover-sub000/internal/battery"
	"github.com/legop3/MultiRoombaRover-sub000/internal/config"
	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/internal/fleet"
	"github.com/legop3/MultiRoombaRover-sub000/internal/httpapi"
	"github.com/legop3/MultiRoombaRover-sub000/internal/uplink"
)

func main() {
	logger, err := zap.NewProduction()
	if os.Getenv("ROVER_DEV") != "" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	configPath := os.Getenv("ROVER_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	f := fleet.New(ctx, fleet.Config{
		TurnDuration:  time.Duration(cfg.TurnSeconds) * time.Second,
		IdleTimeout:   time.Duration(cfg.IdleSeconds) * time.Second,
		MaxIdleSkips:  cfg.MaxIdleSkips,
		LockdownGrace: time.Duration(cfg.LockdownGraceSeconds) * time.Second,
	}, bus, logger)

	verifier := auth.NewVerifier(cfg.Admins)
	supervisor := battery.NewSupervisor(f, bus, logger)
	up := uplink.New(cfg, f, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.SetupRoutes(f, verifier, logger),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return supervisor.Run(ctx) })
	g.Go(func() error { return up.Run(ctx) })
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
