package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fightclub-backend/internal/config"
	"github.com/DoyleJ11/fightclub-backend/internal/engine"
	"github.com/DoyleJ11/fightclub-backend/internal/gateway"
	"github.com/DoyleJ11/fightclub-backend/internal/httpapi"
	"github.com/DoyleJ11/fightclub-backend/internal/hub"
	"github.com/DoyleJ11/fightclub-backend/internal/room"
	"github.com/DoyleJ11/fightclub-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, room.Options{
		Rules:        engine.Rules{CountdownTicks: cfg.CountdownTicks},
		TickInterval: cfg.TickInterval,
		GracePeriod:  cfg.GracePeriod,
		IdleTTL:      cfg.IdleRoomTTL,
		InboxSize:    cfg.RoomInboxSize,
		Logger:       log.Named("room"),
	})
	gw := gateway.New(h, log.Named("gateway"), cfg.OutboxSize)
	wsHandler := ws.Handler(gw, ws.Options{
		OriginPatterns: cfg.AllowedOrigins,
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
		OutboxSize:     cfg.OutboxSize,
		Logger:         log.Named("ws"),
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, wsHandler, log.Named("http")),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		h.Shutdown()
		return err
	})
	return g.Wait()
}
