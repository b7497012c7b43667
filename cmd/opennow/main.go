package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zortos293/OpenNOW-sub000/config"
	"github.com/zortos293/OpenNOW-sub000/session"
)

var version = "dev"

// statsInterval paces the periodic pipeline stats log line.
const statsInterval = 5 * time.Second

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("opennow starting",
		"version", version,
		"codec", cfg.Codec.String(),
		"width", cfg.Width, "height", cfg.Height, "fps", cfg.FPS,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	sess, err := session.New(cfg)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sess.Run(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats := sess.Engine().Stats()
				slog.Info("pipeline stats",
					"fps", stats.FPS,
					"frames", stats.FramesDecoded,
					"dropped", sess.Slot().Drops(),
					"errors", stats.DecodeErrors,
				)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session error", "error", err)
		os.Exit(1)
	}
}
