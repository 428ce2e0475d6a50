package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/password"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr         string
	redisAddr    string
	demoUser     string
	demoPassword string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address; overrides redis.addr and enables the Redis backends")
	cmd.Flags().StringVar(&opts.demoUser, "demo-user", "alice", "demo username")
	cmd.Flags().StringVar(&opts.demoPassword, "demo-password", "correct-horse-battery", "demo password")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	logger, err := root.logger(nil)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.redisAddr != "" {
		cfg.Redis.Addr = opts.redisAddr
	}

	builder := goGuard.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(goGuard.NewZerologSink(logger))
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		builder = builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	creds := newCredentials(hasher)
	if err := creds.add(opts.demoUser, opts.demoPassword); err != nil {
		return fmt.Errorf("demo user: %w", err)
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           (&server{engine: engine, creds: creds, logger: logger}).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := engine.Start(gctx); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", opts.addr).Bool("redis", cfg.Redis.Addr != "").Msg("goguard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info().Msg("goguard stopped")
	return err
}
