package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/internal/server"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addrFlag != "" {
			cfg.Server.Addr = addrFlag
		}
		for _, warning := range cfg.Lint() {
			logger.Warn("configuration", zap.String("warning", warning))
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		builder := estateAuth.New().
			WithConfig(cfg).
			WithDB(db).
			WithLogger(logger).
			WithAuditSink(estateAuth.NewZapSink(logger))

		if cfg.Redis.Enabled() {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			err := rdb.Ping(ctx).Err()
			cancel()
			if err != nil {
				// Throttling fails closed, so a Redis outage surfaces as 503 on login.
				logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			builder = builder.WithRedis(rdb)
		}

		engine, err := builder.Build()
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer engine.Close()

		srv := &http.Server{
			Addr: cfg.Server.Addr,
			Handler: server.NewRouter(server.RouterOptions{
				Engine:         engine,
				Logger:         logger,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				TrustProxy:     cfg.Server.TrustProxy,
			}),
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", cfg.Server.Addr))
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (env: ESTATE_HTTP_ADDR)")
}
