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

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/practitioner-booking/internal/api"
	"github.com/hackgods/practitioner-booking/internal/appointment"
	"github.com/hackgods/practitioner-booking/internal/availability"
	"github.com/hackgods/practitioner-booking/internal/config"
	"github.com/hackgods/practitioner-booking/internal/db"
	"github.com/hackgods/practitioner-booking/internal/logging"
	"github.com/hackgods/practitioner-booking/internal/notify"
	redisclient "github.com/hackgods/practitioner-booking/internal/redis"
	"github.com/hackgods/practitioner-booking/internal/scheduler"
	"github.com/hackgods/practitioner-booking/internal/session"
	"github.com/hackgods/practitioner-booking/internal/treatment"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-server",
		Short: "Practitioner booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is required for migrations")
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrations, err := db.Migrations()
			if err != nil {
				return err
			}
			count, err := db.Migrate(ctx, pool, migrations)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List migrations bundled with this binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := db.Migrations()
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %s\n", "VERSION", "NAME")
			for _, m := range migrations {
				fmt.Printf("%-10d %s\n", m.Version, m.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, listCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawUser, _ := cmd.Flags().GetString("user")
			rawRole, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			userID := uuid.New()
			if rawUser != "" {
				if userID, err = uuid.Parse(rawUser); err != nil {
					return fmt.Errorf("--user: %w", err)
				}
			}
			role, err := session.ParseRole(rawRole)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.SessionTTL
			}

			raw, sess, err := session.NewTokens(cfg.JWTSecret, ttl, nil).Issue(userID, role)
			if err != nil {
				return err
			}

			fmt.Printf("user:    %s\nrole:    %s\nexpires: %s\ntoken:   %s\n",
				sess.UserID, sess.Role, sess.ExpiresAt.Format(time.RFC3339), raw)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id (random when empty)")
	cmd.Flags().String("role", string(session.RolePatient), "patient, practitioner or admin")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to SESSION_TTL)")
	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Str("bus", cfg.BusBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		schedules    availability.Repository = availability.NewMemoryRepository()
		appointments appointment.Repository  = appointment.NewMemoryRepository()
		pgPinger     api.Pinger
		redisPinger  api.Pinger
	)

	if cfg.StoreBackend == config.BackendPostgres {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		cancelPg()
		if err != nil {
			return fmt.Errorf("postgres connection error: %w", err)
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		schedules = availability.NewPgRepository(pgPool)
		appointments = appointment.NewPgRepository(pgPool)
		pgPinger = pgPool
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			return fmt.Errorf("redis connection error: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
		redisPinger = redisclient.Pinger{Client: rdb}
	}

	hub := notify.NewHub(cfg.SubscriberBuffer, logger)
	var bus notify.Bus = hub
	if cfg.BusBackend == config.BackendRedis {
		relay := redisclient.NewEventRelay(rdb, hub, redisclient.DefaultEventChannel, logger)
		go func() {
			if err := relay.Run(rootCtx); err != nil {
				logger.Error().Err(err).Msg("event relay stopped")
			}
		}()
		bus = relay
	}

	var locker scheduler.Locker = scheduler.NewLocalLocker()
	if cfg.LockBackend == config.BackendRedis {
		locker = redisclient.NewPractitionerLocker(rdb, cfg.LockTTL, cfg.LockRetryInterval)
	}

	var revocations session.RevocationStore = session.NewMemoryRevocations(time.Now)
	if rdb != nil {
		revocations = redisclient.NewRevocations(rdb, time.Now)
	}

	coord := scheduler.NewCoordinator(
		availability.NewStore(schedules, time.Now),
		appointments,
		treatment.DefaultCatalog(),
		locker,
		bus,
		scheduler.Options{
			Granularity:     cfg.SlotGranularity,
			DefaultTimezone: cfg.DefaultTimezone,
			Logger:          logger,
		},
	)

	handler := api.NewRouter(api.RouterConfig{
		Service:     coord,
		Tokens:      session.NewTokens(cfg.JWTSecret, cfg.SessionTTL, time.Now),
		Revocations: revocations,
		Bus:         bus,
		Logger:      logger,
		Postgres:    pgPinger,
		Redis:       redisPinger,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down api-server")
	return shutdown(srv, cfg.ShutdownTimeout, logger)
}

func shutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}
