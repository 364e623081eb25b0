package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"

	"universidad/internal/auth"
	"universidad/internal/config"
	"universidad/internal/database"
	"universidad/internal/handler"
	"universidad/internal/ratelimit"
	"universidad/internal/repository"
	"universidad/internal/security"
	"universidad/internal/session"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, migrateOnly bool) error {
	ctx := context.Background()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if cfg.MigrateOnStart || migrateOnly {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}
	if migrateOnly {
		return nil
	}

	attempts, closeAttempts, err := newAttemptStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAttempts()

	students := repository.NewEstudianteRepository(db)
	limiter := ratelimit.NewLimiter(attempts, ratelimit.DefaultMaxAttempts, ratelimit.DefaultWindow)
	authService := auth.NewService(students, security.NewBcryptHasher(cfg.BcryptCost), limiter, logger)

	router := handler.NewRouter(handler.Deps{
		Sessions:       session.NewFromConfig(cfg),
		Auth:           authService,
		Students:       students,
		Calificaciones: repository.NewCalificacionRepository(db),
		Horarios:       repository.NewHorarioRepository(db),
		DB:             db,
		Logger:         logger,
		CSRFKey:        session.CSRFKey(cfg),
		SecureCookies:  cfg.SessionSecureCookie,
	})

	var h http.Handler = router
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(!cfg.IsProduction()),
	)(h)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)
	if cfg.TrustProxy {
		h = handlers.ProxyHeaders(h)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Environment, "attempt_store", cfg.AttemptStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// newAttemptStore picks the failed login counter backend. Redis is needed
// when more than one instance serves logins.
func newAttemptStore(ctx context.Context, cfg *config.Config) (ratelimit.AttemptStore, func(), error) {
	if cfg.AttemptStore != config.AttemptStoreRedis {
		return ratelimit.NewMemoryAttemptStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	slog.Info("connected to redis", "addr", cfg.RedisAddr)

	return ratelimit.NewRedisAttemptStore(client), func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", "err", err)
		}
	}, nil
}
