// Command server runs the HTTP API: signup, the token endpoints and the
// organization routes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/auth"
	"github.com/orgnest/orgnest/internal/config"
	"github.com/orgnest/orgnest/internal/handlers"
	"github.com/orgnest/orgnest/internal/logging"
	"github.com/orgnest/orgnest/internal/metrics"
	"github.com/orgnest/orgnest/internal/middleware"
	"github.com/orgnest/orgnest/internal/password"
	"github.com/orgnest/orgnest/internal/rate"
	"github.com/orgnest/orgnest/internal/revocation"
	"github.com/orgnest/orgnest/internal/storage"
	"github.com/orgnest/orgnest/internal/tasks"
	"github.com/orgnest/orgnest/internal/token"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := storage.Connect(dialCtx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.Mongo.Database)
	if err := storage.EnsureIndexes(dialCtx, db); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(dialCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	codec, err := token.NewCodec([]byte(cfg.Auth.Secret), token.Algorithm(cfg.Auth.Algorithm))
	if err != nil {
		return err
	}
	hasher, err := password.NewHasher(password.DefaultParams())
	if err != nil {
		return err
	}

	users := storage.NewUsers(db)
	engine, err := auth.NewEngine(auth.Config{
		AccessTTL:      cfg.Auth.AccessTTL(),
		RefreshTTL:     cfg.Auth.RefreshTTL(),
		StrictRotation: cfg.Auth.StrictRotation,
		StoreTimeout:   cfg.Auth.StoreTimeout,
	}, codec, hasher, users, revocation.NewStore(rdb), log)
	if err != nil {
		return err
	}

	var limiter rate.Limiter
	if cfg.RateLimit.LoginLimit > 0 {
		if cfg.RateLimit.UseRedis {
			limiter = rate.NewRedis(rdb, cfg.RateLimit.LoginLimit, cfg.RateLimit.Window)
		} else {
			limiter = rate.NewMemory(cfg.RateLimit.LoginLimit, cfg.RateLimit.Window)
		}
	}

	queue := tasks.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer queue.Close()

	m := metrics.New()

	router := handlers.NewRouter(cfg.Env, m,
		middleware.Guard(engine),
		&handlers.UserHandler{
			Engine:  engine,
			Limiter: limiter,
			Metrics: m,
			Log:     log,
		},
		&handlers.OrganizationHandler{
			Store: storage.NewOrganizations(db),
			Users: users,
			Queue: queue,
			Log:   log,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}
