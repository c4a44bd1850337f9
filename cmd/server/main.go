package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"trailguard/internal/activity"
	"trailguard/internal/chain/rpc"
	"trailguard/internal/emergency/handler"
	"trailguard/internal/emergency/listener"
	"trailguard/internal/emergency/metrics"
	"trailguard/internal/emergency/service"
	"trailguard/internal/emergency/store"
	"trailguard/internal/gps"
	"trailguard/internal/notify"
	"trailguard/internal/platform/config"
	"trailguard/internal/platform/httpserver"
	"trailguard/internal/platform/logger"
	"trailguard/internal/platform/middleware"
	platformredis "trailguard/internal/platform/redis"
	"trailguard/internal/wallet"
	"trailguard/pkg/domain"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	emStore, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	chainClient := rpc.New(
		rpc.WithPollInterval(cfg.Chain.PollInterval),
		rpc.WithLogger(log),
	)

	signer := wallet.New(domain.AccountID(cfg.Chain.SignerAccount))

	activityPub := activity.NewPublisher(activity.NewInMemoryStore(),
		activity.WithAsyncBuffer(256),
		activity.WithLogger(log))
	defer activityPub.Close()

	fanout := notify.NewMulti(notify.NewLog(log))
	if cfg.Notify.WebhookURL != "" {
		fanout.Add(notify.NewWebhook(cfg.Notify.WebhookURL, log))
	}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, log)
		if err != nil {
			return err
		}
		defer kafka.Close()
		fanout.Add(kafka)
	}

	l, err := listener.New(chainClient, cfg.Chain.Endpoint, fanout,
		listener.WithLogger(log),
		listener.WithMetrics(m),
		listener.WithActivityPublisher(activityPub),
		listener.WithErrorBackoff(cfg.Listener.ErrorBackoff),
		listener.WithStartBackoff(cfg.Listener.StartBackoff),
		listener.WithKeepAliveInterval(cfg.Listener.KeepAliveInterval))
	if err != nil {
		return err
	}
	defer l.Stop()

	svc, err := service.NewService(emStore, signer, chainClient,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithActivityPublisher(activityPub),
		service.WithTracker(gps.NewTracker(log)))
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		if cfg.Server.AuthRequired {
			r.Use(middleware.RequireAuth(middleware.NewHSValidator(cfg.Server.JWTSigningKey), log))
		}
		handler.New(svc, l, log).Routes(r)
	})

	if cfg.Listener.Autostart {
		l.Start()
	}

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trailguard", "addr", cfg.Server.Addr, "chain", cfg.Chain.Endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, errors.New("redis store selected but TRAILGUARD_REDIS_URL is empty")
		}
		log.Info("using redis emergency store")
		return store.NewRedis(client.Client), func() { _ = client.Close() }, nil
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, nil, errors.New("postgres store selected but TRAILGUARD_POSTGRES_DSN is empty")
		}
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("using postgres emergency store")
		return st, pool.Close, nil
	default:
		log.Info("using in-memory emergency store")
		return store.NewInMemory(), func() {}, nil
	}
}
