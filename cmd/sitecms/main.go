package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	cmshttp "github.com/Strob0t/sitecms/internal/adapter/http"
	"github.com/Strob0t/sitecms/internal/adapter/memory"
	cmsnats "github.com/Strob0t/sitecms/internal/adapter/nats"
	"github.com/Strob0t/sitecms/internal/adapter/natskv"
	cmsotel "github.com/Strob0t/sitecms/internal/adapter/otel"
	"github.com/Strob0t/sitecms/internal/adapter/postgres"
	"github.com/Strob0t/sitecms/internal/adapter/ristretto"
	"github.com/Strob0t/sitecms/internal/adapter/tiered"
	"github.com/Strob0t/sitecms/internal/adapter/ws"
	"github.com/Strob0t/sitecms/internal/config"
	"github.com/Strob0t/sitecms/internal/logger"
	"github.com/Strob0t/sitecms/internal/middleware"
	"github.com/Strob0t/sitecms/internal/port/cache"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
	"github.com/Strob0t/sitecms/internal/port/database"
	"github.com/Strob0t/sitecms/internal/resilience"
	"github.com/Strob0t/sitecms/internal/service"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"namespace", cfg.Store.Namespace,
		"default_site", cfg.Site.DefaultID,
		"auth", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := cmsotel.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	metrics, err := cmsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	var checks []cmshttp.HealthCheck

	inner, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	store := resilience.NewStore(inner, breaker)
	checks = append(checks,
		cmshttp.HealthCheck{Name: "store", Check: store.Ping},
		cmshttp.HealthCheck{Name: "store_breaker", Check: store.CheckBreaker},
	)

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	var (
		feed        changefeed.Feed
		snapCache   cache.Cache = l1
		idemCache   cache.Cache = l1
		snapshotTTL             = cfg.Cache.L1TTL
	)
	if cfg.NATS.URL != "" {
		nf, err := cmsnats.Connect(ctx, cfg.NATS)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		feed = nf
		checks = append(checks, cmshttp.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !nf.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}})

		l2, err := natskv.OpenBucket(ctx, nf.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("snapshot bucket: %w", err)
		}
		snapCache = tiered.New(l1, l2, cfg.Cache.L1TTL)
		snapshotTTL = cfg.Cache.L2TTL

		idem, err := natskv.OpenBucket(ctx, nf.JetStream(), cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency bucket: %w", err)
		}
		idemCache = idem
	} else {
		slog.Warn("nats disabled: change feed is in-process, run a single instance")
		feed = memory.NewFeed()
	}
	defer func() { _ = feed.Close() }()

	// --- Services ---
	ns := cfg.Store.Namespace
	snapshots := service.NewSnapshots(store, snapCache, snapshotTTL, ns, metrics)
	contentSvc := service.NewContentService(store, feed, snapshots, ns, metrics)
	requestSvc := service.NewRequestService(store, feed, snapshots, ns, metrics)
	authSvc := service.NewAuthService(&cfg.Auth)

	live, err := service.NewLiveQueries(ctx, feed, snapshots, ns, metrics)
	if err != nil {
		return fmt.Errorf("live queries: %w", err)
	}
	defer live.Close()

	hub := ws.NewHub(live, authSvc, cfg.Site.DefaultID, cfg.Auth.Enabled)

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Rate)

	handlers := &cmshttp.Handlers{
		Content:     contentSvc,
		Requests:    requestSvc,
		Auth:        authSvc,
		Checks:      checks,
		DefaultSite: cfg.Site.DefaultID,
		BodyLimit:   cfg.Server.BodyLimit,
		Version:     version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cmshttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cmshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cmshttp.SecurityHeaders)
	r.Use(cmsotel.HTTPMiddleware(cfg.Telemetry.ServiceName))
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	cmshttp.MountRoutes(r, handlers, cmshttp.RouteMiddleware{
		Idempotency: middleware.Idempotency(idemCache, cfg.Idempotency.TTL),
		RateLimit:   limiter.Handler,
	})
	r.Get("/ws", hub.HandleWS)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		limiter.RunCleanup(gctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Websocket sessions are hijacked and not tracked by Shutdown.
		hub.CloseAll()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openStore selects the document store driver.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		slog.Warn("memory store: content is lost on restart")
		return memory.NewStore(), func() {}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		slog.Info("postgres connected")

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
		return postgres.NewStore(pool, cfg.Store.Namespace), pool.Close, nil
	}
}
