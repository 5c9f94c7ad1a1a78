package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/papertrade/ledger-engine/internal/calendar"
	"github.com/papertrade/ledger-engine/internal/commission"
	"github.com/papertrade/ledger-engine/internal/config"
	"github.com/papertrade/ledger-engine/internal/engine"
	"github.com/papertrade/ledger-engine/internal/metrics"
	"github.com/papertrade/ledger-engine/internal/quote"
	"github.com/papertrade/ledger-engine/internal/risk"
	"github.com/papertrade/ledger-engine/internal/settle"
	"github.com/papertrade/ledger-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "path", *configPath, "err", err)
		os.Exit(1)
	}

	// --- Trading calendar ---
	var cal *calendar.Calendar
	if len(cfg.Calendar.Holidays) > 0 {
		cal = calendar.New(cfg.Calendar.Version, cfg.Calendar.Holidays)
	} else {
		cal = calendar.Default()
	}
	slog.Info("trading calendar loaded", "version", cal.Version())

	// --- Ledger store and quote feed ---
	var st store.Store
	var quotes quote.Source
	var cleanup []func()

	var rdb *redis.Client
	if cfg.Storage.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			slog.Error("invalid redis_url", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	if cfg.Storage.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Storage.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		if rdb != nil {
			ttl := time.Duration(cfg.Storage.CacheTTLSeconds) * time.Second
			st = store.NewCachedStore(st, rdb, ttl)
			slog.Info("Redis cache enabled", "ttl", ttl)
		}
	} else {
		slog.Warn("database_url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if rdb != nil {
		quotes = quote.NewRedisFeed(rdb)
	} else {
		slog.Warn("redis_url not set, using in-memory quote feed (no external prices)")
		quotes = quote.NewMemoryFeed()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Pre-trade limits ---
	limits := risk.NewLimiter(cfg.Trading.MaxPositionQty, decimal.NewFromFloat(cfg.Trading.MaxOrderNotional))

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Order executor ---
	fees := commission.New(decimal.NewFromFloat(cfg.Trading.CommissionRate))
	svc := engine.NewService(st, quotes, cal, fees, limits, wsHub)
	svc.SetStartingCash(decimal.NewFromFloat(cfg.Trading.StartingCash))
	svc.SetMaxAttempts(cfg.Trading.MaxTxAttempts)

	// --- Settlement sweeper ---
	sweepInterval := time.Duration(cfg.Settlement.SweepIntervalSeconds) * time.Second
	sweeper := settle.NewSweeper(st, sweepInterval, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"ledger-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade and settlement updates.
		r.Get("/ws", wsHub.HandleWS)

		// Order execution.
		r.Post("/orders", svc.SubmitOrderHandler)

		// Account and trade queries.
		r.Get("/accounts/{accountID}", svc.GetAccountHandler)
		r.Get("/accounts/{accountID}/trades", svc.ListTradesHandler)
		r.Get("/trades/{tradeID}/status", svc.GetTradeStatusHandler)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("ledger-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down ledger-engine...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	fmt.Println("ledger-engine stopped")
}
