package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/fairshare/ledger/internal/auth"
	"github.com/fairshare/ledger/internal/config"
	"github.com/fairshare/ledger/internal/metrics"
	"github.com/fairshare/ledger/internal/middleware"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/service"
	"github.com/fairshare/ledger/internal/storage"
	"github.com/fairshare/ledger/internal/storage/redis"
	"github.com/fairshare/ledger/internal/storage/sqlite"
	"github.com/fairshare/ledger/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	logger := slog.Default()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	ctx := context.Background()

	var cache storage.BalanceCache = store.BalanceCache()
	if cfg.RedisAddr != "" {
		redisCache, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			slog.Error("Failed to connect to redis", "address", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		cache = redisCache
		slog.Info("Balance cache on redis", "address", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	admins := make([]models.Party, len(cfg.AdminIDs))
	for i, id := range cfg.AdminIDs {
		admins[i] = models.Party(id)
	}

	ledger := service.NewLedgerService(store, cache,
		service.WithNotifier(service.NewStoreNotifier(store, m)),
		service.WithNotificationStore(store),
		service.WithUserDirectory(store),
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithAdmins(admins...),
	)

	if cfg.RebuildOnStart {
		if _, err := ledger.Rebuild(ctx); err != nil {
			slog.Error("Failed to rebuild balances", "error", err)
			os.Exit(1)
		}
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	mux := http.NewServeMux()

	ledgerPath, ledgerHandler := service.NewLedgerServiceHandler(ledger, connect.WithInterceptors(
		middleware.RequireAuth(tokens),
		middleware.LoggingInterceptor(logger),
		middleware.MetricsInterceptor(m),
	))
	mux.Handle(ledgerPath, ledgerHandler)

	authPath, authHandler := service.NewAuthServiceHandler(
		service.NewAuthService(authenticator, tokens, logger),
		connect.WithInterceptors(
			middleware.OptionalAuth(tokens),
			middleware.LoggingInterceptor(logger),
			middleware.MetricsInterceptor(m),
		),
	)
	mux.Handle(authPath, authHandler)

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2cHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Connect server starting", "address", server.Addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
