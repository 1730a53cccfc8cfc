package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kavyarao/streamfilter/internal/analytics"
	"github.com/kavyarao/streamfilter/internal/auth/apikey"
	"github.com/kavyarao/streamfilter/internal/auth/ratelimit"
	"github.com/kavyarao/streamfilter/internal/catalog"
	"github.com/kavyarao/streamfilter/internal/query/pattern"
	"github.com/kavyarao/streamfilter/internal/queryd/cache"
	"github.com/kavyarao/streamfilter/internal/queryd/handler"
	authmw "github.com/kavyarao/streamfilter/internal/queryd/middleware"
	"github.com/kavyarao/streamfilter/pkg/config"
	"github.com/kavyarao/streamfilter/pkg/health"
	"github.com/kavyarao/streamfilter/pkg/kafka"
	"github.com/kavyarao/streamfilter/pkg/logger"
	"github.com/kavyarao/streamfilter/pkg/metrics"
	"github.com/kavyarao/streamfilter/pkg/middleware"
	"github.com/kavyarao/streamfilter/pkg/postgres"
	pkgredis "github.com/kavyarao/streamfilter/pkg/redis"
	"github.com/kavyarao/streamfilter/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting query service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// The catalog is optional: without PostgreSQL the service runs on
	// the compiled-in pattern table and search is disabled.
	var (
		store     *catalog.Store
		refresher *catalog.Refresher
		pgClient  *postgres.Client
	)
	pgClient, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, using built-in lookups", "error", err)
		pgClient = nil
	} else {
		defer pgClient.Close()
		store = catalog.NewStore(pgClient)
	}

	table := pattern.Default()
	if store != nil {
		refresher = catalog.NewRefresher(store, table, cfg.Catalog.RefreshInterval)
		refresher.OnRefresh(func(status string) {
			m.LookupRefreshTotal.WithLabelValues(status).Inc()
		})
		if err := refresher.Refresh(ctx); err != nil {
			slog.Warn("initial lookup refresh failed, using built-in lookups", "error", err)
		}
		refresher.Start(ctx)
	}

	var compileCache *cache.CompileCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, compile caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		compileCache = cache.New(redisClient, cfg.Redis)
		slog.Info("compile cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()

	// The consumer's handler closes over the aggregator variable, which
	// is assigned before Start ever runs.
	var aggregator *analytics.Aggregator
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents,
		func(ctx context.Context, key, value []byte) error {
			return analytics.HandleEvent(aggregator)(ctx, key, value)
		})
	aggregator = analytics.NewAggregator(consumer)
	analyticsH := analytics.NewHandler(aggregator)

	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("pattern_table", func(ctx context.Context) health.ComponentHealth {
		var t *pattern.Table
		if refresher != nil {
			t = refresher.Table()
		} else {
			t = table
		}
		if t.Len() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d rules", t.Len())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "empty table"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if store == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := store.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var tables handler.TableSource = staticTable{table}
	if refresher != nil {
		tables = refresher
	}
	var searcher handler.CatalogSearcher
	if store != nil {
		searcher = store
	}
	h := handler.New(tables, searcher, compileCache, collector, m,
		cfg.Query.MaxTextLen, cfg.Query.DefaultLimit, cfg.Query.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query/compile", h.Compile)
	mux.HandleFunc("POST /api/v1/query/apply", h.Apply)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Auth.Enabled {
		if pgClient == nil {
			slog.Error("auth requires postgres")
			os.Exit(1)
		}
		validator := apikey.NewValidator(pgClient)
		limiter := ratelimit.New(cfg.Auth.RateLimitWindow)
		chain = authmw.Auth(validator, limiter)(chain)
		slog.Info("api key auth enabled", "rate_limit_window", cfg.Auth.RateLimitWindow)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	if cfg.RPC.Enabled {
		rpcServer := rpc.NewServer()
		h.RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.Serve(fmt.Sprintf(":%d", cfg.RPC.Port)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			rpcServer.Stop()
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("query service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("query service stopped")
}

type staticTable struct{ t *pattern.Table }

func (s staticTable) Table() *pattern.Table { return s.t }
