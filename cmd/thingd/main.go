// Command thingd runs the thing controller daemon: it loads the Type
// Catalogue and plugins, replays the Thing Registry from SQLite, and
// starts the single-goroutine Dispatcher that evaluates the Rule Engine
// against inbound events, state changes, and the 1Hz tick, grounded on
// the teacher's cmd/worker/main.go signal-handling and health-server idiom.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/internal/dispatcher"
	"github.com/nymea-go/thingd/internal/dispatcher/dedupe"
	"github.com/nymea-go/thingd/internal/dispatcher/eventbus"
	"github.com/nymea-go/thingd/internal/pluginhost"
	"github.com/nymea-go/thingd/internal/rules/application/services"
	rulespersistence "github.com/nymea-go/thingd/internal/rules/infrastructure/persistence"
	"github.com/nymea-go/thingd/internal/rules/infrastructure/thingresolver"
	"github.com/nymea-go/thingd/internal/things"
	thingspersistence "github.com/nymea-go/thingd/internal/things/infrastructure/persistence"
	"github.com/nymea-go/thingd/pkg/config"
	"github.com/nymea-go/thingd/pkg/observability"
)

func main() {
	root := &cobra.Command{
		Use:   "thingd",
		Short: "Thing controller daemon",
		Long:  "thingd hosts plugins, tracks configured things, and evaluates rules against events, state changes, and time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.SetContext(context.Background())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(parent context.Context) error {
	logger := observability.LoggerFromEnv()
	logger.Info("starting thingd")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	metrics := observability.NewInMemoryMetrics()

	if cfg.IsSQLite() {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			logger.Error("failed to create sqlite directory", "path", cfg.SQLitePath, "error", err)
			return err
		}
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.SQLitePath, "error", err)
		return err
	}
	defer db.Close()

	if err := thingspersistence.InitSchema(ctx, db); err != nil {
		logger.Error("failed to init things schema", "error", err)
		return err
	}
	if err := rulespersistence.InitSchema(ctx, db); err != nil {
		logger.Error("failed to init rules schema", "error", err)
		return err
	}
	logger.Info("database ready", "path", cfg.SQLitePath)

	cat := catalogue.New()

	pluginRegistry := pluginhost.NewRegistry(logger)
	loader := pluginhost.NewLoader(logger)
	hostConfig := pluginhost.DefaultHostConfig()
	hostConfig.SetupTimeout = cfg.PluginSetupTimeout
	hostConfig.ActionTimeout = cfg.PluginActionTimeout
	hostConfig.FailureThreshold = cfg.PluginBreakerMaxFails
	host := pluginhost.NewHost(pluginRegistry, loader, metrics, logger, hostConfig)

	manifests, discoverErrs := pluginhost.DiscoverManifests(cfg.PluginSearchPaths)
	for _, derr := range discoverErrs {
		logger.Warn("plugin manifest discovery error", "error", derr)
	}
	for _, manifest := range manifests {
		pluginID := manifest.PluginID()
		if err := catalogue.LoadPluginSchemas(cat, manifest.Dir(), manifest.VendorName, pluginID, manifest.ThingClasses); err != nil {
			logger.Error("failed to load plugin schemas", "plugin", manifest.ID, "error", err)
			continue
		}
		if err := host.LoadPlugin(ctx, manifest, cfg.IsProduction()); err != nil {
			logger.Error("failed to load plugin", "plugin", manifest.ID, "error", err)
			continue
		}
		logger.Info("plugin loaded", "plugin", manifest.ID, "vendor", manifest.VendorName)
	}

	thingRepo := thingspersistence.NewSQLiteThingRepository(db)
	// The Thing Registry's notifier and pruner each need a Dispatcher and
	// a RuleProcessor built over this same Registry, so both are bound
	// after construction via SetNotifier/SetPruner.
	registry := things.NewRegistry(cat, thingRepo, host, nil, nil, logger)

	resolver := thingresolver.New(registry)
	ruleRepo := rulespersistence.NewSQLiteRuleRepository(db)
	executionRepo := rulespersistence.NewSQLiteExecutionRepository(db)
	pendingRepo := rulespersistence.NewSQLitePendingActionRepository(db)

	processor := services.NewRuleProcessor(ruleRepo, executionRepo, resolver, cat, logger)
	executor := services.NewActionExecutor(pendingRepo, resolver, cat, resolver, logger)

	var publisher eventbus.Publisher
	var dedupeCache dedupe.Cache
	var redisClient *redis.Client
	if cfg.IsLocalMode() {
		logger.Info("local mode: using in-process dedupe cache and noop event publisher")
		publisher = eventbus.NewNoopPublisher(logger)
		dedupeCache = dedupe.NewInMemoryCache()
	} else {
		rabbitPublisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if cfg.IsDevelopment() {
				logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
				publisher = eventbus.NewNoopPublisher(logger)
			} else {
				logger.Error("failed to connect to RabbitMQ", "error", err)
				return err
			}
		} else {
			publisher = rabbitPublisher
			defer rabbitPublisher.Close()
		}

		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			return err
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			if cfg.IsDevelopment() {
				logger.Warn("redis not available, using in-memory dedupe cache", "error", err)
				dedupeCache = dedupe.NewInMemoryCache()
			} else {
				logger.Error("failed to connect to redis", "error", err)
				return err
			}
		} else {
			dedupeCache = dedupe.NewRedisCache(redisClient)
			defer redisClient.Close()
		}
	}

	d := dispatcher.New(cat, host, processor, executor, publisher, dedupeCache, dispatcher.Config{
		QueueSize:    cfg.DispatcherQueueSize,
		TickInterval: cfg.DispatcherTickInterval,
	}, logger, metrics)

	// Two-phase binding breaks the Registry/Dispatcher/RuleProcessor
	// construction cycle: each collaborator needs the others before it
	// exists, so the Registry starts with nil notifier/pruner and a
	// plain Host, and is wired to its real collaborators here.
	d.BindRegistry(registry)
	registry.SetNotifier(d)
	registry.SetPruner(processor)
	host.SetEventSink(d)

	if err := registry.LoadAll(ctx); err != nil {
		logger.Error("failed to load things", "error", err)
		return err
	}
	logger.Info("thing registry loaded")

	if cfg.HealthAddr != "" {
		startHealthServer(ctx, cfg.HealthAddr, db, redisClient, host, logger)
	}

	runErr := d.Run(ctx)
	<-d.Done()
	host.ShutdownAll(context.Background())
	logger.Info("thingd stopped")

	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

func startHealthServer(ctx context.Context, addr string, db *sql.DB, redisClient *redis.Client, host *pluginhost.Host, logger *slog.Logger) {
	registry := observability.NewHealthRegistry()
	registry.Register("database", observability.DatabaseHealthChecker(db.PingContext))
	if redisClient != nil {
		registry.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	registry.Register("plugins", observability.PluginHostHealthChecker(host.Snapshot))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := registry.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "not_ready", "error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
