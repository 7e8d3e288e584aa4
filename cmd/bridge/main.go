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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"taskbridge.app/bridge/common/id"
	"taskbridge.app/bridge/common/llm"
	"taskbridge.app/bridge/common/logger"
	"taskbridge.app/bridge/common/otel"
	"taskbridge.app/bridge/core/config"
	"taskbridge.app/bridge/core/db"
	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/feed"
	"taskbridge.app/bridge/internal/http/handler"
	"taskbridge.app/bridge/internal/http/middleware"
	httprouter "taskbridge.app/bridge/internal/http/router"
	"taskbridge.app/bridge/internal/store"
	"taskbridge.app/bridge/internal/tracker"
	"taskbridge.app/bridge/internal/watcher"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "bridge starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Feed.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Feed.Stream)

	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	embedder, err := llm.NewEmbedder(llm.Config{
		APIKey:  cfg.Embeddings.APIKey,
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create embedder", "error", err)
		os.Exit(1)
	}

	var trackerClient tracker.Client
	if cfg.Tracker.Enabled() {
		trackerClient, err = tracker.New(tracker.Config{
			BaseURL:  cfg.Tracker.BaseURL,
			Email:    cfg.Tracker.Email,
			APIToken: cfg.Tracker.APIToken,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create tracker client", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "tracker connected", "base_url", cfg.Tracker.BaseURL)
	} else {
		slog.WarnContext(ctx, "tracker not configured, running in dry-run mode")
	}

	consumer, err := feed.NewConsumer(redisClient, feed.Config{
		Stream:   cfg.Feed.Stream,
		Group:    cfg.Feed.Group,
		Consumer: cfg.Feed.Consumer,
		Block:    cfg.Feed.Block,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create feed consumer", "error", err)
		os.Exit(1)
	}

	stores := store.New(database)
	registry := watcher.NewRegistry()
	seedRegistry(ctx, registry, stores.Projects())

	classifier := brain.NewClassifier(llmClient)
	resolver := brain.NewResolver(trackerClient, embedder)
	executor := brain.NewExecutor(trackerClient, cfg.Tracker.EpicLinkField)
	planner := brain.NewPlanner(llmClient)

	w := watcher.New(consumer, classifier, resolver, executor,
		stores.Projects(), stores.Outcomes(), registry, watcher.Config{
			StageTimeout:   cfg.Watcher.StageTimeout,
			ReconnectDelay: cfg.Feed.ReconnectDelay,
		})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, registry, stores, planner, executor)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second, // populate requests are slow
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		slog.InfoContext(gctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.InfoContext(ctx, "shutting down...")
	case <-gctx.Done():
		slog.ErrorContext(ctx, "component failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	w.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(shutdownCtx, "component error during shutdown", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// seedRegistry restores monitors for every persisted project link so a
// restart does not silently mute linked projects.
func seedRegistry(ctx context.Context, registry *watcher.Registry, projects store.ProjectStore) {
	links, err := projects.ListLinked(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to restore monitors from project links", "error", err)
		return
	}
	for _, link := range links {
		registry.Start(link.ProjectID, link.TrackerKey)
	}
	slog.InfoContext(ctx, "monitors restored", "count", len(links))
}

func setupRouter(cfg config.Config, registry *watcher.Registry, stores *store.Stores, planner *brain.Planner, executor *brain.Executor) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span, then Recovery catches panics, then
	// Logger logs with trace context.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	monitors := handler.NewMonitorHandler(registry, stores.Projects())
	outcomes := handler.NewOutcomeHandler(stores.Outcomes())
	populate := handler.NewPopulateHandler(planner, executor)

	httprouter.SetupRoutes(router, monitors, outcomes, populate)

	return router
}

const banner = `
████████╗ █████╗ ███████╗██╗  ██╗██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗
╚══██╔══╝██╔══██╗██╔════╝██║ ██╔╝██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
   ██║   ███████║███████╗█████╔╝ ██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗
   ██║   ██╔══██║╚════██║██╔═██╗ ██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝
   ██║   ██║  ██║███████║██║  ██╗██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗
   ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝
`
