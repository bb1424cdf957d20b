package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/drsadivural/adele-sub000/internal/agent"
	"github.com/drsadivural/adele-sub000/internal/api"
	"github.com/drsadivural/adele-sub000/internal/bus"
	"github.com/drsadivural/adele-sub000/internal/config"
	"github.com/drsadivural/adele-sub000/internal/dispatch"
	"github.com/drsadivural/adele-sub000/internal/gateway"
	"github.com/drsadivural/adele-sub000/internal/provider"
	"github.com/drsadivural/adele-sub000/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Adele...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/adele.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAI(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropic(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if cfg.Routing.Default != "" {
		router.SetDefault(cfg.Routing.Default)
	}
	for caller, providerID := range cfg.Routing.Bindings {
		router.Bind(caller, providerID)
	}
	for caller, chain := range cfg.Routing.Fallbacks {
		router.SetFallbacks(caller, chain)
	}

	// Initialize PostgreSQL store
	var pgStore *store.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := store.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
		}
	}

	// Initialize event bus
	var eventBus *bus.Bus
	if cfg.Database.Redis.URL != "" {
		b, busErr := bus.New(cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without event bus", zap.Error(busErr))
		} else {
			eventBus = b
		}
	}

	// Build the agent system
	opts := agent.Options{Model: cfg.Agents.Model, MaxTokens: cfg.Agents.MaxTokens}
	coord := agent.NewSystem(router, opts, logger)

	// Initialize gateway
	gw := gateway.New(logger)

	// Wire message handler BEFORE registering adapters (Register captures handler)
	disp := dispatch.New(coord, router, opts, pgStore, eventBus, gw, logger)
	gw.SetHandler(disp.HandleMessage)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		slackAdapter := gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger)
		gw.Register(slackAdapter)
	}

	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger)
		gw.Register(discordAdapter)
	}

	gwCtx := context.Background()
	if err := gw.ConnectAll(gwCtx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(coord, router, disp, pgStore, eventBus, gw, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Adele listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Adele...")
	ctx := context.Background()
	srv.Shutdown(ctx)
	if eventBus != nil {
		eventBus.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
	gw.Close()
}
