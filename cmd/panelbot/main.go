package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcsmops/panelbot/internal/audit"
	"github.com/mcsmops/panelbot/internal/authz"
	"github.com/mcsmops/panelbot/internal/batch"
	"github.com/mcsmops/panelbot/internal/command"
	"github.com/mcsmops/panelbot/internal/config"
	"github.com/mcsmops/panelbot/internal/db"
	"github.com/mcsmops/panelbot/internal/httpapi"
	"github.com/mcsmops/panelbot/internal/mcsm"
	"github.com/mcsmops/panelbot/internal/onebot"
	"github.com/mcsmops/panelbot/internal/registry"
)

func main() {
	configPath := flag.String("config", envOr("PANELBOT_CONFIG", "./panelbot.yml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	panel := mcsm.NewClient(cfg.PanelURL, cfg.APIKey)
	directory := registry.New(panel, cfg.FilteredNodes, cfg.FilteredInstanceKeywords)
	cooldowns := registry.NewCooldownTracker()
	batches := batch.New(directory, cooldowns, panel, cfg.BatchPause())
	authzStore := authz.NewStore(database, cfg.AuthorizedUsers, cfg.AuthorizedGroups)
	auditLog := audit.NewLog(database)

	svc := command.NewService(panel, directory, cooldowns, batches, authzStore, auditLog, cfg.LogSize)
	router := command.NewRouter(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the directory so index/name resolution works before the first list.
	if err := directory.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial directory refresh failed, run list to retry")
	}

	if cfg.OneBotURL != "" {
		bot := onebot.NewClient(cfg.OneBotURL, cfg.OneBotAccessToken, router, authzStore)
		go bot.Run(ctx)
	} else {
		log.Warn().Msg("onebot_url not configured, chat front-end disabled")
	}

	ops := httpapi.NewHandler(directory, auditLog, cfg.OpsTokenHash)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      ops.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("panelbot ops API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
