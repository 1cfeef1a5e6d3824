package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noveltoon/backend/internal/analyzer"
	"github.com/noveltoon/backend/internal/clients/llm"
	"github.com/noveltoon/backend/internal/clients/mediagen"
	"github.com/noveltoon/backend/internal/compose"
	"github.com/noveltoon/backend/internal/config"
	"github.com/noveltoon/backend/internal/events"
	"github.com/noveltoon/backend/internal/handlers"
	"github.com/noveltoon/backend/internal/jobs"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/media"
	"github.com/noveltoon/backend/internal/render"
	"github.com/noveltoon/backend/internal/scratch"
	"github.com/noveltoon/backend/internal/server"
	"github.com/noveltoon/backend/internal/storyboard"
	"github.com/noveltoon/backend/internal/utils"
	"github.com/noveltoon/backend/internal/voice"
)

func main() {
	// Logger
	logMode := utils.GetEnv("LOG_MODE", "development", nil)
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Clients
	log.Info("Setting up clients...")
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemp,
		Timeout:     cfg.LLMTimeoutDuration(),
	}, log)
	if err != nil {
		log.Fatal("Failed to init LLM client", "error", err)
	}
	mediaClient, err := mediagen.NewClient(mediagen.Config{
		BaseURL:    cfg.MediaBaseURL,
		APIKey:     cfg.MediaAPIKey,
		ImageModel: cfg.ImageModel,
		Encoding:   cfg.TTSEncoding,
		Timeout:    cfg.MediaTimeoutDuration(),
	}, log)
	if err != nil {
		log.Fatal("Failed to init media generation client", "error", err)
	}

	// Media tools
	tools := media.NewTools(media.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     cfg.FFmpegTimeoutDuration(),
	}, log)
	readyCtx, cancelReady := context.WithTimeout(context.Background(), 15*time.Second)
	if err := tools.AssertReady(readyCtx); err != nil {
		log.Fatal("Media tools health check failed", "error", err)
	}
	cancelReady()

	// Voice catalog
	catalog := voice.DefaultCatalog()
	if cfg.VoiceCatalogPath != "" {
		catalog, err = voice.LoadCatalogFile(cfg.VoiceCatalogPath)
		if err != nil {
			log.Fatal("Failed to load voice catalog", "error", err)
		}
		log.Info("Loaded voice catalog override", "path", cfg.VoiceCatalogPath, "entries", len(catalog))
	}

	// Events
	log.Info("Setting up event hub...")
	hub := events.NewHub(log)
	var relay *events.RedisRelay
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		relay = events.NewRedisRelay(rdb, cfg.RedisPrefix, log)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if err := relay.Ping(pingCtx); err != nil {
			log.Warn("Redis relay unavailable, continuing without it", "error", err)
			relay = nil
		}
		cancelPing()
	}

	// Engine
	log.Info("Setting up job engine...")
	engine := jobs.NewEngine(jobs.Deps{
		Store:    jobs.NewStore(),
		Hub:      hub,
		Relay:    relay,
		Scratch:  scratch.NewStore(cfg.ScratchBase, cfg.VideosBase, log),
		Analyzer: analyzer.New(llmClient, log),
		Builder:  storyboard.New(log),
		Renderer: render.New(mediaClient, mediaClient, tools, log),
		Composer: compose.New(tools, log),
		Catalog:  catalog,
	}, log)
	defer engine.Shutdown()

	// Router
	jobHandler := handlers.NewJobHandler(engine, log)
	router := server.New(cfg.Mode, jobHandler, cfg.CORSOrigins, log)

	fmt.Printf("Server listening on %s\n", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
