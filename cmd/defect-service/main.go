package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"defect-service/internal/auth"
	"defect-service/internal/client"
	"defect-service/internal/config"
	"defect-service/internal/db"
	"defect-service/internal/eventbus"
	httphandler "defect-service/internal/http"
	"defect-service/internal/http/middleware"
	"defect-service/internal/logger"
	"defect-service/internal/metrics"
	"defect-service/internal/repository"
	"defect-service/internal/service"
	"defect-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	m := metrics.New()

	detectionRepo := repository.NewDetectionRepository(database)

	var publisher service.AlertPublisher
	if cfg.ExternalServices.NATSURL != "" {
		natsPublisher, err := eventbus.NewPublisher(cfg.ExternalServices.NATSURL, cfg.ExternalServices.AlertSubject, appLogger)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("failed to connect NATS")
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	detector := client.NewDetectorClient(cfg.ExternalServices.ModelServerURL)
	geoIP := client.NewGeoIPClient(cfg.ExternalServices.GeoIPEndpoints)
	resolver := service.NewGeolocationResolver(geoIP, appLogger)
	classifier := service.NewClassifier(cfg.Detection)
	gate := service.NewCooldownGate(cfg.Detection.CaptureCooldown)

	ingestService := service.NewIngestService(
		detector, classifier, gate, resolver,
		detectionRepo, publisher, m,
		cfg.Detection.ArtifactDir, appLogger,
	)

	var defaultOrigin *service.Location
	if cfg.Route.OriginLat != nil && cfg.Route.OriginLon != nil {
		defaultOrigin = &service.Location{Latitude: *cfg.Route.OriginLat, Longitude: *cfg.Route.OriginLon}
	}
	queryService := service.NewQueryService(detectionRepo, defaultOrigin)

	llm := client.NewLLMClient(
		cfg.ExternalServices.AssistantEndpoint,
		cfg.ExternalServices.AssistantAPIKey,
		cfg.ExternalServices.AssistantModel,
	)
	assistantService := service.NewAssistantService(service.NewKeywordClassifier(), queryService, llm, appLogger)

	ingestWorker := worker.NewIngestWorker(ingestService, cfg.Detection.FrameQueueSize, m, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go ingestWorker.Run(ctx)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(ingestService, queryService, assistantService, ingestWorker, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, m, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting defect service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
