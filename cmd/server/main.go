package main

import (
	"context"
	"fmt"
	"os"

	"fourwalls/server/config"
	"fourwalls/server/internal/api"
	"fourwalls/server/internal/auth"
	"fourwalls/server/internal/database"
	"fourwalls/server/internal/enrichment"
	"fourwalls/server/internal/extraction"
	"fourwalls/server/internal/facebook"
	"fourwalls/server/internal/importer"
	"fourwalls/server/internal/pipeline"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	keywords, err := config.LoadKeywords(cfg.Extraction.KeywordsPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load housing keywords")
	}
	logger.WithFields(logrus.Fields{
		"version":  keywords.Version,
		"keywords": len(keywords.Keywords),
	}).Info("Loaded housing keyword list")

	fbClient := facebook.NewClient(
		cfg.Facebook.AppID,
		cfg.Facebook.AppSecret,
		cfg.Facebook.GraphVersion,
		cfg.Facebook.PageLimit,
		logger,
	)
	imp := importer.NewImporter(db, fbClient, keywords, logger)

	extractor, err := extraction.NewExtractor(
		context.Background(),
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		cfg.Gemini.MaxOutputTokens,
		logger,
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize extraction engine")
	}

	enricher := enrichment.NewEnricher(
		db,
		cfg.Storage.BaseURL,
		cfg.Storage.Bucket,
		cfg.Storage.ServiceKey,
		cfg.Vision.EmbedURL,
		logger,
	)

	pipe := pipeline.NewPipeline(db, extractor, enricher, cfg.Extraction.PriceStatusThreshold, logger)
	verifier := auth.NewHTTPVerifier(cfg.Auth.UserEndpoint, logger)

	handler := api.NewHandler(db, imp, pipe, verifier, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	api.SetupRoutes(router, handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on port %d", cfg.Server.Port)
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
