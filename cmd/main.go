package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"pdf-rag-chatbot/internal/ai"
	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/queue"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/middleware"
	"pdf-rag-chatbot/routes"
	"pdf-rag-chatbot/services"
	"pdf-rag-chatbot/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Redis backs rate limiting and the task queue broker
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Tracing is opt-in; metrics are always registered
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("pdf-rag-chatbot", cfg.TracingOTLPEndpoint, cfg.TracingSampleRatio)
		if err != nil {
			log.Fatal("Failed to initialize tracer:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Gemini clients: one for embeddings, one for answer generation
	embedder, err := ai.NewGeminiEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.AnswerModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	// Core pipeline services
	store := services.NewMongoVectorStore(db)
	index := services.NewVectorIndex(store, embedder)
	ingestion := services.NewIngestionService(cfg, db, index, metrics)
	retriever := services.NewRetriever(index, cfg.RetrievalTopK, cfg.ContextBudgetWords)
	answers := services.NewAnswerService(geminiClient, cfg, metrics)
	sessions := services.NewSessionService(db, index, time.Duration(cfg.SessionTTLHours)*time.Hour)
	exporter := services.NewExportService(db.Collection("messages"))

	// Background cleanup of expired sessions and orphaned collections
	cleanup := services.NewCleanupService(sessions, store, time.Duration(cfg.CleanupIntervalMins)*time.Minute)
	if err := cleanup.Start(); err != nil {
		log.Fatal("Failed to start cleanup scheduler:", err)
	}
	defer cleanup.Stop()

	// Queue client hands large uploads to the worker
	queueClient := asynq.NewClient(queue.RedisConnOpt(cfg))
	defer queueClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(redisClient, cfg))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "mongodb unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	// Setup routes
	routes.SetupAuthRoutes(router, cfg, db)
	routes.SetupSessionRoutes(router, sessions, authMiddleware)
	routes.SetupDocumentRoutes(router, cfg, db, ingestion, sessions, queueClient, authMiddleware)
	routes.SetupChatRoutes(router, db, sessions, retriever, answers, exporter, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
