package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"pdf-rag-chatbot/internal/ai"
	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/queue"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/services"
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
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	embedder, err := ai.NewGeminiEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	// Pipeline services the worker needs; no answer generation here
	store := services.NewMongoVectorStore(db)
	index := services.NewVectorIndex(store, embedder)
	ingestion := services.NewIngestionService(cfg, db, index, metrics)
	sessions := services.NewSessionService(db, index, time.Duration(cfg.SessionTTLHours)*time.Hour)
	fetcher := services.NewHTMLFetcher(30 * time.Second)

	// Create Asynq server
	server := asynq.NewServer(
		queue.RedisConnOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6, // document ingestion
				"default":  3, // URL ingestion
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion, sessions, fetcher)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngestDocument)
	mux.HandleFunc(queue.TaskIngestURL, processor.ProcessIngestURL)

	logger.Info("starting worker",
		"concurrency", 10,
		"queues", "critical(6) default(3) low(1)")

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
