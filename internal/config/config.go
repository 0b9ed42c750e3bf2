package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	JWTSecret    string
	JWTExpiresIn string
	Port         string
	GinMode      string
	CORSOrigins  []string

	// Upload handling
	MaxFileSize         int64
	AllowedTypes        []string
	FileStorageDir      string
	SyncProcessingLimit int64

	// Hierarchical chunking (sizes in words)
	ParentChunkSize   int
	ChildChunkSize    int
	ChildChunkOverlap int

	// Ingestion
	OCRServiceURL         string
	OCRServiceEnabled     bool
	OCRTimeout            int
	OCRDensityThreshold   int
	LanguageMinConfidence float64

	// Retrieval
	RetrievalTopK      int
	ContextBudgetWords int

	// Embeddings / answer generation
	GeminiAPIKey          string
	GeminiTier            string
	GoogleEmbeddingsModel string
	AnswerModel           string
	AnswerTimeoutSeconds  int
	VectorDimensions      int

	// Redis (rate limiting + asynq broker)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting / auth
	RateLimitReqs   int
	RateLimitWindow int
	BcryptCost      int

	// Session lifecycle
	SessionTTLHours     int
	CleanupIntervalMins int

	// Telemetry
	TracingEnabled      bool
	TracingOTLPEndpoint string
	TracingSampleRatio  float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/pdf_rag_chatbot"),
		DBName:       getEnv("DB_NAME", "pdf_rag_chatbot"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiresIn: getEnv("JWT_EXPIRES_IN", "24h"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:        strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB sync processing limit

		ParentChunkSize:   getEnvInt("PARENT_CHUNK_SIZE", 800),
		ChildChunkSize:    getEnvInt("CHILD_CHUNK_SIZE", 200),
		ChildChunkOverlap: getEnvInt("CHILD_CHUNK_OVERLAP", 50),

		OCRServiceURL:         getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled:     getEnvBool("OCR_SERVICE_ENABLED", true),
		OCRTimeout:            getEnvInt("OCR_TIMEOUT", 300), // 5 minutes
		OCRDensityThreshold:   getEnvInt("OCR_DENSITY_THRESHOLD", 25),
		LanguageMinConfidence: getEnvFloat64("LANGUAGE_MIN_CONFIDENCE", 0.5),

		RetrievalTopK:      getEnvInt("RETRIEVAL_TOP_K", 8),
		ContextBudgetWords: getEnvInt("CONTEXT_BUDGET_WORDS", 2400),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		AnswerModel:           getEnv("ANSWER_MODEL", "gemini-2.0-flash"),
		AnswerTimeoutSeconds:  getEnvInt("ANSWER_TIMEOUT_SECONDS", 30),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
		BcryptCost:      getEnvInt("BCRYPT_COST", 12),

		SessionTTLHours:     getEnvInt("SESSION_TTL_HOURS", 72),
		CleanupIntervalMins: getEnvInt("CLEANUP_INTERVAL_MINUTES", 30),

		TracingEnabled:      getEnvBool("TRACING_ENABLED", false),
		TracingOTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRatio:  getEnvFloat64("TRACING_SAMPLE_RATIO", 0.1),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChildChunkOverlap >= cfg.ChildChunkSize {
		return nil, fmt.Errorf("CHILD_CHUNK_OVERLAP (%d) must be smaller than CHILD_CHUNK_SIZE (%d)",
			cfg.ChildChunkOverlap, cfg.ChildChunkSize)
	}

	if cfg.ChildChunkSize > cfg.ParentChunkSize {
		return nil, fmt.Errorf("CHILD_CHUNK_SIZE (%d) must not exceed PARENT_CHUNK_SIZE (%d)",
			cfg.ChildChunkSize, cfg.ParentChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
