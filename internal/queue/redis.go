package queue

import (
	"strings"

	"github.com/hibiken/asynq"

	"pdf-rag-chatbot/internal/config"
)

// RedisConnOpt builds the asynq broker connection from config. REDIS_URL
// may be a bare host:port or a redis:// URI.
func RedisConnOpt(cfg *config.Config) asynq.RedisConnOpt {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		if opt, err := asynq.ParseRedisURI(cfg.RedisURL); err == nil {
			return opt
		}
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
