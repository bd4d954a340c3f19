package queue

import (
	"strings"

	"coursechat-backend/internal/config"

	"github.com/hibiken/asynq"
)

// RedisConnOpt builds the asynq broker connection from the same Redis
// settings the rate limiter uses.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
