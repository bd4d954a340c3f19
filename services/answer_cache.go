package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"coursechat-backend/internal/logger"
	"coursechat-backend/models"

	"github.com/redis/go-redis/v9"
)

// AnswerCache keeps recently composed answers in Redis so repeated
// questions skip the embed, retrieve and compose round trip. Entries
// expire on a short TTL rather than being invalidated on ingest;
// serving a slightly stale answer for a few minutes is acceptable.
type AnswerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAnswerCache(rdb *redis.Client, ttl time.Duration) *AnswerCache {
	return &AnswerCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached answer for an identical question, if any.
// Redis failures read as cache misses.
func (ac *AnswerCache) Get(ctx context.Context, courseID, section, question string) (*models.Answer, bool) {
	data, err := ac.rdb.Get(ctx, answerKey(courseID, section, question)).Bytes()
	if err != nil {
		return nil, false
	}

	var answer models.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, false
	}
	return &answer, true
}

// Set stores a composed answer. Best effort; failures only log.
func (ac *AnswerCache) Set(ctx context.Context, courseID, section, question string, answer *models.Answer) {
	data, err := json.Marshal(answer)
	if err != nil {
		return
	}
	if err := ac.rdb.Set(ctx, answerKey(courseID, section, question), data, ac.ttl).Err(); err != nil {
		logger.Warn("failed to cache answer", "course_id", courseID, "error", err)
	}
}

func answerKey(courseID, section, question string) string {
	sum := sha256.Sum256([]byte(courseID + "\x00" + section + "\x00" + question))
	return "answer:" + hex.EncodeToString(sum[:])
}
