package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Redis (rate limiting + asynq broker)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Upload handling
	MaxFileSize         int64
	SyncProcessingLimit int64
	FileStorageDir      string

	// Chunking. The original backend never exposed its constants, so these
	// are tunable rather than hard-coded.
	ChunkWordBudget int
	ChunkMaxSpan    time.Duration

	// Retrieval
	TopK            int
	MinScore        float64
	DefaultCourseID string

	// Embeddings
	EmbeddingsProvider    string // "google" (default), "openai"
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	EmbedTimeout          time.Duration

	// Generation
	GenerationModel   string
	GenerationTimeout time.Duration
	GeminiTier        string
	FallbackAnswer    string

	// Stats
	StatsRetention time.Duration

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Optional bearer-claims verification. Login/refresh flows live in a
	// separate identity service; we only read claims for stats attribution.
	JWTSecret string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/coursechat"),
		DBName:      getEnv("DB_NAME", "coursechat"),
		Port:        getEnv("PORT", "5000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 10485760), // 10MB per VTT file
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 2097152),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),

		ChunkWordBudget: getEnvInt("CHUNK_WORD_BUDGET", 150),
		ChunkMaxSpan:    getEnvDuration("CHUNK_MAX_SPAN", 2*time.Minute),

		TopK:            getEnvInt("RETRIEVAL_TOP_K", 6),
		MinScore:        getEnvFloat64("RETRIEVAL_MIN_SCORE", 0.35),
		DefaultCourseID: getEnv("DEFAULT_COURSE_ID", "default"),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbedTimeout:          getEnvDuration("EMBED_TIMEOUT", 30*time.Second),

		GenerationModel:   getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 90*time.Second),
		GeminiTier:        getEnv("GEMINI_TIER", "free"),
		FallbackAnswer: getEnv("FALLBACK_ANSWER",
			"I couldn't find relevant material in the uploaded transcripts to answer that. Try rephrasing, or upload the lecture that covers this topic."),

		StatsRetention: getEnvDuration("STATS_RETENTION", 90*24*time.Hour),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	// Generation is always Gemini, so the key is required even when
	// embeddings come from another provider.
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	if cfg.EmbeddingsProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for openai embeddings")
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

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
