package main

import (
	"context"
	"log"

	"coursechat-backend/internal/ai"
	"coursechat-backend/internal/config"
	"coursechat-backend/internal/index"
	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/queue"
	"coursechat-backend/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.DBName)

	embedder, err := ai.NewEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to init embedder:", err)
	}

	idx := index.NewStore(db, embedder.Model())
	chunker := services.NewChunkingService(cfg.ChunkWordBudget, cfg.ChunkMaxSpan)
	ingestService := services.NewIngestService(chunker, embedder, idx)
	processor := queue.NewTaskProcessor(ingestService)

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestVTT, processor.ProcessIngestVTT)
	mux.HandleFunc(queue.TaskReembed, processor.ProcessReembed)

	logger.Info("worker starting")
	if err := server.Run(mux); err != nil {
		log.Fatal("Worker failed:", err)
	}
}
