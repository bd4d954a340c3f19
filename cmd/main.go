package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursechat-backend/internal/ai"
	"coursechat-backend/internal/config"
	"coursechat-backend/internal/index"
	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/queue"
	"coursechat-backend/internal/scheduler"
	"coursechat-backend/internal/stats"
	"coursechat-backend/internal/telemetry"
	"coursechat-backend/middleware"
	"coursechat-backend/routes"
	"coursechat-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("coursechat-backend")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

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

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	embedder, err := ai.NewEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to init embedder:", err)
	}
	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GenerationModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to init Gemini client:", err)
	}
	defer gemini.Close()

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	idx := index.NewStore(db, embedder.Model())
	idx.OnModelMismatch = func(courseID, file string) {
		task, err := queue.NewReembedTask(courseID, file)
		if err != nil {
			logger.Error("failed to build reembed task", "error", err)
			return
		}
		if _, err := queueClient.Enqueue(task); err != nil {
			logger.Error("failed to enqueue reembed", "course_id", courseID, "file", file, "error", err)
		}
	}

	statsStore := stats.NewMongoStore(db)
	chunker := services.NewChunkingService(cfg.ChunkWordBudget, cfg.ChunkMaxSpan)
	ingestService := services.NewIngestService(chunker, embedder, idx)
	askService := services.NewAskService(embedder, idx, gemini,
		services.NewMongoMessageStore(db), statsStore,
		services.AskOptions{
			TopK:           cfg.TopK,
			MinScore:       cfg.MinScore,
			FallbackAnswer: cfg.FallbackAnswer,
		})
	askService.SetCache(services.NewAnswerCache(rdb, 10*time.Minute))
	exportService := services.NewExportService(statsStore)
	courseService := services.NewCourseService(db)

	sched := scheduler.NewScheduler()
	if err := sched.ScheduleStatsPrune(statsStore, cfg.StatsRetention); err != nil {
		logger.Error("failed to schedule stats prune", "error", err)
	}
	if err := sched.ScheduleIndexCompaction(idx); err != nil {
		logger.Error("failed to schedule index compaction", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.IdentifyUser(cfg))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	// Multi-file uploads can carry several transcripts in one request.
	router.Use(middleware.RequestSizeLimit(4 * cfg.MaxFileSize))

	routes.SetupHealthRoutes(router)
	routes.SetupCourseRoutes(router, cfg, routes.CourseServices{
		Ingest:  ingestService,
		Ask:     askService,
		Stats:   statsStore,
		Export:  exportService,
		Courses: courseService,
		Queue:   queueClient,
		Metrics: metrics,
	})

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
