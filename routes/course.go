package routes

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"coursechat-backend/internal/ai"
	"coursechat-backend/internal/config"
	"coursechat-backend/internal/index"
	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/queue"
	"coursechat-backend/internal/stats"
	"coursechat-backend/internal/telemetry"
	"coursechat-backend/internal/vtt"
	"coursechat-backend/middleware"
	"coursechat-backend/models"
	"coursechat-backend/services"
	"coursechat-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// CourseServices bundles everything the course endpoints depend on.
type CourseServices struct {
	Ingest  *services.IngestService
	Ask     *services.AskService
	Stats   stats.Store
	Export  *services.ExportService
	Courses *services.CourseService
	Queue   *asynq.Client
	Metrics *telemetry.Metrics
}

func SetupCourseRoutes(router *gin.Engine, cfg *config.Config, svc CourseServices) {
	course := router.Group("/course")

	course.POST("/upload-vtt", uploadVTTHandler(cfg, svc))
	course.POST("/ask", askHandler(cfg, svc))
	course.GET("/rag-stats", ragStatsHandler(svc))
	course.GET("/rag-stats/export", ragStatsExportHandler(svc))
	course.GET("/rag-stats/:userId", ragStatsHandler(svc))
	course.GET("/user-courses", userCoursesHandler(svc))
	course.GET("/user-courses/:userId", userCoursesHandler(svc))
}

// uploadVTTHandler ingests one or more WebVTT files. Files under the
// sync limit are processed in the request; larger ones are staged to
// disk and queued. Each file succeeds or fails on its own.
func uploadVTTHandler(cfg *config.Config, svc CourseServices) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
			return
		}

		files := form.File["files[]"]
		if len(files) == 0 {
			files = form.File["files"]
		}
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "No files provided", nil)
			return
		}

		section := c.PostForm("section")
		courseID := c.PostForm("courseId")
		if courseID == "" {
			courseID = c.Query("courseId")
		}
		if courseID == "" {
			courseID = cfg.DefaultCourseID
		}
		userID := middleware.GetUserID(c)

		if svc.Courses != nil {
			if err := svc.Courses.EnsureCourse(c.Request.Context(), courseID, c.PostForm("courseTitle"), userID); err != nil {
				logger.Error("failed to register course", "course_id", courseID, "error", err)
			}
		}

		results := make([]gin.H, 0, len(files))
		for _, fh := range files {
			name := filepath.Base(fh.Filename)

			if fh.Size > cfg.MaxFileSize {
				results = append(results, gin.H{
					"file":       name,
					"error_code": "file_too_large",
					"message":    fmt.Sprintf("File exceeds the %d byte limit", cfg.MaxFileSize),
				})
				continue
			}

			if fh.Size > cfg.SyncProcessingLimit && svc.Queue != nil {
				entry, err := stageAndEnqueue(c, cfg, svc, courseID, section, name, fh)
				if err != nil {
					results = append(results, gin.H{
						"file":       name,
						"error_code": "ingest_error",
						"message":    err.Error(),
					})
					continue
				}
				results = append(results, entry)
				continue
			}

			f, err := fh.Open()
			if err != nil {
				results = append(results, gin.H{
					"file":       name,
					"error_code": "ingest_error",
					"message":    "Could not read uploaded file",
				})
				continue
			}
			started := time.Now()
			result, err := svc.Ingest.IngestFile(c.Request.Context(), courseID, section, name, f)
			f.Close()
			if err != nil {
				if svc.Metrics != nil {
					svc.Metrics.RecordIngestion(courseID, 0, time.Since(started).Seconds(), false)
				}
				results = append(results, ingestErrorEntry(name, err))
				continue
			}
			if svc.Metrics != nil {
				svc.Metrics.RecordIngestion(courseID, int64(result.Chunks), time.Since(started).Seconds(), true)
			}
			results = append(results, gin.H{
				"file":     result.File,
				"chunks":   result.Chunks,
				"segments": result.Segments,
			})
		}

		utils.RespondWithData(c, gin.H{"files": results})
	}
}

func stageAndEnqueue(c *gin.Context, cfg *config.Config, svc CourseServices, courseID, section, name string, fh *multipart.FileHeader) (gin.H, error) {
	if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	path := filepath.Join(cfg.FileStorageDir, uuid.NewString()+"_"+name)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	task, err := queue.NewIngestVTTTask(courseID, section, name, path)
	if err != nil {
		return nil, err
	}
	if _, err := svc.Queue.EnqueueContext(c.Request.Context(), task); err != nil {
		return nil, fmt.Errorf("enqueue ingest: %w", err)
	}

	logger.Info("queued large transcript for ingestion", "course_id", courseID, "file", name)
	return gin.H{"file": name, "queued": true}, nil
}

func ingestErrorEntry(name string, err error) gin.H {
	code := "ingest_error"
	switch {
	case errors.Is(err, vtt.ErrNoValidCues):
		code = "parse_error"
	case errors.Is(err, ai.ErrEmbedding):
		code = "embedding_error"
	case errors.Is(err, index.ErrUnavailable):
		code = "retrieval_error"
	}
	return gin.H{"file": name, "error_code": code, "message": err.Error()}
}

// askHandler answers a question over the course index.
func askHandler(cfg *config.Config, svc CourseServices) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if req.CourseID == "" {
			req.CourseID = cfg.DefaultCourseID
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.GenerationTimeout)
		defer cancel()

		started := time.Now()
		answer, err := svc.Ask.Ask(ctx, req, middleware.GetUserID(c))
		if svc.Metrics != nil {
			outcome := "done"
			if err != nil {
				outcome = "failed"
			}
			svc.Metrics.RecordAsk(req.CourseID, outcome, time.Since(started).Seconds())
		}
		if err != nil {
			respondAskError(c, err)
			return
		}

		utils.RespondWithData(c, gin.H{
			"answer":     answer.Answer,
			"references": answer.References,
		})
	}
}

func respondAskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ai.ErrEmbedding):
		utils.RespondWithError(c, http.StatusBadGateway, "embedding_error",
			"Could not embed the question", nil)
	case errors.Is(err, index.ErrUnavailable):
		utils.RespondWithError(c, http.StatusServiceUnavailable, "retrieval_error",
			"Course index is temporarily unavailable", nil)
	case errors.Is(err, ai.ErrComposition):
		utils.RespondWithError(c, http.StatusBadGateway, "composition_error",
			"Could not compose an answer", nil)
	default:
		utils.RespondWithInternalError(c, "Unexpected error", nil)
	}
}

// ragStatsHandler serves the dashboard aggregates. With a userId path
// parameter the overview is scoped to that user's asks.
func ragStatsHandler(svc CourseServices) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			userID = middleware.GetUserID(c)
		}

		overview, err := svc.Stats.Overview(c.Request.Context(), userID)
		if err != nil {
			logger.Error("failed to load stats overview", "error", err)
			utils.RespondWithInternalError(c, "Could not load stats", nil)
			return
		}
		sections, err := svc.Stats.TopSections(c.Request.Context(), 5)
		if err != nil {
			logger.Error("failed to load top sections", "error", err)
			utils.RespondWithInternalError(c, "Could not load stats", nil)
			return
		}

		c.JSON(http.StatusOK, models.RagStats{Overview: overview, TopSections: sections})
	}
}

func ragStatsExportHandler(svc CourseServices) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, filename, err := svc.Export.ExportStatsXLSX(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logger.Error("stats export failed", "error", err)
			utils.RespondWithInternalError(c, "Could not export stats", nil)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func userCoursesHandler(svc CourseServices) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			userID = middleware.GetUserID(c)
		}

		courses, err := svc.Courses.ListCourses(c.Request.Context(), userID)
		if err != nil {
			logger.Error("failed to list courses", "error", err)
			utils.RespondWithInternalError(c, "Could not list courses", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"courses": courses})
	}
}

// SetupHealthRoutes registers liveness endpoints.
func SetupHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
}
