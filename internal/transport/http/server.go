package http

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"buildscope/internal/ai"
	appsvc "buildscope/internal/app"
	"buildscope/internal/bootstrap"
	"buildscope/internal/cache"
	"buildscope/internal/config"
	"buildscope/internal/platform/rabbitmq"
	"buildscope/internal/repository"
	"buildscope/internal/transport/http/handler"
	"buildscope/internal/transport/http/middleware"
)

// Handlers is everything RegisterRoutes mounts.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Project     *handler.ProjectHandler
	Chat        *handler.ChatHandler
	Lesson      *handler.LessonHandler
	DailyReport *handler.DailyReportHandler
	Upload      *handler.UploadHandler
	Report      *handler.ReportHandler
}

// NewRouter wires repositories, services and handlers over the connected
// backing services.
func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	cfg := app.Config
	log := app.Log

	prompts, err := appsvc.NewPromptSet(cfg.Prompts)
	if err != nil {
		return nil, fmt.Errorf("load prompts failed: %w", err)
	}
	llm := ai.NewStreamClient(ai.Config{
		Provider:         cfg.LLM.Provider,
		BaseURL:          cfg.LLM.BaseURL,
		APIKey:           cfg.LLM.APIKey,
		Model:            cfg.LLM.Model,
		AnthropicVersion: cfg.LLM.AnthropicVersion,
		MaxTokens:        cfg.LLM.MaxTokens,
		Temperature:      cfg.LLM.Temperature,
	}, nil)

	userRepo := repository.NewUserRepository(app.DB)
	projectRepo := repository.NewProjectRepository(app.DB)
	turnRepo := repository.NewChatTurnRepository(app.DB)
	lessonRepo := repository.NewLessonRepository(app.DB)
	dailyReportRepo := repository.NewDailyReportRepository(app.DB)
	fileRepo := repository.NewProjectFileRepository(app.DB)
	historyCache := cache.NewHistoryCache(app.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second, 0)

	authService := appsvc.NewAuthService(
		userRepo,
		projectRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	persister := appsvc.NewTurnPersister(turnRepo, historyCache, log)
	chatService := appsvc.NewChatService(projectRepo, turnRepo, historyCache, llm, prompts, persister, appsvc.ChatOptions{
		HistoryWindow:  cfg.LLM.HistoryWindow,
		StreamTimeout:  cfg.StreamTimeout(),
		PersistTimeout: cfg.PersistTimeout(),
	}, log)
	projectService := appsvc.NewProjectService(projectRepo, historyCache, log)

	var objectStore appsvc.ObjectStore
	if app.Storage != nil {
		objectStore = app.Storage
	}
	uploadService := appsvc.NewUploadService(objectStore, fileRepo, projectRepo, appsvc.UploadOptions{
		MaxDocumentBytes: int64(cfg.Upload.MaxDocumentMB) << 20,
		MaxImageBytes:    int64(cfg.Upload.MaxImageMB) << 20,
		MaxImageSide:     cfg.Upload.MaxImageSide,
		MaxAttempts:      cfg.Upload.MaxAttempts,
		URLTTL:           cfg.SignedURLTTL(),
	}, log)
	reportService := appsvc.NewReportService(
		rabbitmq.NewReportPublisher(app.MQConn, cfg.RabbitMQ.ErrorReportQueue),
		cfg.App.Env == "dev",
		log,
	)

	maxUpload := int64(max(cfg.Upload.MaxDocumentMB, cfg.Upload.MaxImageMB)) << 20
	handlers := Handlers{
		Health:      handler.NewHealthHandler(app),
		Auth:        handler.NewAuthHandler(authService),
		Project:     handler.NewProjectHandler(projectService),
		Chat:        handler.NewChatHandler(chatService),
		Lesson:      handler.NewLessonHandler(appsvc.NewLessonService(projectRepo, lessonRepo)),
		DailyReport: handler.NewDailyReportHandler(appsvc.NewDailyReportService(projectRepo, dailyReportRepo)),
		Upload:      handler.NewUploadHandler(uploadService, maxUpload),
		Report:      handler.NewReportHandler(reportService),
	}

	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery(), cors.New(corsConfig(cfg.CORS)))
	RegisterRoutes(router, cfg.Auth.JWTSecret, handlers)
	return router, nil
}

func RegisterRoutes(router *gin.Engine, jwtSecret string, h Handlers) {
	if h.Health != nil {
		router.GET("/healthz", h.Health.Check)
	}

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", middleware.AuthJWT(jwtSecret), h.Auth.Me)

	api.POST("/error-report", middleware.OptionalJWT(jwtSecret), h.Report.ClientError)
	api.POST("/csp-report", h.Report.CSPReport)

	protected := api.Group("")
	protected.Use(middleware.AuthJWT(jwtSecret))

	protected.POST("/chat", h.Chat.Stream)
	protected.POST("/chat/complete", h.Chat.Complete)
	protected.POST("/uploads/images", h.Upload.Image)

	projects := protected.Group("/projects")
	projects.GET("", h.Project.List)
	projects.POST("", h.Project.Create)
	projects.GET("/:id", h.Project.Get)
	projects.DELETE("/:id", h.Project.Delete)
	projects.GET("/:id/chat", h.Chat.GetHistory)
	projects.GET("/:id/scope/download", h.Project.DownloadScope)
	projects.GET("/:id/files", h.Upload.ListDocuments)
	projects.POST("/:id/files", h.Upload.Document)

	projects.GET("/:id/lessons", h.Lesson.List)
	projects.POST("/:id/lessons", h.Lesson.Add)
	projects.PUT("/:id/lessons/:lessonId", h.Lesson.Edit)
	projects.DELETE("/:id/lessons/:lessonId", h.Lesson.Delete)

	projects.GET("/:id/daily-reports", h.DailyReport.List)
	projects.POST("/:id/daily-reports", h.DailyReport.Create)
	projects.GET("/:id/daily-reports/:reportId", h.DailyReport.Get)
	projects.PUT("/:id/daily-reports/:reportId", h.DailyReport.Update)
	projects.DELETE("/:id/daily-reports/:reportId", h.DailyReport.Delete)
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	c.AllowOrigins = cfg.AllowOrigins
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"http://localhost:3000"}
	}
	return c
}
