package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"buildscope/internal/config"
	"buildscope/internal/logger"
	"buildscope/internal/model"
	"buildscope/internal/platform/database"
	"buildscope/internal/platform/gcs"
	rabbitmqClient "buildscope/internal/platform/rabbitmq"
	redisClient "buildscope/internal/platform/redis"
	"buildscope/internal/repository"
	"buildscope/internal/worker"
)

type App struct {
	Config       *config.Config
	Log          *logger.Logger
	DB           *gorm.DB
	Redis        *redis.Client
	MQConn       *amqp.Connection
	Storage      *gcs.Store
	ReportWorker *worker.ErrorReportWorker

	StartedAt time.Time
}

// New connects every backing service. Object storage is optional: without
// it the server still starts and upload endpoints report a configuration
// error.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log := logger.New(cfg.Log.Mode)
	app := &App{Config: cfg, Log: log, StartedAt: time.Now()}

	app.DB, err = database.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), cfg.App.GinMode == "debug")
	if err != nil {
		return nil, err
	}
	if err := app.DB.AutoMigrate(model.Tables()...); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	app.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.MQConn, err = rabbitmqClient.New(cfg.RabbitMQ.URL)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	reportRepo := repository.NewErrorReportRepository(app.DB)
	app.ReportWorker = worker.NewErrorReportWorker(app.MQConn, reportRepo, cfg.RabbitMQ.ErrorReportQueue, log)
	if err := app.ReportWorker.Start(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("start error report worker failed: %w", err)
	}

	if cfg.Storage.Bucket != "" {
		store, err := gcs.New(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
		if err != nil {
			log.Warn("object storage unavailable, uploads disabled", "bucket", cfg.Storage.Bucket, "error", err)
		} else {
			app.Storage = store
		}
	}

	if cfg.LLM.APIKey == "" {
		log.Warn("llm api key is not set, chat requests will fail", "provider", cfg.LLM.Provider)
	}
	log.Info("backing services ready",
		"database", cfg.Database.Driver,
		"redis", cfg.Redis.Addr,
		"storage", app.Storage != nil,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
	)
	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.ReportWorker != nil {
		a.ReportWorker.Close()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
