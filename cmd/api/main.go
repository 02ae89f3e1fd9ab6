package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/config"
	"github.com/noah-isme/gema-exam-console/internal/database"
	"github.com/noah-isme/gema-exam-console/internal/handler"
	"github.com/noah-isme/gema-exam-console/internal/logging"
	"github.com/noah-isme/gema-exam-console/internal/middleware"
	"github.com/noah-isme/gema-exam-console/internal/repository"
	"github.com/noah-isme/gema-exam-console/internal/router"
	"github.com/noah-isme/gema-exam-console/internal/service"
	cloud "github.com/noah-isme/gema-exam-console/pkg/cloudinary"
	"github.com/noah-isme/gema-exam-console/pkg/s3blob"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{Console: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: true,
		Service: "exam-api",
	})

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	blobs, err := evidenceStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.EvidenceBackend).Msg("failed to create evidence store")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	resultRepo := repository.NewExamResultRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	proctoringRepo := repository.NewProctoringRepository(db)

	events := service.NewGradingEventPublisher(redisClient, natsConn, cfg.RedisChannel, logger)
	resultService := service.NewExamResultService(resultRepo, repository.NewStudentRepository(db), redisClient, cfg.SummaryCacheTTL, logger)
	gradingService := service.NewGradingService(resultRepo, validate, redisClient, events, logger)
	evidenceService := service.NewEvidenceService(evidenceRepo, resultRepo, blobs, logger)
	detailService := service.NewSubmissionDetailService(resultRepo, questionRepo, proctoringRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    service.MaxEvidenceBytes + 1<<20,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ExamResultHandler:       handler.NewExamResultHandler(resultService, gradingService, logger),
		SubmissionDetailHandler: handler.NewSubmissionDetailHandler(evidenceService, detailService, logger),
		StudentResultHandler:    handler.NewStudentResultHandler(resultService, logger),
		JWTMiddleware:           middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:            healthProbes(db, redisClient),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

// evidenceStore returns nil for the database backend.
func evidenceStore(cfg config.Config, logger zerolog.Logger) (service.BlobStore, error) {
	switch cfg.EvidenceBackend {
	case config.EvidenceBackendCloudinary:
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	case config.EvidenceBackendS3:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s3blob.New(ctx, cfg.S3Region, cfg.S3Bucket, logger)
	default:
		return nil, nil
	}
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return probes
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
