package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classroomlabs/peergrade-api/internal/config"
	"github.com/classroomlabs/peergrade-api/internal/database"
	"github.com/classroomlabs/peergrade-api/internal/handler"
	"github.com/classroomlabs/peergrade-api/internal/middleware"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/observability"
	"github.com/classroomlabs/peergrade-api/internal/repository"
	"github.com/classroomlabs/peergrade-api/internal/router"
	"github.com/classroomlabs/peergrade-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Section{},
		&models.Group{},
		&models.Membership{},
		&models.Rubric{},
		&models.Criterion{},
		&models.Assignment{},
		&models.Submission{},
		&models.Score{},
		&models.Report{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	sectionRepo := repository.NewSectionRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	reportRepo := repository.NewReportRepository(db)
	userRepo := repository.NewUserRepository(db)

	scoreService := service.NewScoreService(scoreRepo, membershipRepo, rubricRepo, validate, logger)
	realtimeService := service.NewRealtimeService(scoreService, sectionRepo, membershipRepo, redisClient, cfg.RealtimeChannel, natsConn, logger)

	sectionService := service.NewSectionService(sectionRepo, membershipRepo, assignmentRepo, submissionRepo, userRepo, validate, realtimeService, logger)
	groupService := service.NewGroupService(groupRepo, membershipRepo, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, sectionRepo, membershipRepo, validate, realtimeService, logger)
	rubricService := service.NewRubricService(rubricRepo, assignmentRepo, validate, logger)
	reportService := service.NewReportService(reportRepo, scoreRepo, sectionRepo, membershipRepo, redisClient, cfg.RealtimeChannel, cfg.ReportCacheTTL, realtimeService, logger)

	sectionHandler := handler.NewSectionHandler(sectionService, logger)
	groupHandler := handler.NewGroupHandler(groupService, sectionService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, sectionService, logger)
	scoreHandler := handler.NewScoreHandler(scoreService, realtimeService, logger)
	rubricHandler := handler.NewRubricHandler(rubricService, logger)
	reportHandler := handler.NewReportHandler(reportService, sectionService, logger)
	realtimeHandler := handler.NewRealtimeHandler(realtimeService, logger)

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	realtimeService.Start(runCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SectionHandler:    sectionHandler,
		GroupHandler:      groupHandler,
		SubmissionHandler: submissionHandler,
		ScoreHandler:      scoreHandler,
		RubricHandler:     rubricHandler,
		ReportHandler:     reportHandler,
		RealtimeHandler:   realtimeHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
