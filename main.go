package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/config"
	"github.com/sevy71/lms-automation/handlers"
	"github.com/sevy71/lms-automation/models"
	"github.com/sevy71/lms-automation/services"
	"github.com/sevy71/lms-automation/token"
	"github.com/sevy71/lms-automation/workers"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Participant{},
		&models.Round{},
		&models.Fixture{},
		&models.Pick{},
		&models.NotificationJob{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	pickTokens := token.New(cfg.SecretKey, token.PurposePickLink)
	viewTokens := token.New(cfg.SecretKey, token.PurposeViewPicks)

	queueService := services.NewQueueService(db, cfg.UnreachableThreshold, cfg.FailureWindow)
	roundService := services.NewRoundService(db)
	participantService := services.NewParticipantService(db, queueService, viewTokens, cfg.BaseURL)
	linkService := services.NewLinkService(db, pickTokens, viewTokens, roundService)
	notifyService := services.NewNotifyService(db, queueService, pickTokens, cfg.BaseURL)
	fixtureService := services.NewFixtureService(db, services.NewFootballClient(cfg.FootballDataToken))

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.SetupPickRoutes(app, linkService)
	handlers.SetupQueueRoutes(app, queueService, cfg.WorkerAPIToken)
	handlers.SetupAdminRoutes(app, cfg.AdminAPIToken,
		participantService, roundService, fixtureService, notifyService, queueService)

	fixtureService.StartResultsScheduler(cfg.ResultsPollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WorkerEnabled {
		if cfg.WhatsAppAccessToken == "" || cfg.WhatsAppPhoneNumberID == "" {
			log.Fatal("WORKER_ENABLED requires WA_ACCESS_TOKEN and WA_PHONE_NUMBER_ID")
		}
		client := workers.NewQueueClient(fmt.Sprintf("http://localhost:%s", cfg.Port), cfg.WorkerAPIToken)
		sender := workers.NewCloudAPISender(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID)
		go workers.PollQueue(ctx, client, sender, cfg.WorkerPollInterval)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("server error: %v", err)
		}
	}()
	log.Infof("server running on port %s", cfg.Port)

	<-ctx.Done()
	log.Info("shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
