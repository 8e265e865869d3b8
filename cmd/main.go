package main

import (
	"atm-api/internal/config"
	"atm-api/internal/handlers"
	"atm-api/internal/services"
	"atm-api/pkg/database"
	"atm-api/pkg/logger"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// config errors are reported by a production logger until APP_ENV is validated
	bootLogger, err := logger.New("prod")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Fatal("failed to load config", zap.Error(err))
	}

	logger.InitLogger(cfg.AppEnv)
	lg := logger.Logger
	defer func() { _ = lg.Sync() }()

	store, err := database.InitStore(database.Config{
		SecretKey:   cfg.JWTSecret,
		PinHashCost: cfg.PinHashCost,
	}, database.DefaultAccounts)
	if err != nil {
		lg.Fatal("failed to seed accounts", zap.Error(err))
	}

	svc := services.NewService(store, lg, services.AuthConfig{
		Secret:            cfg.JWTSecret,
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		LockDuration:      cfg.LockDuration,
		SessionTTL:        cfg.SessionTTL,
	}, cfg.PinHashCost)

	h := handlers.NewHandler(svc, lg)

	app := fiber.New(fiber.Config{
		ErrorHandler: h.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(recover.New())
	app.Use(h.RequestLogger)

	h.RegisterRoutes(app)

	go func() {
		lg.Info("ATM API started", zap.String("port", cfg.Port), zap.Strings("cards", store.CardIDs()))
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		lg.Error("shutdown error", zap.Error(err))
	}
}
