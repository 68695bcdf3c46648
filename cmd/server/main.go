package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/driveguard/backend/internal/delivery/http"
	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/internal/repository/postgres"
	"github.com/driveguard/backend/internal/service"
	"github.com/driveguard/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig()

	// Database connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dependency Injection: Repositories
	emergencyRepo, pool := newEmergencyRepository(ctx, cfg.DatabaseURL)
	if pool != nil {
		defer pool.Close()
	}

	// Optional live-state mirror
	var mirror service.StateMirror
	if cfg.RedisAddr != "" {
		redisMirror, err := store.NewRedisMirror(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			log.Printf("Warning: Could not connect to Redis: %v", err)
			log.Println("Running without live-state mirror")
		} else {
			defer redisMirror.Close()
			mirror = redisMirror
			log.Println("Connected to Redis")
		}
	}

	// Dependency Injection: Services
	weatherSvc := service.NewWeatherService(cfg.OpenWeatherAPIKey)
	trafficSvc := service.NewTrafficService(cfg.TomTomAPIKey)
	predictSvc := service.NewPredictionService(cfg.PredictionServiceURL)
	smsSvc := service.NewSMSService(cfg.SMSGatewayURL, cfg.SMSGatewayKey)
	emergencySvc := service.NewEmergencyService(emergencyRepo, smsSvc)

	// Scheduled cleanup of stale emergency requests
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1h", func() {
		purgeCtx, purgeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer purgeCancel()

		removed, err := emergencySvc.PurgeStale(purgeCtx, cfg.EmergencyRetention)
		if err != nil {
			log.Printf("Emergency purge failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("Purged %d stale emergency requests", removed)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule emergency purge: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "DriveGuard API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, emergencySvc, smsSvc, emergencyRepo, http.TrackDeps{
		Weather:    weatherSvc,
		Traffic:    trafficSvc,
		Prediction: predictSvc,
		SMS:        smsSvc,
		AlertPhone: cfg.AlertSMSNumber,
		Mirror:     mirror,
	})

	// Graceful shutdown
	go func() {
		port := cfg.Port
		if port == "" {
			port = "8080"
		}
		log.Printf("Server starting on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited gracefully")
}

// newEmergencyRepository picks the store for emergency requests. Without a
// configured database URL the relay keeps requests in volatile memory; pgx
// connects lazily, so a pool is only trusted after a successful ping.
func newEmergencyRepository(ctx context.Context, databaseURL string) (domain.EmergencyRepository, *pgxpool.Pool) {
	if databaseURL == "" {
		log.Println("No DATABASE_URL configured, using in-memory storage")
		return postgres.NewMemoryRepository(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		log.Println("Running with in-memory storage only")
		if pool != nil {
			pool.Close()
		}
		return postgres.NewMemoryRepository(), nil
	}

	log.Println("Connected to PostgreSQL")
	return postgres.NewPostgresRepository(pool), pool
}

type Config struct {
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	OpenWeatherAPIKey    string
	TomTomAPIKey         string
	PredictionServiceURL string
	SMSGatewayURL        string
	SMSGatewayKey        string
	AlertSMSNumber       string
	EmergencyRetention   time.Duration
	Port                 string
	Env                  string
}

func loadConfig() *Config {
	return &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		OpenWeatherAPIKey:    getEnv("OPENWEATHER_API_KEY", ""),
		TomTomAPIKey:         getEnv("TOMTOM_API_KEY", ""),
		PredictionServiceURL: getEnv("PREDICTION_SERVICE_URL", "http://localhost:8000"),
		SMSGatewayURL:        getEnv("SMS_GATEWAY_URL", "https://textbelt.com/text"),
		SMSGatewayKey:        getEnv("SMS_GATEWAY_KEY", ""),
		AlertSMSNumber:       getEnv("ALERT_SMS_NUMBER", ""),
		EmergencyRetention:   getEnvDuration("EMERGENCY_RETENTION", 24*time.Hour),
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("GO_ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
