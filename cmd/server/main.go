package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/antonykinuthia/luxliving/internal/config"
	"github.com/antonykinuthia/luxliving/internal/database"
	"github.com/antonykinuthia/luxliving/internal/realtime"
	"github.com/antonykinuthia/luxliving/internal/routes"
	"github.com/antonykinuthia/luxliving/internal/store"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	pool, err := database.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	docStore := store.NewPostgresStore(pool)

	// 3. Connect to Redis (optional; in-process events without it)
	var broker realtime.Broker
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		broker = realtime.NewRedisBroker(client)
	} else {
		log.Println("REDIS_URL not set, using in-process event broker")
		broker = realtime.NewMemoryBroker()
	}

	// 4. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if err := routes.RegisterRoutes(app, cfg, docStore, broker); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	// 5. Start Server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
