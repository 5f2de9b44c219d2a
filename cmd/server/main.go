package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/kalaharena/backend/internal/api"
	"github.com/kalaharena/backend/internal/config"
	"github.com/kalaharena/backend/internal/database"
	"github.com/kalaharena/backend/internal/events"
	"github.com/kalaharena/backend/internal/game"
	"github.com/kalaharena/backend/internal/migrations"
	"github.com/kalaharena/backend/internal/redis"
	"github.com/kalaharena/backend/internal/server"
	"github.com/kalaharena/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize the match event publisher (optional)
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		events.SetDefault(events.NewPublisher(rdb))
		log.Printf("[EVENTS] Match event publisher initialized")
	} else {
		log.Printf("[EVENTS] Redis not configured - match events disabled")
	}

	st := store.New(db)

	// One pool per supported game kind; Kalah is the only shipped rules engine
	turnTimeout := time.Duration(cfg.TurnTimeoutSeconds) * time.Second
	pools := map[string]*game.Pool{
		"KLH": game.NewPool("KLH", game.NewKalah, st, turnTimeout),
	}

	auth := server.NewAuthManager(st)
	dispatcher := server.NewDispatcher(auth, pools)
	arbiter := server.New(cfg, dispatcher, pools)

	// Set up the status API
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, st, arbiter, cfg)

	go func() {
		log.Printf("Starting status API on port %s", cfg.APIPort)
		if err := router.Run(":" + cfg.APIPort); err != nil {
			log.Fatalf("Failed to start status API: %v", err)
		}
	}()

	log.Printf("Starting Kalah arbiter on port %s", cfg.GamePort)
	if err := arbiter.ListenAndServe(context.Background()); err != nil {
		log.Fatalf("Failed to start arbiter: %v", err)
	}
}
