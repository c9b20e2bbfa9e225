package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/arunbonal/RideShare-sub000/internal/database"
	"github.com/arunbonal/RideShare-sub000/internal/handlers"
	"github.com/arunbonal/RideShare-sub000/internal/middleware"
	"github.com/arunbonal/RideShare-sub000/internal/reliability"
	"github.com/arunbonal/RideShare-sub000/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, reading configuration from environment")
	}

	log.SetFormatter(&log.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := services.InitRedis(); err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without ride status cache")
	}

	// Firebase is optional; push delivery is skipped when not configured.
	if err := services.InitFirebase(); err != nil {
		log.WithError(err).Warn("Firebase initialization failed")
	}

	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	hub := services.NewHub()
	go hub.Run()

	ledger := reliability.NewLedgerFromEnv()

	// Background sweeper moves rides through in-progress and completed as
	// their departure windows pass, so statuses stay fresh even for rides
	// nobody is reading.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go services.RunStatusSweeper(ctx, db, time.Minute)

	r := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	r.Static("/uploads", "/app/uploads")

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/driver-profile", handlers.UpsertDriverProfile(db))
				users.POST("/driver-profile/vehicle-photo", handlers.UploadVehiclePhoto(db))
				users.PUT("/hitcher-profile", handlers.UpsertHitcherProfile(db))
			}

			rides := protected.Group("/rides")
			{
				rides.POST("", handlers.CreateRide(db))
				rides.GET("", handlers.GetAvailableRides(db))
				rides.GET("/driver", handlers.GetDriverRides(db))
				rides.GET("/:rideId/status", handlers.GetRideStatus(db))
				rides.POST("/:rideId/cancel", handlers.CancelRide(db, hub, ledger))
				rides.POST("/:rideId/request", handlers.RequestSeat(db, hub))
				rides.POST("/:rideId/request/cancel", handlers.CancelRequest(db, hub, ledger))
				rides.GET("/:rideId/request/status", handlers.GetHitcherStatus(db))
				rides.POST("/:rideId/requests/:hitcherId/accept", handlers.AcceptRequest(db, hub))
				rides.POST("/:rideId/requests/:hitcherId/reject", handlers.RejectRequest(db, hub))
				rides.POST("/:rideId/no-show", handlers.ReportNoShow(db, ledger))
			}

			requests := protected.Group("/requests")
			{
				requests.GET("/mine", handlers.GetMyRequests(db))
			}

			reliabilityGroup := protected.Group("/reliability")
			{
				reliabilityGroup.GET("/preview", handlers.PreviewCancelImpact(db, ledger))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.POST("/register-token", handlers.RegisterFCMToken(db))
				notifications.DELETE("/remove-token", handlers.RemoveFCMToken(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.WithField("port", port).Info("Starting server")
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
