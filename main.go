package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/bloodlink/bloodlink_backend/controllers"
	"github.com/bloodlink/bloodlink_backend/coordinator"
	"github.com/bloodlink/bloodlink_backend/database"
	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/docs"
	"github.com/bloodlink/bloodlink_backend/matching"
	"github.com/bloodlink/bloodlink_backend/middleware"
	"github.com/bloodlink/bloodlink_backend/store"
	"github.com/bloodlink/bloodlink_backend/utils"
	"github.com/bloodlink/bloodlink_backend/websocket"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           BloodLink API
// @version         1.0
// @description     Blood request matching and donor coordination server
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	logger, err := utils.NewLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect()
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core components
	requests := store.NewGormStore(db)
	users := directory.NewGormDirectory(db)
	match := matching.NewService(requests, users, logger)
	accept := coordinator.New(requests, users, logger)

	// Expiry sweep keeps stale requests out of matching queries.
	sweepInterval := time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			sweepInterval = parsed
		}
	}
	go store.NewSweeper(requests, sweepInterval, logger).Run(ctx)

	// Real-time message router
	hub := websocket.NewHub(logger)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		backplane := websocket.NewRedisBackplane(rdb, logger)
		hub.AttachBackplane(backplane)
		go backplane.Run(ctx, hub.DeliverLocal)
		logger.Info("redis backplane enabled", zap.String("addr", addr))
	}
	go hub.Run(ctx)
	wsHandler := websocket.NewHandler(hub, users, logger)

	// Controllers
	authController := controllers.NewAuthController(db)
	requestController := controllers.NewRequestController(requests, match, users)
	donorController := controllers.NewDonorController(accept, match, users)

	// Set up Swagger info
	docs.SwaggerInfo.Title = "BloodLink API"
	docs.SwaggerInfo.Description = "Blood request matching and donor coordination server"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + os.Getenv("PORT")
	if docs.SwaggerInfo.Host == "localhost:" {
		docs.SwaggerInfo.Host = "localhost:8080"
	}
	docs.SwaggerInfo.BasePath = "/"
	docs.SwaggerInfo.Schemes = []string{"http"}

	// Set up router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Authentication routes
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	// Protected routes
	api := router.Group("/api")
	api.Use(middleware.JWTAuth())
	{
		// Patient routes
		api.POST("/patient/requests", requestController.CreateRequest)
		api.GET("/patient/requests/active", requestController.GetActiveRequests)
		api.GET("/patient/requests/history", requestController.GetRequestHistory)
		api.DELETE("/patient/requests/:id", requestController.CancelRequest)
		api.PUT("/patient/requests/:id/fulfill", requestController.FulfillRequest)
		api.GET("/patient/matching-donors", requestController.GetMatchingDonors)

		// Donor routes
		api.GET("/donor/requests/nearby", donorController.GetNearbyRequests)
		api.POST("/donor/requests/accept", donorController.AcceptRequest)
		api.POST("/donor/requests/decline", donorController.DeclineRequest)
		api.GET("/donor/requests/accepted", donorController.GetAcceptedRequests)
		api.PUT("/donor/availability", donorController.UpdateAvailability)
	}

	// WebSocket route
	router.GET("/ws", wsHandler.HandleConnection)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("server starting", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
