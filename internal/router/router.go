package router

import (
	"log"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/yuehan04/pawconnect/backend/internal/events"
	"github.com/yuehan04/pawconnect/backend/internal/handlers"
	"github.com/yuehan04/pawconnect/backend/internal/middleware"
	"github.com/yuehan04/pawconnect/backend/internal/models"
	"github.com/yuehan04/pawconnect/backend/internal/repositories"
	"github.com/yuehan04/pawconnect/backend/pkg/config"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies.
// The Firebase clients may be nil: without an auth client mutating routes
// are open, without a messaging client board events are dropped.
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, authClient *auth.Client, messagingClient *messaging.Client) {
	// AutoMigrate PostgreSQL models
	if err := pgdb.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	mongoDB := mgClient.Database(cfg.MongoDatabase)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	serviceRepo := repositories.NewMongoServiceRepository(mongoDB)
	imageRepo, err := repositories.NewGridFSImageRepository(mongoDB)
	if err != nil {
		log.Fatalf("Failed to initialize GridFS image repository: %v", err)
	}

	// --- Event broadcaster ---
	var broadcaster events.Broadcaster = events.NopBroadcaster{}
	if messagingClient != nil {
		broadcaster = events.NewFCMBroadcaster(messagingClient, cfg.BoardEventTopic)
		log.Println("Board event broadcaster configured.")
	} else {
		log.Println("No messaging client; board events disabled.")
	}

	// --- Service board routes ---
	api := e.Group("/api/v1")

	var guard []echo.MiddlewareFunc
	if authClient != nil {
		guard = append(guard, middleware.FirebaseAuthMiddleware(authClient))
		log.Println("Firebase auth middleware applied to mutating board routes.")
	}

	boardHandler := handlers.NewServiceBoardHandler(serviceRepo, userRepo, imageRepo, broadcaster)
	boardHandler.RegisterServiceBoardRoutes(api, guard...)
	log.Println("Service board routes configured.")
}
