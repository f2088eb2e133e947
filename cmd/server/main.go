package main

import (
	"context"
	"log"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/labstack/echo/v4"

	"github.com/yuehan04/pawconnect/backend/internal/router"
	"github.com/yuehan04/pawconnect/backend/pkg/config"
	"github.com/yuehan04/pawconnect/backend/pkg/firebase"
	"github.com/yuehan04/pawconnect/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase when credentials are configured; without them the
	// board runs with open routes and no event broadcasting.
	var authClient *auth.Client
	var messagingClient *messaging.Client
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		authClient = firebaseApp.AuthClient
		messagingClient = firebaseApp.MessagingClient
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set; running without Firebase.")
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, cfg, db.Postgres, db.Mongo, authClient, messagingClient)

	// Validator
	e.Validator = validators.NewValidator()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
