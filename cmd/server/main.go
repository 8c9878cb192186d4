package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/libtrack/libtrack-server/internal/api"
	"github.com/libtrack/libtrack-server/internal/chatbot"
	"github.com/libtrack/libtrack-server/internal/config"
	"github.com/libtrack/libtrack-server/internal/mailer"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/libtrack/libtrack-server/internal/service"
	"github.com/libtrack/libtrack-server/internal/utils"
	"github.com/libtrack/libtrack-server/internal/workers"
	"github.com/libtrack/libtrack-server/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := utils.NewLogger()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Real-time broadcast hub for admin dashboards
	hub := ws.NewHub(logger)
	go hub.Run()

	// Outgoing mail
	var mail mailer.Mailer = mailer.NoopMailer{}
	if cfg.SMTP.Enabled {
		mail = mailer.NewSMTPMailer(cfg.SMTP, logger)
	}

	// Create service
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret, hub, mail, logger, cfg.Library)

	// Rule-based chatbot
	bot := chatbot.New(repo)

	// Background overdue notifier
	notifier := workers.NewNotifier(repo, svc, mail, logger,
		time.Duration(cfg.Library.NotifierIntervalHr)*time.Hour)
	notifier.Start(context.Background())

	// Create API handler
	handler := api.NewHandler(svc, bot, hub, cfg.Uploads, logger)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
