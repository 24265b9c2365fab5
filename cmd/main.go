package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"worklink/backend/internal/api/handler"
	"worklink/backend/internal/chathub"
	"worklink/backend/internal/config"
	"worklink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting WorkLink Messaging Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 1. Dependencies
	db, err := storage.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to set up PostgreSQL: %v", err)
	}

	ctx := context.Background()
	rdb, err := storage.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to set up Redis: %v", err)
	}
	log.Println("Database and Redis connections established, migrations complete.")

	s := storage.NewStorageService(db, rdb)

	// 2. Hub
	hub := chathub.NewManagerService(s)
	hub.StartPubSubListener(s.SubscribeToRooms())
	go hub.Run()

	// 3. Gin routing
	r := gin.Default()
	h := handler.NewHandler(hub, s, cfg.JWTSecret, cfg.JWTExpiry)

	r.POST("/login", h.Login)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/conversations", h.CreateConversation)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:id/messages", h.GetHistory)
	r.GET("/presence/:user_id", h.GetPresence)

	server := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
