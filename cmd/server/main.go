// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-davidv/Donezo/internal/config"
	"github.com/j-davidv/Donezo/internal/gateway"
	"github.com/j-davidv/Donezo/internal/service"
	"github.com/j-davidv/Donezo/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Open the document store
	var (
		todos store.TodoStore
		users store.UserStore
	)
	switch cfg.Database.Backend {
	case "postgres":
		log.Println("Connecting to PostgreSQL...")
		pg, err := store.OpenPostgres(store.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				log.Printf("Failed to close database connection: %v", err)
			}
		}()
		todos, users = pg, pg.Users()
	case "memory":
		log.Println("Using in-memory store (data is not persisted)")
		mem := store.NewMemory()
		todos, users = mem, mem.Users()
	}

	// Initialize the gateway
	gw := gateway.New(todos, users, gateway.Config{
		DeletePolicy: service.DeletePolicy(cfg.Sync.DeletePolicy),
		Logger:       log.Default(),
	})
	defer gw.Close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      gw,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Donezo sync server listening on port %s", cfg.Server.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("📴 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("✅ Server shutdown complete")
}
