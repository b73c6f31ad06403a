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

	"github.com/calebkish/control-generator-sub000/internal/config"
	"github.com/calebkish/control-generator-sub000/internal/database"
	"github.com/calebkish/control-generator-sub000/internal/handlers"
	"github.com/calebkish/control-generator-sub000/internal/llm"
	"github.com/calebkish/control-generator-sub000/internal/repository"
	"github.com/calebkish/control-generator-sub000/internal/router"
	"github.com/calebkish/control-generator-sub000/internal/services"
)

func main() {
	log.Println("Starting Control Generator backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Run Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("✗ Migrations failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 4: Initialize Repositories ────
	controlRepo := repository.NewControlRepo(pool)
	conversationRepo := repository.NewConversationRepo(pool)
	providerRepo := repository.NewProviderConfigRepo(pool)

	// ──── Step 5: Initialize Provider Adapter Factory ────
	adapterFactory := llm.NewFactory(cfg.LocalRuntimeURL, cfg.StreamBufferSize)
	log.Printf("✓ Provider adapter factory ready (local runtime: %s)", cfg.LocalRuntimeURL)

	// ──── Step 6: Initialize Services & Handlers ────
	chatService := services.NewChatService(conversationRepo, providerRepo, adapterFactory)

	controlHandler := handlers.NewControlHandler(controlRepo, conversationRepo)
	chatHandler := handlers.NewChatHandler(chatService)
	providerHandler := handlers.NewProviderHandler(providerRepo)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(controlHandler, chatHandler, providerHandler, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: prompt responses stream for as long as the
		// model keeps generating.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Control Generator backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
