package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/formlet/formlet-api/internal/airtable"
	"github.com/formlet/formlet-api/internal/auth"
	"github.com/formlet/formlet-api/internal/config"
	"github.com/formlet/formlet-api/internal/database"
	"github.com/formlet/formlet-api/internal/forms"
	"github.com/formlet/formlet-api/internal/httputil"
	"github.com/formlet/formlet-api/internal/repository"
	"github.com/formlet/formlet-api/internal/uploads"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	responseRepo := repository.NewResponseRepository(db)

	// Initialize Airtable client
	airtableClient := airtable.NewClient(time.Duration(cfg.HTTPClientTimeout) * time.Second)

	// Initialize upload storage
	uploadStore, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	// Initialize handlers
	stateStore := auth.NewStateStore(auth.DefaultStateTTL)
	authHandler := auth.NewHandler(cfg, stateStore, airtableClient, userRepo)

	synchronizer := forms.NewSynchronizer(airtableClient, responseRepo)
	formHandler := forms.NewHandler(formRepo, responseRepo, userRepo, airtableClient, synchronizer, uploadStore, cfg.PublicBaseURL)

	// Setup routes
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Form builder backend")
	})
	r.Static("/uploads", uploadStore.Dir())

	authHandler.Register(r.Group("/auth"))

	formsGroup := r.Group("/forms")
	formsGroup.Use(httputil.RequireUser(userRepo))
	formHandler.Register(formsGroup)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Printf("Server listening on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		log.Println("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
