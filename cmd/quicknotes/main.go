package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rdouglass/quicknotes/internal/database"
	"github.com/rdouglass/quicknotes/internal/email"
	"github.com/rdouglass/quicknotes/internal/logging"
	"github.com/rdouglass/quicknotes/internal/server"
)

func main() {
	port := os.Getenv("QUICKNOTES_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("QUICKNOTES_DB_PATH")
	if dbPath == "" {
		dbPath = "quicknotes.db"
	}

	baseURL := os.Getenv("QUICKNOTES_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	logger := logging.Setup(os.Getenv("QUICKNOTES_LOG_LEVEL"), os.Getenv("QUICKNOTES_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("QUICKNOTES_POSTMARK_TOKEN"),
		os.Getenv("QUICKNOTES_FROM_EMAIL"),
		baseURL,
	)
	if !emailClient.Configured() {
		logger.Warn("email client not configured, new accounts are confirmed immediately")
	}

	srv := server.New(db, emailClient, logger)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Periodic cleanup of expired sessions and stale rate-limit entries
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("session cleanup", "deleted", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		fmt.Printf("Quicknotes running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
