// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimarket/aimarket-go/internal/application/container"
	"github.com/aimarket/aimarket-go/internal/infrastructure/database"
	"github.com/aimarket/aimarket-go/internal/presentation/http/server"
	"github.com/aimarket/aimarket-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	log.Println("Initializing...")

	// Step 1: Create dependency injection container
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer appContainer.Close()

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 2: Ensure database schemas
	schemaStart := time.Now()
	tableCreator := database.NewTableCreator()

	if err := tableCreator.CreateCatalogSchema(appContainer.CatalogDB.DB); err != nil {
		return fmt.Errorf("catalog schema creation failed: %w", err)
	}
	if err := tableCreator.CreateLocalStoreSchema(appContainer.LocalDB.DB); err != nil {
		return fmt.Errorf("local store schema creation failed: %w", err)
	}
	if err := tableCreator.SeedCatalogContent(appContainer.CatalogDB.DB); err != nil {
		return fmt.Errorf("catalog seeding failed: %w", err)
	}
	logger.LogStartupPhase("schema", time.Since(schemaStart), true, nil)

	// Step 3: Wire lifecycle listeners. Order matters: reconciliation must
	// observe sign-in before the idle monitor arms.
	unsubscribeReconcile := appContainer.ReconcileService.Listen()
	defer unsubscribeReconcile()
	unsubscribeIdle := appContainer.IdleService.Listen()
	defer unsubscribeIdle()
	logger.Startup().Info("Session lifecycle listeners registered")

	// Step 4: Start HTTP server
	startServerTime := time.Now()
	httpServer := server.New(config.Port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", config.Port, "duration", time.Since(startServerTime))

	// Step 5: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+config.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	totalStartupTime := time.Since(start)
	logger.Startup().Info("Application startup complete",
		"totalDuration", totalStartupTime,
		"port", config.Port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Disarm idle monitors so no sign-out fires mid-shutdown
	appContainer.IdleService.StopAll()

	// Stop server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
