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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/backend"
	"github.com/avpratap/riqueza-cart-sync/internal/cart"
	"github.com/avpratap/riqueza-cart-sync/internal/config"
	"github.com/avpratap/riqueza-cart-sync/internal/identity"
	"github.com/avpratap/riqueza-cart-sync/internal/reconcile"
	"github.com/avpratap/riqueza-cart-sync/internal/router"
	"github.com/avpratap/riqueza-cart-sync/internal/storage"
	"github.com/avpratap/riqueza-cart-sync/internal/syncer"
	"github.com/avpratap/riqueza-cart-sync/internal/transfer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	// Open the durable local store
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to open local storage:", err)
	}
	defer store.Close()

	// Wire the cart core
	resolver := identity.NewResolver(store, logger)
	client := backend.NewClient(cfg.Backend.BaseURL, resolver, logger)
	if cfg.Backend.Timeout > 0 {
		client.SetTimeout(time.Duration(cfg.Backend.Timeout) * time.Second)
	}
	remoteSync := syncer.New(client, logger)
	cartStore := cart.NewStore(store, remoteSync, client, logger)
	remoteSync.OnRemoteID(cartStore.SetRemoteID)
	reconciler := reconcile.New(client, cartStore, logger)
	transferProcess := transfer.New(store, client, logger)

	// Initialize the cart from the durable snapshot; the UI triggers remote
	// hydration explicitly once it is ready.
	if snapshot, err := store.LoadSnapshot(); err == nil && snapshot != nil {
		cartStore.Load(snapshot.Items)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(cfg, cartStore, reconciler, transferProcess, resolver, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Drain in-flight remote syncs before closing storage
	remoteSync.Wait()

	log.Println("Server exited")
}
