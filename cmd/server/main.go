// Package main is the entry point for the SE-Atlas server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/se-atlas/server/internal/api"
	"github.com/se-atlas/server/internal/auth"
	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/config"
	"github.com/se-atlas/server/internal/data"
	"github.com/se-atlas/server/internal/data/concession"
	"github.com/se-atlas/server/internal/data/remote"
	"github.com/se-atlas/server/internal/data/sezone"
	"github.com/se-atlas/server/internal/render"
	"github.com/se-atlas/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting SE-Atlas server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Load both datasets once; an unreachable source is fatal.
	loader := data.NewLoader(remote.NewFetcher(cfg.Data.FetchTimeout()), concession.Options{
		LatColumn: cfg.Data.LatColumn,
		LonColumn: cfg.Data.LonColumn,
	})
	var (
		zones  *sezone.Dataset
		points *concession.Dataset
	)
	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Data.FetchTimeout())
	g, gctx := errgroup.WithContext(loadCtx)
	g.Go(func() error {
		ds, err := loader.Zones(gctx, cfg.Data.ZonesURL)
		if err != nil {
			return fmt.Errorf("zones from %s: %w", cfg.Data.ZonesURL, err)
		}
		zones = ds
		return nil
	})
	g.Go(func() error {
		ds, err := loader.Concessions(gctx, cfg.Data.PointsURL)
		if err != nil {
			return fmt.Errorf("concessions from %s: %w", cfg.Data.PointsURL, err)
		}
		points = ds
		return nil
	})
	err = g.Wait()
	cancelLoad()
	if err != nil {
		log.Fatalf("Failed to load datasets: %v", err)
	}

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: cfg.Cache.ImageSizeMB,
		ImageTTL:         time.Duration(cfg.Cache.ImageTTLMinutes) * time.Minute,
		QueryCacheSize:   cfg.Cache.QueryEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	dashboard := service.NewDashboard(service.DashboardConfig{
		Zones:         zones.Zones,
		Concessions:   points.Concessions,
		MaleField:     cfg.Data.MaleField,
		FeminineField: cfg.Data.FeminineField,
		Cache:         cacheManager,
	})

	// Authentication
	creds := make([]auth.Credential, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		creds = append(creds, auth.Credential{Username: u.Username, Password: u.Password, Role: auth.Role(u.Role)})
	}
	verifier, err := auth.NewStaticVerifier(creds)
	if err != nil {
		log.Fatalf("Failed to initialize credentials: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Printf("No JWT secret configured; sessions will not survive a restart")
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
	if err != nil {
		log.Fatalf("Failed to initialize tokens: %v", err)
	}
	sessions := auth.NewStore(cfg.Auth.MaxSessions, cfg.Auth.SessionTTL())
	log.Printf("Auth: %d user(s), session ttl %s", len(creds), cfg.Auth.SessionTTL())

	registry := api.NewRegistry(cfg.Server.Title, verifier.Usernames())
	registry.Register(api.DatasetInfo{Kind: "zones", URL: zones.URL, Records: len(zones.Zones), Dropped: zones.Dropped})
	registry.Register(api.DatasetInfo{Kind: "concessions", URL: points.URL, Records: len(points.Concessions), Dropped: points.Dropped})

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:  registry,
		Dashboard: dashboard,
		Cache:     cacheManager,
		Charts: render.NewCharts(render.ChartConfig{
			PieSize:   cfg.Render.PieSize,
			BarWidth:  cfg.Render.BarWidth,
			BarHeight: cfg.Render.BarHeight,
		}),
		MapView: render.NewMapView(render.MapConfig{
			Width:   cfg.Render.MapWidth,
			Height:  cfg.Render.MapHeight,
			Padding: cfg.Render.MapPadding,
		}),
		Verifier: verifier,
		Sessions: sessions,
		Tokens:   tokens,
		Cookie: api.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.SecureCookie,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
