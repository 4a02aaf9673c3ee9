package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"redink/api/internal/app"
	"redink/api/internal/blob"
	"redink/api/internal/config"
	"redink/api/internal/convert"
	"redink/api/internal/search"
	"redink/api/internal/session"
	"redink/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	var blobs blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Using MinIO at %s for document storage", cfg.MinioEndpoint)
		minioStore, err := blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		blobs = minioStore
	} else {
		log.Printf("Using local directory %s for document storage", cfg.UploadsDir)
		localStore, err := blob.NewLocalStore(cfg.UploadsDir)
		if err != nil {
			log.Fatalf("failed to create uploads dir: %v", err)
		}
		blobs = localStore
	}

	converter := convert.New(cfg.SofficeTimeout)

	pgFallback := search.NewPgFallback(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgFallback)
	searchService.ReindexAllFromPG(ctx)

	var sessions *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for anonymous sessions")
		sessions, err = session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer sessions.Close()
	}

	service := app.New(cfg, dataStore, blobs, converter, sessions, searchService)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No read/write timeouts: large uploads and the annotate socket
		// outlive any fixed deadline.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Red Ink API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
