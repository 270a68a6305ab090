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

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/app"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/auth"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/authpw"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/blob"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/commentstore"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/config"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/email"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/quotes"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/search"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/store"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/textindex"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	deps := app.Deps{DefaultRole: cfg.DefaultRole}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		dataStore := store.NewPostgresStore(db)
		deps.Baseline = dataStore
		deps.Sources = append(deps.Sources, dataStore)
		deps.Quotes = quotes.New(quotes.WithRepository(dataStore))
	} else {
		log.Printf("DATABASE_URL not set; running without a shared baseline")
	}

	if strings.TrimSpace(cfg.FixturesPath) != "" {
		deps.Sources = append(deps.Sources, commentstore.FixtureSource{Path: cfg.FixturesPath})
	}

	blobs, closeBlobs := openBlobStore(ctx, cfg)
	defer closeBlobs()
	deps.Persister = commentstore.NewPersister(blobs, cfg.PersistKey, cfg.PersistKeepPerEntity)

	engine := search.NewEngine(search.DefaultConfig())
	localIndex, err := search.NewIndex(engine, cfg.SearchCacheSize)
	if err != nil {
		log.Fatalf("search index: %v", err)
	}
	picker, err := search.NewIndex(engine, cfg.SearchCacheSize)
	if err != nil {
		log.Fatalf("picker index: %v", err)
	}
	deps.Picker = picker

	var meiliClient *textindex.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = textindex.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := textindex.NewService(meiliClient, textindex.NewLocal(localIndex))
	defer searchService.Close()
	deps.Search = searchService

	if strings.TrimSpace(cfg.AuthSecret) != "" {
		deps.Issuer = auth.NewIssuer(cfg.AuthSecret, cfg.TokenTTL)
	} else {
		log.Printf("AUTH_SECRET not set; trusting X-User-ID with role %s", cfg.DefaultRole)
	}
	if strings.TrimSpace(cfg.UsersFile) != "" {
		directory, err := authpw.LoadDirectory(cfg.UsersFile)
		if err != nil {
			log.Fatalf("users directory: %v", err)
		}
		deps.Directory = directory
		log.Printf("Loaded %d users from %s", len(directory.IDs()), cfg.UsersFile)
	}
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		deps.Mail = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: "Comments",
			BaseURL:  cfg.PublicURL,
		})
	}

	service, err := app.New(deps)
	if err != nil {
		log.Fatalf("service setup failed: %v", err)
	}
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Comments API listening on %s", cfg.Addr)
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
	if err := service.Save(shutdownCtx); err != nil {
		log.Printf("final save failed: %v", err)
	}
}

// openBlobStore picks the persistence backend for locally layered comments.
func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, func()) {
	switch cfg.PersistBackend {
	case "redis":
		log.Printf("Persisting comments in Redis")
		redisStore, err := blob.NewRedisStore(cfg.RedisURL, cfg.PersistMaxBytes)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		return redisStore, func() { _ = redisStore.Close() }
	case "s3":
		log.Printf("Persisting comments in bucket %s", cfg.S3Bucket)
		objectStore, err := blob.NewObjectStore(ctx, blob.ObjectStoreConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			MaxBytes:  cfg.PersistMaxBytes,
		})
		if err != nil {
			log.Fatalf("object storage setup failed: %v", err)
		}
		return objectStore, func() {}
	case "memory", "":
		log.Printf("Persisting comments in memory")
		return blob.NewMemoryStore(cfg.PersistMaxBytes), func() {}
	default:
		log.Fatalf("unknown PERSIST_BACKEND %q (want memory, redis or s3)", cfg.PersistBackend)
		return nil, nil
	}
}
