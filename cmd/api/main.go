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

	"github.com/joho/godotenv"

	"pauta/api/internal/app"
	"pauta/api/internal/config"
	"pauta/api/internal/directory"
	"pauta/api/internal/email"
	"pauta/api/internal/export"
	"pauta/api/internal/media"
	"pauta/api/internal/provider"
	"pauta/api/internal/realtime"
	"pauta/api/internal/revisions"
	"pauta/api/internal/search"
	"pauta/api/internal/session"
	"pauta/api/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Aviso: .env não carregado, usando variáveis de ambiente do sistema")
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		log.Fatalf("failed to create revisions dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	revisionLog := revisions.New(cfg.RevisionsDir)
	exporter := export.NewService(dataStore)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}
	go searchService.ReindexAllFromPG(ctx)

	authClient := provider.New(cfg.AuthURL, cfg.AuthServiceKey)
	dir := directory.Select(ctx, dataStore, authClient)

	deps := app.Deps{
		Store:     dataStore,
		Auth:      authClient,
		Directory: dir,
		Search:    searchService,
		Revisions: revisionLog,
		Exporter:  exporter,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err := session.NewRedisCache(cfg.RedisURL, cfg.IdentityTTL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, identity cache disabled: %v", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
		}
	}

	mailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	deps.Email = mailService
	if !mailService.IsConfigured() {
		log.Printf("SMTP not configured, credential emails disabled")
	}

	if mediaService := media.NewService(ctx, media.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	}); mediaService != nil {
		deps.Media = mediaService
	} else {
		log.Printf("object storage not configured, media uploads disabled")
	}

	hub := realtime.NewHub()
	go hub.Run()
	bridge := realtime.NewBridge(hub, cfg.RedisURL)
	defer bridge.Close()
	deps.Events = bridge

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, hub.ServeWS)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Pauta API listening on %s (env=%s)", cfg.Addr, cfg.Env)
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
