// Command server runs the millettbooks web application: a book catalog with
// accounts, bookshelves, reviews, and S3-backed cover images.
//
// Usage:
//
//	server                 # production mode, requires S3 env vars
//	server --no-s3         # in-memory S3 for cover images
//	server --test          # shorthand for --no-s3
//	server --addr :9090    # override listen address
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smillett/millettbooks/internal/auth"
	"github.com/smillett/millettbooks/internal/catalog"
	"github.com/smillett/millettbooks/internal/config"
	"github.com/smillett/millettbooks/internal/covers"
	"github.com/smillett/millettbooks/internal/db"
	"github.com/smillett/millettbooks/internal/obs"
	"github.com/smillett/millettbooks/internal/ratelimit"
	"github.com/smillett/millettbooks/internal/web"
)

const (
	coverBucketName        = "millettbooks-covers"
	sessionCleanupInterval = time.Hour
	shutdownTimeout        = 10 * time.Second
)

func main() {
	noS3, addr := config.ParseFlags()
	cfg := config.MustLoadConfig(noS3, addr)
	cfg.PrintStartupSummary()

	obs.Init()
	log := obs.Pkg("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db.DataDirectory = cfg.DataDir
	catalogDB, err := db.OpenCatalogDB()
	if err != nil {
		log.Error("failed to open catalog database", "error", err)
		os.Exit(1)
	}
	defer db.CloseAll()

	// Cover storage
	coverStore, coverShutdown, err := openCoverStore(ctx, cfg)
	if err != nil {
		log.Error("failed to set up cover storage", "error", err)
		os.Exit(1)
	}
	defer coverShutdown()

	// Services
	users := auth.NewUserService(catalogDB)
	sessions := auth.NewSessionService(catalogDB, users, cfg.RequireSecureCookies())
	sessions.SetDurations(cfg.SessionDuration, cfg.RememberedDuration)
	books := catalog.NewService(catalogDB)

	renderer, err := web.NewRenderer(cfg.TemplatesDir)
	if err != nil {
		log.Error("failed to load templates", "error", err, "dir", cfg.TemplatesDir)
		os.Exit(1)
	}

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	// Routes
	mux := http.NewServeMux()
	web.NewWebHandler(renderer, books, coverStore, cfg.BaseURL).
		RegisterRoutes(mux, auth.NewMiddleware(sessions))
	auth.NewHandler(users, sessions).
		RegisterRoutes(mux, ratelimit.Middleware(limiter, ratelimit.TierAuth))

	var handler http.Handler = mux
	handler = ratelimit.Middleware(limiter, ratelimit.TierBrowse)(handler)
	handler = obs.AccessLogMiddleware("server", handler)
	handler = obs.RequestContextMiddleware(handler)

	// Expired sessions accumulate otherwise; cookies alone do not bound the
	// table because browsers are free to drop them without telling us.
	go sessionCleanupLoop(ctx, sessions)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("server stopped")
}

// openCoverStore returns the configured S3-backed store, or an in-process
// fake when --no-s3 is set. The returned shutdown func is a no-op for the
// real store.
func openCoverStore(ctx context.Context, cfg *config.Config) (*covers.Store, func(), error) {
	if cfg.NoS3 {
		return covers.NewInMemory(ctx, coverBucketName)
	}

	store, err := covers.New(ctx, covers.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.AWSBucketName,
		PublicURL:       cfg.AWSPublicURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func sessionCleanupLoop(ctx context.Context, sessions *auth.SessionService) {
	log := obs.Pkg("main")
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.Cleanup(ctx); err != nil {
				log.Error("session cleanup failed", "error", err)
			}
		}
	}
}
