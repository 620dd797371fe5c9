package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eric-nguyen545/runningTunes/internal/api"
	"github.com/eric-nguyen545/runningTunes/internal/auth"
	"github.com/eric-nguyen545/runningTunes/internal/config"
	"github.com/eric-nguyen545/runningTunes/internal/credentials"
	"github.com/eric-nguyen545/runningTunes/internal/domain"
	persistence "github.com/eric-nguyen545/runningTunes/internal/persistence/postgres"
	"github.com/eric-nguyen545/runningTunes/internal/strava"
	httptransport "github.com/eric-nguyen545/runningTunes/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := persistence.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	repo := persistence.NewRepository(pool)
	stravaClient := strava.NewClient(cfg.StravaBaseURL, cfg.StravaClientID, cfg.StravaClientSecret)
	resolver := credentials.NewResolver(repo, stravaClient)
	engine := domain.NewEngine(repo, repo, resolver, stravaClient, stravaClient)

	handler := api.NewHandler(engine, repo, repo, resolver, stravaClient, api.HandlerConfig{
		VerifyToken:   cfg.StravaVerifyToken,
		RunsPageSize:  cfg.RecentRunsPageSize,
		RunsWithSongs: cfg.RecentRunsWithSongs,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.PublicPaths)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("runningtunes api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
