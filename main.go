package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamOverlayAPI/handlers"
	"streamOverlayAPI/internal/config"
	"streamOverlayAPI/internal/workers"
	"streamOverlayAPI/middleware"
	"streamOverlayAPI/services"
)

func connectStore(ctx context.Context, cfg *config.Config) (services.OverlayStore, *pgxpool.Pool, string) {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using in-memory overlay storage")
		return services.NewMemoryOverlayStore(), nil, "memory"
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err == nil {
		err = dbPool.Ping(ctx)
	}
	if err != nil {
		log.Printf("Database connection failed: %v", err)
		log.Println("Using in-memory overlay storage as fallback")
		if dbPool != nil {
			dbPool.Close()
		}
		return services.NewMemoryOverlayStore(), nil, "memory"
	}

	store := services.NewPostgresOverlayStore(dbPool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate overlays table:", err)
	}

	log.Println("Successfully connected to Postgres")
	return store, dbPool, "postgres"
}

func main() {
	cfg := config.Load()

	if cfg.AuthEnabled() {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, dbPool, storageKind := connectStore(ctx, cfg)
	cancel()

	if dbPool != nil {
		defer func() {
			log.Println("Closing database connection pool...")
			dbPool.Close()
		}()
	}

	hub := services.NewOverlayHub()
	overlayService := services.NewOverlayService(store)
	overlayService.SetPublisher(hub)

	streamService, err := services.NewStreamService(cfg.StreamsDir, cfg.FFmpegPath, cfg.PublicBaseURL)
	if err != nil {
		log.Fatal("Failed to initialize stream service:", err)
	}

	middleware.InitPrometheus()
	services.InitPrometheus()

	overlayHandler := handlers.NewOverlayHandler(overlayService, hub)
	streamHandler := handlers.NewStreamHandler(streamService)
	healthHandler := handlers.NewHealthHandler(overlayService, streamService, storageKind)
	docHandler := handlers.NewDocHandler(overlayService, streamService)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.CleanupVisitors(bgCtx)
	reaperDone := workers.StartStreamReaper(bgCtx, streamService, cfg.StreamReapInterval)

	r := mux.NewRouter()

	// Watchers and HLS players poll hard; keep them outside the rate limiter.
	r.Handle("/api/overlays/watch", middleware.MonitorMiddleware(http.HandlerFunc(overlayHandler.WatchOverlays))).Methods("GET")
	r.HandleFunc("/streams/{id}/{filename}", streamHandler.ServeStreamFile).Methods("GET")

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(rateLimiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.HandleFunc("/watch/{id}", docHandler.ServeWatchPage).Methods("GET")
	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))

	api := standardRouter.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", healthHandler.HealthCheck).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.RequireAuth(cfg.AuthEnabled()))

	protected.HandleFunc("/stream/start", streamHandler.StartStream).Methods("POST")
	protected.HandleFunc("/stream/test", streamHandler.StartTestStream).Methods("POST")
	protected.HandleFunc("/stream/stop", streamHandler.StopStream).Methods("POST")
	protected.HandleFunc("/stream/status", streamHandler.StreamStatus).Methods("GET")
	protected.HandleFunc("/stream/{id}/stop", streamHandler.StopStream).Methods("POST")
	protected.HandleFunc("/stream/{id}/qr", streamHandler.ShareStream).Methods("GET")

	protected.HandleFunc("/overlays", overlayHandler.ListOverlays).Methods("GET")
	protected.HandleFunc("/overlays", overlayHandler.CreateOverlay).Methods("POST")
	protected.HandleFunc("/overlays/bulk-delete", overlayHandler.BulkDeleteOverlays).Methods("POST")
	protected.HandleFunc("/overlays/{id}", overlayHandler.GetOverlay).Methods("GET")
	protected.HandleFunc("/overlays/{id}", overlayHandler.UpdateOverlay).Methods("PUT")
	protected.HandleFunc("/overlays/{id}", overlayHandler.DeleteOverlay).Methods("DELETE")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins(cfg.CORSOrigins),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting overlay server on port %s (streams in %s)", port, cfg.StreamsDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stopBackground()
	<-reaperDone
	streamService.Shutdown()

	log.Println("Server shutdown complete")
}
