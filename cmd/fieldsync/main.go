package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitechron/fieldsync/internal/config"
	"github.com/sitechron/fieldsync/internal/handlers"
	custommw "github.com/sitechron/fieldsync/internal/middleware"
	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/outbox"
	"github.com/sitechron/fieldsync/internal/remote"
	"github.com/sitechron/fieldsync/internal/services"
	"github.com/sitechron/fieldsync/internal/store"
	"github.com/sitechron/fieldsync/internal/syncer"
	"github.com/sitechron/fieldsync/internal/tracker"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.UserID == "" {
		log.Fatal("USER_ID is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("fieldsync-agent", serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	if err := observability.InitAgentMetrics(); err != nil {
		log.Printf("Warning: agent metrics unavailable: %v", err)
	}

	// Local durable store
	localStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer localStore.Close()

	// Remote system of record
	var remoteStore remote.Store
	if cfg.UsePostgres() {
		log.Println("Using direct crew database connection")
		pg, err := remote.NewPostgresStore(cfg.RemoteDatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to crew database: %v", err)
		}
		defer pg.Close()
		remoteStore = pg
	} else {
		log.Printf("Using crew server API at %s", cfg.Remote.BaseURL)
		remoteStore = remote.NewHTTPStore(remote.HTTPConfig{
			BaseURL:        cfg.Remote.BaseURL,
			RequestTimeout: time.Duration(cfg.Remote.RequestTimeoutSecs) * time.Second,
			TokenURL:       cfg.Remote.TokenURL,
			ClientID:       cfg.Remote.ClientID,
			ClientSecret:   cfg.Remote.ClientSecret,
		})
	}

	// Event fan-out to UI clients
	hub := services.NewEventHub()
	go hub.Run()

	// Connectivity monitoring
	monitor := syncer.NewMonitor(
		syncer.ProberFunc(remoteStore.Ping),
		syncer.MonitorConfig{
			ProbeInterval: cfg.Sync.ProbeInterval(),
			Debounce:      cfg.Sync.Debounce(),
		},
		hub,
	)

	// Sync pipeline
	ob := outbox.New(localStore, outbox.Config{
		AttemptCap:          cfg.Sync.AttemptCap,
		DeadLetterRetention: cfg.Sync.DeadLetterRetention,
	})
	status := syncer.NewStatusTracker(ob, localStore, hub)
	if err := status.Load(ctx); err != nil {
		log.Fatalf("Failed to load sync status: %v", err)
	}
	writer := syncer.NewWriter(ob, remoteStore, monitor.Online, status)
	reconciler := syncer.NewReconciler(ob, remoteStore, status, monitor.Online, syncer.ReconcilerConfig{
		SyncInterval: cfg.Sync.SyncInterval(),
	})

	// Time tracking
	location := tracker.NewPushProvider(time.Duration(cfg.Tracking.LocationMaxAgeSecs) * time.Second)
	machine := tracker.NewMachine(cfg.UserID, tracker.Deps{
		Store:    localStore,
		Writer:   writer,
		Remote:   remoteStore,
		Location: location,
		Sites:    tracker.NewStaticSites(cfg.Sites),
		Online:   monitor.Online,
		Events:   hub,
	})
	if err := machine.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover tracker state: %v", err)
	}

	// Background loops
	transitions := make(chan bool, 1)
	monitor.Notify(transitions)
	go monitor.Run(ctx)
	go reconciler.Run(ctx, transitions)
	go machine.RunTicker(ctx)

	// Handlers
	trackerHandler := handlers.NewTrackerHandler(machine, location)
	captureHandler := handlers.NewCaptureHandler(writer)
	syncHandler := handlers.NewSyncHandler(status, reconciler, ob)
	healthHandler := handlers.NewHealthHandler(monitor.Online)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Router
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware("fieldsync-agent"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	} else {
		log.Printf("Warning: HTTP metrics unavailable: %v", err)
	}
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKeyHash, cfg.Security.APIKeyHeader))

	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/ws", wsHandler.HandleConnection)

	r.Route("/api", func(r chi.Router) {
		r.Route("/tracker", func(r chi.Router) {
			r.Post("/start", trackerHandler.Start)
			r.Post("/break", trackerHandler.ToggleBreak)
			r.Post("/stop", trackerHandler.Stop)
			r.Get("/active", trackerHandler.Active)
		})
		r.Post("/location", trackerHandler.ReportLocation)
		r.Post("/incidents", captureHandler.CaptureIncident)
		r.Post("/equipment", captureHandler.CaptureEquipment)
		r.Post("/deliveries", captureHandler.CaptureDelivery)
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", syncHandler.Status)
			r.Post("/run", syncHandler.Run)
			r.Get("/dead-letter", syncHandler.DeadLetters)
			r.Post("/dead-letter/{id}/retry", syncHandler.RetryDeadLetter)
		})
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Manual sync runs can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("FieldSync agent starting on %s", cfg.ServerAddress)
		log.Printf("Local store: %s", cfg.DatabasePath)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Telemetry shutdown: %v", err)
	}

	log.Println("Agent stopped")
}
