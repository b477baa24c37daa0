package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetcmd/internal/api"
	"fleetcmd/internal/config"
	"fleetcmd/internal/logger"
	"fleetcmd/internal/metrics"
)

func main() {
	log := logger.New("api")

	cfgPath := os.Getenv("FLEET_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	srv, err := api.NewServer(*cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init server")
	}

	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Fleet entities
	mux.HandleFunc("/api/vehicles", srv.VehiclesHandler)
	mux.HandleFunc("/api/vehicles/", srv.VehicleByIDHandler)
	mux.HandleFunc("/api/drivers", srv.DriversHandler)
	mux.HandleFunc("/api/drivers/", srv.DriverByIDHandler)

	// Trips: create/list plus lifecycle actions and the event stream
	mux.HandleFunc("/api/trips", srv.TripsHandler)
	mux.HandleFunc("/api/trips/", srv.TripByIDHandler) // includes /start, /complete, /cancel, /events/stream

	// Maintenance
	mux.HandleFunc("/api/maintenance", srv.MaintenanceHandler)
	mux.HandleFunc("/api/maintenance/", srv.MaintenanceByIDHandler) // includes /close

	// Webhook subscriptions
	mux.HandleFunc("/api/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/api/subscriptions/", srv.SubscriptionByIDHandler)

	// WebSocket event feed
	mux.HandleFunc("/api/ws", srv.WSHandler)

	// Health and introspection
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/api/version", srv.VersionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// API docs
	mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
	mux.HandleFunc("/docs", srv.DocsHandler)
	mux.HandleFunc("/swagger", srv.SwaggerHandler)

	rl := api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	handler := srv.LogMiddleware(rl.Middleware(mux))

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srv.NewWebhookWorker()
	worker.Start()

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	close(worker.Stop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}
