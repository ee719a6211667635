package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/smartcity/saferoute/internal/config"
	"github.com/smartcity/saferoute/internal/delivery/http"
	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/safety"
	"github.com/smartcity/saferoute/internal/service"
	"github.com/smartcity/saferoute/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

// services is the wired application stack shared by serve and route
type services struct {
	repo      domain.IncidentRepository
	cache     *service.IncidentCache
	routes    *service.RouteService
	incidents *service.IncidentService
	geocoder  *service.GeocodeService
	close     func()
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	repo, closeStore, err := openStore(ctx, cfg, false)
	if err != nil {
		return nil, err
	}

	cache := service.NewIncidentCache(repo, cfg.IncidentCacheTTL)
	cache.SetRefreshTimeout(cfg.ProviderTimeout)
	provider := service.NewOSRMProvider(cfg.OSRMURL, cfg.ProviderTimeout, cfg.ProviderRetries)

	scoring := safety.DefaultScoringConfig()
	scoring.RadiusUnitKm = cfg.ZoneRadiusUnitKm
	routes := service.NewRouteService(cache, provider, cfg.SearchRadii, cfg.Alternatives)
	routes.SetScoringConfig(scoring)

	geocoder, err := service.NewGeocodeService(cfg.MapsAPIKey, cfg.NominatimURL, cfg.ProviderTimeout)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &services{
		repo:      repo,
		cache:     cache,
		routes:    routes,
		incidents: service.NewIncidentService(repo, cache),
		geocoder:  geocoder,
		close:     closeStore,
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownTelemetry := telemetry.Init(ctx, serviceName, cfg.OTELEndpoint)
	defer telemetry.Flush(context.Background(), shutdownTelemetry)

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.cache.Refresh(ctx); err != nil {
		slog.Warn("initial incident load failed", "error", err)
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.IncidentRefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout)
		defer cancel()
		if err := svc.cache.Refresh(refreshCtx); err != nil {
			slog.Warn("scheduled incident refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron: invalid incident_refresh_cron %q: %w", cfg.IncidentRefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	handler := http.NewHandler(svc.routes, svc.incidents, svc.geocoder, version)
	app := http.NewApp(handler, true)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.IncidentStore)
		if err := app.Listen(":" + cfg.Port); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server exited gracefully")
	return nil
}
