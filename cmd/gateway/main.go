package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/storefront-gateway/internal/api"
	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/checkout"
	"github.com/noah-isme/storefront-gateway/internal/confcache"
	"github.com/noah-isme/storefront-gateway/internal/config"
	"github.com/noah-isme/storefront-gateway/internal/geo"
	"github.com/noah-isme/storefront-gateway/internal/health"
	"github.com/noah-isme/storefront-gateway/internal/obs"
	"github.com/noah-isme/storefront-gateway/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.OTLPEndpoint != ""
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "storefront-gateway",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TraceSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	backendClient := &backend.Client{
		BaseURL: cfg.BackendURL,
		HTTP:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 10 * time.Second},
	}
	geoClient := &geo.Client{
		BaseURL: cfg.GeoBaseURL,
		APIKey:  cfg.GeoAPIKey,
		HTTP:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 10 * time.Second},
	}
	remoteConfig := &confcache.Cache{Source: backendClient, TTL: cfg.ConfigTTL}

	registry := &session.Registry{
		New: func(id string) *session.Session {
			return session.New(id, session.Deps{
				Backend:  backendClient,
				Geo:      geoClient,
				Config:   remoteConfig,
				Fallback: geo.Location{Lat: cfg.StoreOriginLat, Lng: cfg.StoreOriginLng},
				Window:   cfg.DebounceWindow,
				QR:       &checkout.QRBuilder{Config: remoteConfig},
				Logger:   logger,
			})
		},
		TTL:    cfg.SessionIdleTTL,
		Logger: logger,
	}
	go registry.Run(ctx, cfg.SessionSweepEvery)

	httpMetrics := obs.NewHTTPMetrics("storefront", nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{
		Logger: logger,
		SessionID: func(r *http.Request) string {
			return r.Header.Get(backend.SessionHeader)
		},
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", backend.SessionHeader},
		ExposedHeaders:   []string{backend.SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker: health.HTTPChecker{BackendURL: cfg.BackendURL, GeoURL: cfg.GeoBaseURL},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	apiHandler := &api.Handler{Sessions: registry}
	r.Route("/api/v1", apiHandler.Routes)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
