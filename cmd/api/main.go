package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/app"
	"github.com/noah-isme/pcquote-api/internal/auth"
	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/config"
	"github.com/noah-isme/pcquote-api/internal/health"
	"github.com/noah-isme/pcquote-api/internal/importer"
	"github.com/noah-isme/pcquote-api/internal/obs"
	"github.com/noah-isme/pcquote-api/internal/pricing"
	"github.com/noah-isme/pcquote-api/internal/quote"
	"github.com/noah-isme/pcquote-api/internal/ratelimit"
	"github.com/noah-isme/pcquote-api/internal/resilience"
	"github.com/noah-isme/pcquote-api/internal/security"
)

const jsonBodyLimit = 1 << 20

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("version", version).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "pcquote-api",
			ServiceVersion: version,
			Endpoint:       cfg.OTLPEndpoint,
			SamplingRatio:  cfg.TracingSampling,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	meterProvider, shutdownMeter, err := obs.InitMeter(context.Background(), obs.MeterConfig{
		ServiceName:    "pcquote-api",
		ServiceVersion: version,
		Environment:    cfg.AppEnv,
		Namespace:      cfg.MetricsNamespace,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise meter")
	} else {
		defer func() {
			if err := shutdownMeter(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown meter")
			}
		}()
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.Open(startCtx, cfg, app.Options{
		ApplicationName:  "pcquote-api",
		RedisMetrics:     true,
		MeterProvider:    meterProvider,
		MetricsNamespace: cfg.MetricsNamespace,
	}, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	services, err := app.NewServices(cfg, deps, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}
	authService, err := app.NewAuth(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	quoteLimiter := ratelimit.Policy{
		Name:    "quote",
		Limiter: ratelimit.SlidingWindow{Client: deps.Redis, Prefix: "ratelimit:"},
		Limit:   cfg.RateLimitQuotePerMinute,
		Window:  time.Minute,
		OnError: limiterError(logger, "quote"),
	}
	loginStore, err := ratelimit.NewFixedWindow(deps.Redis, "ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login limiter")
	}
	loginLimiter := ratelimit.Policy{
		Name:    "login",
		Limiter: loginStore,
		Limit:   cfg.RateLimitLoginPerMinute,
		Window:  time.Minute,
		OnError: limiterError(logger, "login"),
	}

	h := handlers{
		catalog:  catalog.NewHandler(catalog.HandlerConfig{Service: services.Catalog}),
		pricing:  pricing.NewHandler(pricing.HandlerConfig{Service: services.Pricing}),
		packages: bundle.NewHandler(bundle.HandlerConfig{Service: services.Packages, Money: services.Money, Enqueuer: services.Enqueuer}),
		quotes:   quote.NewHandler(quote.HandlerConfig{Service: services.Quotes}),
		importer: importer.NewHandler(importer.HandlerConfig{Service: services.Importer, MaxBytes: cfg.ImportMaxBytes}),
		auth:     &auth.Handler{Service: authService},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: cfg.IsProduction()}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass, cfg.IsProduction()))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{Pool: deps.DB, Redis: deps.Redis},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	requireAdmin := auth.Middleware{Service: authService}.RequireAdmin
	jsonLimit := security.JSONBody{Max: jsonBodyLimit}.Middleware

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(pub chi.Router) {
			pub.Use(jsonLimit)
			pub.Get("/categories", h.catalog.Categories)
			pub.Get("/products", h.catalog.Products)
			pub.Get("/pricing-rule", h.pricing.Get)
			pub.Get("/packages", h.packages.List)
			pub.Get("/packages/{id}", h.packages.Get)
			pub.Get("/packages/{id}/quote", h.quotes.PackageQuote)

			pub.With(quoteLimiter.Middleware).Post("/quotes/price", h.quotes.Price)
			pub.With(idem.Middleware).Post("/quotes", h.quotes.Create)
			pub.Route("/quotes/{id}", func(q chi.Router) {
				q.Get("/", h.quotes.Get)
				q.Post("/rows", h.quotes.AddRow)
				q.Patch("/rows/{rowId}", h.quotes.SetField)
				q.Delete("/rows/{rowId}", h.quotes.RemoveRow)
				q.Put("/discount", h.quotes.SetDiscount)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.With(jsonLimit, loginLimiter.Middleware).Post("/login", h.auth.Login)

			admin.Group(func(protected chi.Router) {
				protected.Use(requireAdmin)
				// The import handler applies its own, larger limit.
				protected.Post("/catalog/import", h.importer.Import)
				protected.Get("/catalog/export", h.importer.Export)

				protected.Group(func(g chi.Router) {
					g.Use(jsonLimit)
					g.Post("/products", h.catalog.Create)
					g.Put("/products/{id}", h.catalog.Update)
					g.Delete("/products/{id}", h.catalog.Delete)

					g.Put("/pricing-rule", h.pricing.Replace)

					g.With(idem.Middleware).Post("/packages", h.packages.Create)
					g.Post("/packages/recalculate", h.packages.Recalculate)
					g.Put("/packages/{id}", h.packages.Update)
					g.Delete("/packages/{id}", h.packages.Delete)
				})
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("server draining")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("server stopped")
}

type handlers struct {
	catalog  *catalog.Handler
	pricing  *pricing.Handler
	packages *bundle.Handler
	quotes   *quote.Handler
	importer *importer.Handler
	auth     *auth.Handler
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func limiterError(logger zerolog.Logger, policy string) func(error) {
	return func(err error) {
		logger.Warn().Err(err).Str("policy", policy).Msg("rate_limiter_unavailable")
	}
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string, production bool) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		if production {
			return http.NotFoundHandler()
		}
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
