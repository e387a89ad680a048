package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/auth"
	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/cache"
	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/config"
	"github.com/noah-isme/pcquote-api/internal/importer"
	"github.com/noah-isme/pcquote-api/internal/jobs"
	"github.com/noah-isme/pcquote-api/internal/lock"
	"github.com/noah-isme/pcquote-api/internal/pricing"
	"github.com/noah-isme/pcquote-api/internal/quote"
	"github.com/noah-isme/pcquote-api/internal/resilience"
)

// lockMaxWait bounds how long an admin request waits behind another import.
const lockMaxWait = 5 * time.Second

// Services are the domain services built on top of Dependencies.
type Services struct {
	Money    common.MoneyFormat
	Locker   lock.Locker
	Catalog  *catalog.Service
	Pricing  *pricing.Service
	Packages *bundle.Service
	Quotes   *quote.Service
	Importer *importer.Service
	Enqueuer jobs.Enqueuer
}

// NewServices wires the domain services. The auth service is built separately
// by the API because the worker never needs it.
func NewServices(cfg *config.Config, deps *Dependencies, logger zerolog.Logger) (*Services, error) {
	money := common.MoneyFormat{Symbol: cfg.CurrencySymbol}
	locker := lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: lockMaxWait}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Queries: deps.Store,
		Cache:   cache.New(deps.Redis, cfg.CatalogCacheTTL),
		Logger:  logger.With().Str("module", "catalog").Logger(),
	})
	if err != nil {
		return nil, err
	}
	pricingSvc, err := pricing.NewService(pricing.ServiceConfig{
		Queries: deps.Store,
		Cache:   cache.New(deps.Redis, cfg.PricingCacheTTL),
		Logger:  logger.With().Str("module", "pricing").Logger(),
	})
	if err != nil {
		return nil, err
	}
	packageSvc, err := bundle.NewService(bundle.ServiceConfig{
		Store:    deps.Store,
		Products: catalogSvc,
		Rules:    pricingSvc,
		Breaker: resilience.New(resilience.Settings{
			Name:     "packages_store",
			OpenFor:  30 * time.Second,
			Interval: time.Minute,
			Logger:   &logger,
		}),
		Logger: logger.With().Str("module", "bundle").Logger(),
	})
	if err != nil {
		return nil, err
	}
	quoteSvc, err := quote.NewService(quote.ServiceConfig{
		Sessions: quote.SessionStore{R: deps.Redis, TTL: cfg.QuoteSessionTTL},
		Products: catalogSvc,
		Packages: packageSvc,
		Rules:    pricingSvc,
		Money:    money,
		Logger:   logger.With().Str("module", "quote").Logger(),
	})
	if err != nil {
		return nil, err
	}
	importSvc, err := importer.NewService(importer.ServiceConfig{
		Store:   deps.Store,
		Locker:  locker,
		Catalog: catalogSvc,
		LockTTL: cfg.ImportLockTTL,
		Logger:  logger.With().Str("module", "importer").Logger(),
	})
	if err != nil {
		return nil, err
	}

	return &Services{
		Money:    money,
		Locker:   locker,
		Catalog:  catalogSvc,
		Pricing:  pricingSvc,
		Packages: packageSvc,
		Quotes:   quoteSvc,
		Importer: importSvc,
		Enqueuer: jobs.Enqueuer{Client: deps.TaskClient},
	}, nil
}

// NewAuth builds the admin auth service. A plain ADMIN_PASSWORD is hashed at
// startup when no ADMIN_PASSWORD_HASH is configured.
func NewAuth(cfg *config.Config) (*auth.Service, error) {
	hash := cfg.AdminPasswordHash
	if hash == "" {
		var err error
		hash, err = auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
	}
	return auth.NewService(auth.Config{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Secret:       cfg.JWTSecret,
		TokenTTL:     cfg.AdminTokenTTL,
	})
}
