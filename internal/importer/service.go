package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/db"
	"github.com/noah-isme/pcquote-api/internal/lock"
	"github.com/noah-isme/pcquote-api/internal/obs"
)

// Input formats reported on the import metric.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

const lockKey = "catalog:import"

type store interface {
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

type productCatalog interface {
	ListProducts(ctx context.Context, params catalog.ListParams) ([]catalog.Product, error)
	InvalidateCache(ctx context.Context)
}

// Service replaces the catalog from bulk input and exports it.
type Service struct {
	store   store
	locker  locker
	catalog productCatalog
	lockTTL time.Duration
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies. Locker may be nil on a single
// instance.
type ServiceConfig struct {
	Store   store
	Locker  locker
	Catalog productCatalog
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("importer: store is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("importer: catalog is required")
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{store: cfg.Store, locker: cfg.Locker, catalog: cfg.Catalog, lockTTL: ttl, logger: cfg.Logger}, nil
}

// Result summarises a finished import.
type Result struct {
	Imported int   `json:"imported"`
	Replaced int64 `json:"replaced"`
}

// Import validates every row and, only if all are valid, replaces the whole
// catalog with them in one transaction.
func (s *Service) Import(ctx context.Context, format string, rows []RawRow) (Result, error) {
	if len(rows) == 0 {
		obs.IncCatalogImport(format, "invalid")
		return Result{}, common.Validation("products", "no rows to import")
	}
	records, problems := Parse(rows)
	if len(problems) > 0 {
		obs.IncCatalogImport(format, "invalid")
		return Result{}, &common.AppError{
			Code:       common.CodeValidation,
			Message:    fmt.Sprintf("%d row errors, nothing was imported", len(problems)),
			HTTPStatus: http.StatusBadRequest,
			Details:    map[string]any{"errors": problems},
		}
	}

	var res Result
	run := func(ctx context.Context) error {
		return s.store.InTx(ctx, func(q db.Querier) error {
			removed, err := q.DeleteAllProducts(ctx)
			if err != nil {
				return fmt.Errorf("clear catalog: %w", err)
			}
			for _, rec := range records {
				if _, err := q.CreateProduct(ctx, db.CreateProductParams{
					Category: rec.Category.String(),
					Name:     rec.Name,
					Price:    db.Numeric(rec.Price),
				}); err != nil {
					return fmt.Errorf("insert %q: %w", rec.Name, err)
				}
			}
			res = Result{Imported: len(records), Replaced: removed}
			return nil
		})
	}
	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, lockKey, s.lockTTL, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		obs.IncCatalogImport(format, "failed")
		s.logger.Error().Err(err).Str("format", format).Msg("catalog_import_failed")
		switch {
		case errors.Is(err, lock.ErrBusy):
			return Result{}, common.Conflict("another catalog import is running", nil)
		case db.IsUnavailable(err):
			return Result{}, common.Unavailable("catalog store unavailable", err)
		}
		return Result{}, err
	}

	s.catalog.InvalidateCache(ctx)
	obs.IncCatalogImport(format, "success")
	s.logger.Info().Str("format", format).Int("imported", res.Imported).Int64("replaced", res.Replaced).Msg("catalog_imported")
	return res, nil
}

// ImportXLSX reads a workbook and imports it.
func (s *Service) ImportXLSX(ctx context.Context, r io.Reader) (Result, error) {
	rows, err := ReadXLSX(r)
	if err != nil {
		obs.IncCatalogImport(FormatXLSX, "invalid")
		return Result{}, err
	}
	return s.Import(ctx, FormatXLSX, rows)
}

// Export writes the current catalog as a workbook.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	products, err := s.catalog.ListProducts(ctx, catalog.ListParams{})
	if err != nil {
		return err
	}
	return WriteXLSX(w, products)
}
