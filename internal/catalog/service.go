package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/cache"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/db"
)

type queryProvider interface {
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	GetProductByID(ctx context.Context, id int64) (db.Product, error)
	ListProductsByIDs(ctx context.Context, ids []int64) ([]db.Product, error)
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	UpdateProduct(ctx context.Context, arg db.UpdateProductParams) (db.Product, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)
	ListPackageNamesByProduct(ctx context.Context, productID int64) ([]db.ListPackageNamesByProductRow, error)
}

// conflictNameLimit caps how many package names a delete conflict spells out.
const conflictNameLimit = 3

// Service manages the product catalog.
type Service struct {
	queries queryProvider
	cache   *cache.JSON
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Cache   *cache.JSON
	Logger  zerolog.Logger
}

// ListParams filters the product list. A nil Category matches every category.
type ListParams struct {
	Category *Category
	Search   string
}

func (p ListParams) unfiltered() bool {
	return p.Category == nil && p.Search == ""
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	return &Service{queries: cfg.Queries, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// ParseListParams normalises raw query values into typed filters.
func ParseListParams(values url.Values) (ListParams, error) {
	var params ListParams
	if raw := strings.TrimSpace(values.Get("category")); raw != "" && raw != "all" {
		category, err := ParseCategory(raw)
		if err != nil {
			return params, common.Validation("category", "category is not recognised")
		}
		params.Category = &category
	}
	params.Search = strings.TrimSpace(values.Get("q"))
	return params, nil
}

// ListProducts returns the products matching params ordered by category and name.
// The unfiltered list is served from cache when available.
func (s *Service) ListProducts(ctx context.Context, params ListParams) ([]Product, error) {
	if params.unfiltered() {
		var cached []Product
		if ok, err := s.cache.Get(ctx, cache.KeyProductList, &cached); err == nil && ok {
			return cached, nil
		}
	}

	arg := db.ListProductsParams{}
	if params.Category != nil {
		arg.Category = params.Category.String()
	}
	if params.Search != "" {
		arg.Q = params.Search
	}
	rows, err := s.queries.ListProducts(ctx, arg)
	if err != nil {
		return nil, storeError("list products", err)
	}
	products := s.fromRows(rows)

	if params.unfiltered() {
		if err := s.cache.Set(ctx, cache.KeyProductList, products); err != nil {
			s.logger.Warn().Err(err).Msg("catalog_cache_write_failed")
		}
	}
	return products, nil
}

// GetProduct returns a single product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	row, err := s.queries.GetProductByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return Product{}, common.NotFound("product not found", err)
		}
		return Product{}, storeError("get product", err)
	}
	p, ok := productFromRow(row)
	if !ok {
		return Product{}, fmt.Errorf("product %d has unknown category %q", row.ID, row.Category)
	}
	return p, nil
}

// ProductsByID loads the given products keyed by id. Ids that no longer exist
// are simply absent from the result.
func (s *Service) ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.queries.ListProductsByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, storeError("load products", err)
	}
	for _, p := range s.fromRows(rows) {
		out[p.ID] = p
	}
	return out, nil
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	category, err := ParseCategory(in.Category)
	if err != nil {
		return Product{}, common.Validation("category", "category is not recognised")
	}
	if in.Price.IsNegative() {
		return Product{}, common.Validation("price", "price must not be negative")
	}
	row, err := s.queries.CreateProduct(ctx, db.CreateProductParams{
		Category: category.String(),
		Name:     in.Name,
		Price:    db.Numeric(*in.Price),
	})
	if err != nil {
		return Product{}, storeError("create product", err)
	}
	s.InvalidateCache(ctx)
	p, _ := productFromRow(row)
	return p, nil
}

// UpdateProduct replaces a product's name and price.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductUpdate) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	if in.Price.IsNegative() {
		return Product{}, common.Validation("price", "price must not be negative")
	}
	row, err := s.queries.UpdateProduct(ctx, db.UpdateProductParams{
		ID:    id,
		Name:  in.Name,
		Price: db.Numeric(*in.Price),
	})
	if err != nil {
		if db.IsNotFound(err) {
			return Product{}, common.NotFound("product not found", err)
		}
		return Product{}, storeError("update product", err)
	}
	s.InvalidateCache(ctx)
	p, _ := productFromRow(row)
	return p, nil
}

// DeleteProduct removes a product unless a package still references it.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	users, err := s.queries.ListPackageNamesByProduct(ctx, id)
	if err != nil {
		return storeError("check product usage", err)
	}
	if len(users) > 0 {
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Name)
		}
		return common.Conflict(inUseMessage(names), map[string]any{
			"usedByPackages": len(users),
			"packages":       names,
		})
	}
	affected, err := s.queries.DeleteProduct(ctx, id)
	if err != nil {
		return storeError("delete product", err)
	}
	if affected == 0 {
		return common.NotFound("product not found", nil)
	}
	s.InvalidateCache(ctx)
	return nil
}

// InvalidateCache drops the cached product list.
func (s *Service) InvalidateCache(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.KeyProductList); err != nil {
		s.logger.Warn().Err(err).Msg("catalog_cache_invalidate_failed")
	}
}

func (s *Service) fromRows(rows []db.Product) []Product {
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		p, ok := productFromRow(row)
		if !ok {
			s.logger.Warn().Int64("product_id", row.ID).Str("category", row.Category).Msg("catalog_unknown_category")
			continue
		}
		products = append(products, p)
	}
	return products
}

func inUseMessage(names []string) string {
	shown := names
	if len(shown) > conflictNameLimit {
		shown = shown[:conflictNameLimit]
	}
	msg := "product is used by packages: " + strings.Join(shown, ", ")
	if rest := len(names) - len(shown); rest > 0 {
		msg += fmt.Sprintf(" and %d more", rest)
	}
	return msg
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func storeError(op string, err error) error {
	if db.IsUnavailable(err) {
		return common.Unavailable("catalog store unavailable", fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
