package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/db"
	"github.com/noah-isme/pcquote-api/internal/obs"
	"github.com/noah-isme/pcquote-api/internal/pricing"
	"github.com/noah-isme/pcquote-api/internal/resilience"
)

// Source tags where a package listing came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

type store interface {
	ListPackages(ctx context.Context, arg db.ListPackagesParams) ([]db.Package, error)
	GetPackageByID(ctx context.Context, id int64) (db.Package, error)
	CreatePackage(ctx context.Context, arg db.CreatePackageParams) (db.Package, error)
	DeletePackage(ctx context.Context, id int64) (int64, error)
	ListPackageItems(ctx context.Context, packageIDs []int64) ([]db.PackageItem, error)
	CreatePackageItem(ctx context.Context, arg db.CreatePackageItemParams) (db.PackageItem, error)
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type productLookup interface {
	ProductsByID(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

type ruleSource interface {
	CurrentRule(ctx context.Context) *pricing.Rule
}

// Service manages packages.
type Service struct {
	store    store
	products productLookup
	rules    ruleSource
	breaker  *resilience.Breaker
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies. Breaker, when set, guards the
// listing read so a failing store is skipped until it recovers.
type ServiceConfig struct {
	Store    store
	Products productLookup
	Rules    ruleSource
	Breaker  *resilience.Breaker
	Logger   zerolog.Logger
}

// ListResult is a package listing tagged with its origin.
type ListResult struct {
	Packages []Package
	Source   Source
}

// View is the historical package view: snapshot lines plus the sale price
// those lines come to under the current rule.
type View struct {
	Package
	SalePrice decimal.Decimal `json:"salePrice"`
}

// RecalcResult summarises a total recalculation run.
type RecalcResult struct {
	Packages     int `json:"packages"`
	Updated      int `json:"updated"`
	MissingLines int `json:"missingLines"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("bundle: store is required")
	}
	if cfg.Products == nil {
		return nil, errors.New("bundle: product lookup is required")
	}
	return &Service{store: cfg.Store, products: cfg.Products, rules: cfg.Rules, breaker: cfg.Breaker, logger: cfg.Logger}, nil
}

// List returns packages whose name contains q. When the store fails the
// built-in sample packages are returned instead, tagged SourceFallback.
func (s *Service) List(ctx context.Context, q string) (ListResult, error) {
	q = strings.TrimSpace(q)
	var packages []Package
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		packages, err = s.listLive(ctx, q)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("package_list_fallback")
		obs.IncPackageListFallback()
		return ListResult{Packages: filterSample(q), Source: SourceFallback}, nil
	}
	return ListResult{Packages: packages, Source: SourceLive}, nil
}

func (s *Service) listLive(ctx context.Context, q string) ([]Package, error) {
	arg := db.ListPackagesParams{}
	if q != "" {
		arg.Q = q
	}
	rows, err := s.store.ListPackages(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	if len(rows) == 0 {
		return []Package{}, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	itemRows, err := s.store.ListPackageItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list package items: %w", err)
	}
	byPackage := make(map[int64][]Item, len(rows))
	for _, it := range itemRows {
		byPackage[it.PackageID] = append(byPackage[it.PackageID], itemFromRow(it))
	}
	out := make([]Package, 0, len(rows))
	for _, row := range rows {
		out = append(out, packageFromRow(row, byPackage[row.ID]))
	}
	return out, nil
}

// Get returns a package with its snapshot items.
func (s *Service) Get(ctx context.Context, id int64) (Package, error) {
	row, err := s.store.GetPackageByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return Package{}, common.NotFound("package not found", err)
		}
		return Package{}, storeError("get package", err)
	}
	itemRows, err := s.store.ListPackageItems(ctx, []int64{id})
	if err != nil {
		return Package{}, storeError("list package items", err)
	}
	items := make([]Item, 0, len(itemRows))
	for _, it := range itemRows {
		items = append(items, itemFromRow(it))
	}
	return packageFromRow(row, items), nil
}

// Create stores a package. The parent row is written first and each line
// after it; if any line fails the parent is deleted again.
func (s *Service) Create(ctx context.Context, in Input) (Package, error) {
	name, lines, err := s.prepare(ctx, in)
	if err != nil {
		return Package{}, err
	}
	parent, err := s.store.CreatePackage(ctx, db.CreatePackageParams{
		Name:        name,
		Description: text(in.Description),
		TotalPrice:  db.Numeric(BaseTotal(lines)),
	})
	if err != nil {
		return Package{}, storeError("create package", err)
	}
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		row, err := s.store.CreatePackageItem(ctx, itemParams(parent.ID, line))
		if err != nil {
			s.compensate(ctx, parent.ID, err)
			return Package{}, storeError("create package item", err)
		}
		items = append(items, itemFromRow(row))
	}
	return packageFromRow(parent, items), nil
}

func (s *Service) compensate(ctx context.Context, packageID int64, cause error) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.store.DeletePackage(ctx, packageID); err != nil {
		obs.IncPackageCompensation("failed")
		s.logger.Error().Err(err).AnErr("cause", cause).Int64("package_id", packageID).Msg("package_compensation_failed")
		return
	}
	obs.IncPackageCompensation("deleted")
	s.logger.Warn().AnErr("cause", cause).Int64("package_id", packageID).Msg("package_compensated")
}

// Update replaces a package's fields and lines in one transaction.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Package, error) {
	name, lines, err := s.prepare(ctx, in)
	if err != nil {
		return Package{}, err
	}
	var out Package
	err = s.store.InTx(ctx, func(q db.Querier) error {
		row, err := q.UpdatePackage(ctx, db.UpdatePackageParams{
			ID:          id,
			Name:        name,
			Description: text(in.Description),
			TotalPrice:  db.Numeric(BaseTotal(lines)),
		})
		if err != nil {
			return err
		}
		if err := q.DeletePackageItems(ctx, id); err != nil {
			return err
		}
		items := make([]Item, 0, len(lines))
		for _, line := range lines {
			itemRow, err := q.CreatePackageItem(ctx, itemParams(id, line))
			if err != nil {
				return err
			}
			items = append(items, itemFromRow(itemRow))
		}
		out = packageFromRow(row, items)
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return Package{}, common.NotFound("package not found", err)
		}
		return Package{}, storeError("update package", err)
	}
	return out, nil
}

// Delete removes a package and its lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.store.DeletePackage(ctx, id)
	if err != nil {
		return storeError("delete package", err)
	}
	if affected == 0 {
		return common.NotFound("package not found", nil)
	}
	return nil
}

// RecalculateTotals refreshes every package's line snapshots and total_price
// from the current catalog base prices. Lines whose product no longer exists
// keep their snapshot.
func (s *Service) RecalculateTotals(ctx context.Context) (RecalcResult, error) {
	var res RecalcResult
	packages, err := s.listLive(ctx, "")
	if err != nil {
		obs.IncPackageRecalculation("failed")
		return res, storeError("recalculate totals", err)
	}
	res.Packages = len(packages)
	var ids []int64
	for _, p := range packages {
		for _, it := range p.Items {
			ids = append(ids, it.ProductID)
		}
	}
	products, err := s.products.ProductsByID(ctx, ids)
	if err != nil {
		obs.IncPackageRecalculation("failed")
		return res, err
	}
	for _, p := range packages {
		refreshed := make([]Item, 0, len(p.Items))
		for _, it := range p.Items {
			if prod, ok := products[it.ProductID]; ok {
				it.ProductName = prod.Name
				it.ProductPrice = prod.Price
				it.ProductCategory = prod.Category.String()
			} else {
				res.MissingLines++
			}
			refreshed = append(refreshed, it)
		}
		total := BaseTotal(refreshed)
		if total.Equal(p.TotalPrice) && sameSnapshots(p.Items, refreshed) {
			continue
		}
		err := s.store.InTx(ctx, func(q db.Querier) error {
			if err := q.DeletePackageItems(ctx, p.ID); err != nil {
				return err
			}
			for _, it := range refreshed {
				if _, err := q.CreatePackageItem(ctx, itemParams(p.ID, it)); err != nil {
					return err
				}
			}
			return q.UpdatePackageTotal(ctx, db.UpdatePackageTotalParams{ID: p.ID, TotalPrice: db.Numeric(total)})
		})
		if err != nil {
			obs.IncPackageRecalculation("failed")
			return res, storeError("recalculate package", err)
		}
		res.Updated++
	}
	obs.IncPackageRecalculation("success")
	s.logger.Info().Int("packages", res.Packages).Int("updated", res.Updated).Int("missing_lines", res.MissingLines).Msg("package_totals_recalculated")
	return res, nil
}

// View decorates a package with its price under the current rule.
func (s *Service) View(ctx context.Context, p Package) View {
	var rule *pricing.Rule
	if s.rules != nil {
		rule = s.rules.CurrentRule(ctx)
	}
	return View{Package: p, SalePrice: SaleTotal(p.Items, rule)}
}

// prepare validates in and resolves each line against the catalog.
func (s *Service) prepare(ctx context.Context, in Input) (string, []Item, error) {
	name := strings.TrimSpace(in.Name)
	if len(in.Items) == 0 {
		return "", nil, common.Validation("items", "at least one item is required")
	}
	in.Name = name
	if err := common.ValidateStruct(in); err != nil {
		return "", nil, err
	}
	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.ProductsByID(ctx, ids)
	if err != nil {
		return "", nil, err
	}
	lines := make([]Item, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity > MaxQuantity {
			return "", nil, common.Validation("items", fmt.Sprintf("quantity must not exceed %d", MaxQuantity))
		}
		p, ok := products[it.ProductID]
		if !ok {
			return "", nil, common.Validation("items", fmt.Sprintf("product %d does not exist", it.ProductID))
		}
		lines = append(lines, Item{
			ProductID:       p.ID,
			Quantity:        it.Quantity,
			ProductName:     p.Name,
			ProductPrice:    p.Price,
			ProductCategory: p.Category.String(),
		})
	}
	return name, lines, nil
}

func sameSnapshots(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ProductName != b[i].ProductName || a[i].ProductCategory != b[i].ProductCategory || !a[i].ProductPrice.Equal(b[i].ProductPrice) {
			return false
		}
	}
	return true
}

func itemParams(packageID int64, it Item) db.CreatePackageItemParams {
	return db.CreatePackageItemParams{
		PackageID:       packageID,
		ProductID:       it.ProductID,
		Quantity:        int32(it.Quantity),
		ProductName:     it.ProductName,
		ProductPrice:    db.Numeric(it.ProductPrice),
		ProductCategory: it.ProductCategory,
	}
}

func text(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func storeError(op string, err error) error {
	if common.IsAppError(err) {
		return err
	}
	if db.IsUnavailable(err) {
		return common.Unavailable("package store unavailable", fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
