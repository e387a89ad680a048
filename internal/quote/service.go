package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/obs"
	"github.com/noah-isme/pcquote-api/internal/pricing"
)

// Row sources reported on the quote computation metric.
const (
	SourceStateless = "stateless"
	SourceSession   = "session"
	SourcePackage   = "package"
)

type productLookup interface {
	ProductsByID(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

type packageSource interface {
	Get(ctx context.Context, id int64) (bundle.Package, error)
}

type ruleSource interface {
	CurrentRule(ctx context.Context) *pricing.Rule
}

type sessionStore interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, id string, expected int64, fn func(*Session) error) (Session, error)
}

// Service builds and prices quotes.
type Service struct {
	sessions sessionStore
	products productLookup
	packages packageSource
	rules    ruleSource
	money    common.MoneyFormat
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies. Sessions may be nil when only
// stateless pricing is served.
type ServiceConfig struct {
	Sessions sessionStore
	Products productLookup
	Packages packageSource
	Rules    ruleSource
	Money    common.MoneyFormat
	Logger   zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Products == nil {
		return nil, errors.New("quote: product lookup is required")
	}
	if cfg.Packages == nil {
		return nil, errors.New("quote: package source is required")
	}
	return &Service{
		sessions: cfg.Sessions,
		products: cfg.Products,
		packages: cfg.Packages,
		rules:    cfg.Rules,
		money:    cfg.Money,
		logger:   cfg.Logger,
	}, nil
}

// View is a session together with its current prices.
type View struct {
	Session
	Summary Summary `json:"summary"`
}

// RowInput is a row submitted for stateless pricing. Category is a pointer
// so a missing category is told apart from cpu, the zero Category.
type RowInput struct {
	ID          string            `json:"id"`
	Category    *catalog.Category `json:"category" validate:"required"`
	ProductID   int64             `json:"productId"`
	Quantity    int               `json:"quantity"`
	CustomName  *string           `json:"customName,omitempty"`
	CustomPrice *decimal.Decimal  `json:"customPrice,omitempty"`
}

// PriceInput is an ad-hoc row list to price.
type PriceInput struct {
	Rows            []RowInput       `json:"rows" validate:"required,min=1,dive"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice"`
}

// Price prices a row list without storing it. Quantities below one are
// raised to one; duplicate row ids and negative custom prices are rejected.
func (s *Service) Price(ctx context.Context, in PriceInput) (Summary, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Summary{}, err
	}
	rows, err := normalizeRows(in.Rows)
	if err != nil {
		return Summary{}, err
	}
	sum, err := s.price(ctx, rows, in.DiscountedPrice)
	if err != nil {
		return Summary{}, err
	}
	obs.IncQuoteComputation(SourceStateless)
	return sum, nil
}

// PackageQuote projects a stored package into rows and prices them against
// the live catalog and current rule, unlike the package's stored total.
func (s *Service) PackageQuote(ctx context.Context, packageID int64) (Summary, error) {
	pkg, err := s.packages.Get(ctx, packageID)
	if err != nil {
		return Summary{}, err
	}
	sum, err := s.price(ctx, ProjectPackageToRows(pkg, catalog.Categories()), nil)
	if err != nil {
		return Summary{}, err
	}
	obs.IncQuoteComputation(SourcePackage)
	return sum, nil
}

// CreateInput starts a session, optionally from a package.
type CreateInput struct {
	PackageID *int64 `json:"packageId"`
}

// Create starts a quote session with one row per category, or with the rows
// of the given package.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	if err := s.sessionsReady(); err != nil {
		return View{}, err
	}
	sess := Session{ID: uuid.NewString()}
	if in.PackageID != nil {
		pkg, err := s.packages.Get(ctx, *in.PackageID)
		if err != nil {
			return View{}, err
		}
		sess.PackageID = &pkg.ID
		sess.Rows = ProjectPackageToRows(pkg, catalog.Categories())
	} else {
		sess.Rows = EmptyRows(catalog.Categories())
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return View{}, err
	}
	s.logger.Debug().Str("quote_id", sess.ID).Msg("quote_session_created")
	return s.view(ctx, sess)
}

// Get returns a session with fresh prices.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	if err := s.sessionsReady(); err != nil {
		return View{}, err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, sess)
}

// AddRow appends a row to a multi-select category.
func (s *Service) AddRow(ctx context.Context, id string, category catalog.Category, revision int64) (View, error) {
	return s.mutate(ctx, id, revision, func(sess *Session) error {
		rows, err := AddRow(sess.Rows, category)
		if err != nil {
			return err
		}
		sess.Rows = rows
		return nil
	})
}

// RemoveRow deletes a row. The last row of a category cannot be removed.
func (s *Service) RemoveRow(ctx context.Context, id, rowID string, revision int64) (View, error) {
	return s.mutate(ctx, id, revision, func(sess *Session) error {
		row, ok := findRow(sess.Rows, rowID)
		if !ok {
			return common.NotFound("row not found", nil)
		}
		if CountByCategory(sess.Rows)[row.Category] <= 1 {
			return common.Conflict("cannot remove the last row of a category",
				map[string]string{"category": row.Category.String()})
		}
		sess.Rows, _ = RemoveRow(sess.Rows, rowID)
		return nil
	})
}

// SetFieldInput changes one field of a row.
type SetFieldInput struct {
	Field    Field      `json:"field" validate:"required"`
	Value    FieldValue `json:"value"`
	Revision int64      `json:"revision"`
}

// SetField updates one row field. A product must exist and belong to the
// row's category.
func (s *Service) SetField(ctx context.Context, id, rowID string, in SetFieldInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	var product *catalog.Product
	if in.Field == FieldProductID {
		pid, err := ParseProductID(string(in.Value))
		if err != nil {
			return View{}, err
		}
		if pid > 0 {
			found, err := s.products.ProductsByID(ctx, []int64{pid})
			if err != nil {
				return View{}, err
			}
			p, ok := found[pid]
			if !ok {
				return View{}, common.Validation("product_id", fmt.Sprintf("product %d does not exist", pid))
			}
			product = &p
		}
	}
	return s.mutate(ctx, id, in.Revision, func(sess *Session) error {
		if product != nil {
			row, ok := findRow(sess.Rows, rowID)
			if ok && row.Category != product.Category {
				return common.Validation("product_id",
					fmt.Sprintf("product %d is not a %s part", product.ID, row.Category))
			}
		}
		rows, err := SetField(sess.Rows, rowID, in.Field, string(in.Value))
		if err != nil {
			return err
		}
		sess.Rows = rows
		return nil
	})
}

// SetDiscount records the negotiated price. Nil or zero clears it.
func (s *Service) SetDiscount(ctx context.Context, id string, discounted *decimal.Decimal, revision int64) (View, error) {
	if discounted != nil && discounted.IsNegative() {
		return View{}, common.Validation("discountedPrice", "discountedPrice must not be negative")
	}
	return s.mutate(ctx, id, revision, func(sess *Session) error {
		if discounted == nil || discounted.IsZero() {
			sess.DiscountedPrice = nil
			return nil
		}
		d := *discounted
		sess.DiscountedPrice = &d
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, revision int64, fn func(*Session) error) (View, error) {
	if err := s.sessionsReady(); err != nil {
		return View{}, err
	}
	sess, err := s.sessions.Update(ctx, id, revision, fn)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, sess)
}

func (s *Service) view(ctx context.Context, sess Session) (View, error) {
	sum, err := s.price(ctx, sess.Rows, sess.DiscountedPrice)
	if err != nil {
		return View{}, err
	}
	obs.IncQuoteComputation(SourceSession)
	return View{Session: sess, Summary: sum}, nil
}

func (s *Service) price(ctx context.Context, rows []Row, discounted *decimal.Decimal) (Summary, error) {
	byID, err := s.products.ProductsByID(ctx, productIDs(rows))
	if err != nil {
		return Summary{}, err
	}
	var rule *pricing.Rule
	if s.rules != nil {
		rule = s.rules.CurrentRule(ctx)
	}
	return Price(rows, byID, rule, discounted, s.money), nil
}

func (s *Service) sessionsReady() error {
	if s.sessions == nil {
		return common.Unavailable("quote sessions are not configured", nil)
	}
	return nil
}

func findRow(rows []Row, id string) (Row, bool) {
	for _, r := range rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

func normalizeRows(in []RowInput) ([]Row, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]Row, len(in))
	for i, ri := range in {
		if ri.Category == nil {
			return nil, common.Validation("rows", fmt.Sprintf("row %d has no category", i+1))
		}
		r := Row{
			ID:          strings.TrimSpace(ri.ID),
			Category:    *ri.Category,
			ProductID:   ri.ProductID,
			Quantity:    ri.Quantity,
			CustomName:  ri.CustomName,
			CustomPrice: ri.CustomPrice,
		}
		if r.ID == "" {
			r.ID = RowID(r.Category, i+1)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, common.Validation("rows", fmt.Sprintf("row id %q is repeated", r.ID))
		}
		seen[r.ID] = struct{}{}
		if r.Quantity < 1 {
			r.Quantity = 1
		}
		if r.ProductID < 0 {
			return nil, common.Validation("rows", "productId must not be negative")
		}
		if r.CustomPrice != nil && r.CustomPrice.IsNegative() {
			return nil, common.Validation("rows", "customPrice must not be negative")
		}
		out[i] = r
	}
	return out, nil
}
