package bundle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/obs"
	"github.com/noah-isme/pcquote-api/internal/pricing"
	"github.com/noah-isme/pcquote-api/internal/resilience"
)

type staticRule struct{ rule *pricing.Rule }

func (s staticRule) CurrentRule(context.Context) *pricing.Rule { return s.rule }

func newService(t *testing.T, store *fakeStore, products fakeProducts, rule *pricing.Rule) *bundle.Service {
	t.Helper()
	svc, err := bundle.NewService(bundle.ServiceConfig{Store: store, Products: products, Rules: staticRule{rule}})
	require.NoError(t, err)
	return svc
}

func gamerInput() bundle.Input {
	return bundle.Input{
		Name: "Gamer",
		Items: []bundle.ItemInput{
			{ProductID: 1, Quantity: 1}, // cpu 199.00
			{ProductID: 5, Quantity: 2}, // ram 54.99
			{ProductID: 7, Quantity: 1}, // gpu 299.00
		},
	}
}

func TestCreateStoresBaseTotalAndSnapshots(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, sampleProducts(), nil)

	p, err := svc.Create(context.Background(), gamerInput())
	require.NoError(t, err)
	require.Equal(t, "607.98", p.TotalPrice.StringFixed(2))
	require.Len(t, p.Items, 3)
	require.Equal(t, "ram", p.Items[1].ProductCategory)
	require.Equal(t, "Kingston Fury Beast DDR5 16GB", p.Items[1].ProductName)
	require.Len(t, store.items[p.ID], 3)
}

func TestCreateValidation(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, sampleProducts(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, bundle.Input{Name: "Empty"})
	require.True(t, common.HasCode(err, common.CodeValidation))
	require.Equal(t, "at least one item is required", err.Error())

	_, err = svc.Create(ctx, bundle.Input{Name: " ", Items: []bundle.ItemInput{{ProductID: 1, Quantity: 1}}})
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, err = svc.Create(ctx, bundle.Input{Name: "Zero qty", Items: []bundle.ItemInput{{ProductID: 1, Quantity: 0}}})
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, err = svc.Create(ctx, bundle.Input{Name: "Ghost", Items: []bundle.ItemInput{{ProductID: 999, Quantity: 1}}})
	require.True(t, common.HasCode(err, common.CodeValidation))
	require.Contains(t, err.Error(), "999")

	require.Empty(t, store.packages)
}

func TestCreateRejectsQuantityBeyondColumnRange(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, sampleProducts(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, bundle.Input{Name: "Overflow", Items: []bundle.ItemInput{{ProductID: 1, Quantity: 1<<32 + 1}}})
	require.True(t, common.HasCode(err, common.CodeValidation))
	require.Empty(t, store.packages)
	require.Empty(t, store.items)

	p, err := svc.Create(ctx, bundle.Input{Name: "Bulk", Items: []bundle.ItemInput{{ProductID: 1, Quantity: bundle.MaxQuantity}}})
	require.NoError(t, err)
	require.EqualValues(t, bundle.MaxQuantity, store.items[p.ID][0].Quantity)
	want := decimal.RequireFromString("199").Mul(decimal.NewFromInt(bundle.MaxQuantity))
	require.True(t, want.Equal(p.TotalPrice), p.TotalPrice.String())
}

func TestCreateDeletesParentWhenItemFails(t *testing.T) {
	obs.MustRegisterDomainMetrics("bundle_test", prometheus.NewRegistry())
	before := testutil.ToFloat64(obs.PackageCompensationsTotal.WithLabelValues("deleted"))

	store := newFakeStore()
	store.failItemN = 2
	svc := newService(t, store, sampleProducts(), nil)

	_, err := svc.Create(context.Background(), gamerInput())
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeUnavailable))
	require.Empty(t, store.packages)
	require.Empty(t, store.items)
	require.Equal(t, []int64{1}, store.deleted)
	require.Equal(t, before+1, testutil.ToFloat64(obs.PackageCompensationsTotal.WithLabelValues("deleted")))
}

func TestUpdateReplacesItemsAtomically(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, sampleProducts(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, gamerInput())
	require.NoError(t, err)

	desc := "  upgraded  "
	updated, err := svc.Update(ctx, created.ID, bundle.Input{
		Name:        "Gamer Plus",
		Description: &desc,
		Items:       []bundle.ItemInput{{ProductID: 8, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "Gamer Plus", updated.Name)
	require.Equal(t, "upgraded", *updated.Description)
	require.Equal(t, "499.00", updated.TotalPrice.StringFixed(2))
	require.Len(t, store.items[created.ID], 1)

	store.failItemN = store.itemCalls + 2
	_, err = svc.Update(ctx, created.ID, gamerInput())
	require.Error(t, err)
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Gamer Plus", got.Name)
	require.Len(t, got.Items, 1)

	_, err = svc.Update(ctx, 404, gamerInput())
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestDeleteMissingPackage(t *testing.T) {
	svc := newService(t, newFakeStore(), sampleProducts(), nil)
	err := svc.Delete(context.Background(), 3)
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestListFallsBackToSampleData(t *testing.T) {
	store := newFakeStore()
	store.listErr = errStoreDown
	svc := newService(t, store, sampleProducts(), nil)

	res, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, bundle.SourceFallback, res.Source)
	require.Len(t, res.Packages, len(bundle.SamplePackages()))

	res, err = svc.List(context.Background(), "creator")
	require.NoError(t, err)
	require.Equal(t, bundle.SourceFallback, res.Source)
	require.Len(t, res.Packages, 1)
	require.Equal(t, "Creator Pro", res.Packages[0].Name)
}

func TestListSkipsStoreWhileCircuitOpen(t *testing.T) {
	store := newFakeStore()
	store.listErr = errStoreDown
	breaker := resilience.New(resilience.Settings{MinRequests: 1, OpenFor: time.Minute})
	svc, err := bundle.NewService(bundle.ServiceConfig{Store: store, Products: sampleProducts(), Breaker: breaker})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, bundle.SourceFallback, res.Source)
	require.Equal(t, resilience.Open, breaker.State())

	store.listErr = nil
	res, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, bundle.SourceFallback, res.Source)
	require.Len(t, res.Packages, len(bundle.SamplePackages()))
}

func TestListLive(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, sampleProducts(), nil)
	_, err := svc.Create(context.Background(), gamerInput())
	require.NoError(t, err)

	res, err := svc.List(context.Background(), "gam")
	require.NoError(t, err)
	require.Equal(t, bundle.SourceLive, res.Source)
	require.Len(t, res.Packages, 1)
	require.Len(t, res.Packages[0].Items, 3)
}

func TestViewAppliesCurrentRuleToSnapshots(t *testing.T) {
	rule := &pricing.Rule{UnifiedPricing: true, UnifiedRate: decimal.NewFromInt(10)}
	svc := newService(t, newFakeStore(), sampleProducts(), rule)
	p, err := svc.Create(context.Background(), gamerInput())
	require.NoError(t, err)

	view := svc.View(context.Background(), p)
	require.True(t, p.TotalPrice.Mul(decimal.RequireFromString("1.1")).Equal(view.SalePrice))
	require.Equal(t, "607.98", view.TotalPrice.StringFixed(2))
}

func TestSaleTotalPerCategory(t *testing.T) {
	rule := &pricing.Rule{}
	rule.Rates[catalog.CategoryGPU] = decimal.NewFromInt(20)
	items := []bundle.Item{
		{ProductCategory: "gpu", ProductPrice: decimal.NewFromInt(100), Quantity: 2},
		{ProductCategory: "cpu", ProductPrice: decimal.NewFromInt(50), Quantity: 1},
		{ProductCategory: "fan", ProductPrice: decimal.NewFromInt(10), Quantity: 1},
	}
	require.Equal(t, "300", bundle.SaleTotal(items, rule).String())
	require.Equal(t, "260", bundle.BaseTotal(items).String())
}

func TestRecalculateTotalsRefreshesSnapshots(t *testing.T) {
	store := newFakeStore()
	products := sampleProducts()
	svc := newService(t, store, products, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, gamerInput())
	require.NoError(t, err)
	untouched, err := svc.Create(ctx, bundle.Input{Name: "Just a case", Items: []bundle.ItemInput{{ProductID: 12, Quantity: 1}}})
	require.NoError(t, err)

	gpu := products[7]
	gpu.Price = decimal.NewFromInt(279)
	products[7] = gpu
	delete(products, 1)

	res, err := svc.RecalculateTotals(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Packages)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 1, res.MissingLines)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "587.98", got.TotalPrice.StringFixed(2))
	require.Equal(t, "AMD Ryzen 5 7600", got.Items[0].ProductName)

	same, err := svc.Get(ctx, untouched.ID)
	require.NoError(t, err)
	require.Equal(t, "94.99", same.TotalPrice.StringFixed(2))
}

func TestPackageHandlers(t *testing.T) {
	store := newFakeStore()
	rule := &pricing.Rule{UnifiedPricing: true, UnifiedRate: decimal.NewFromInt(10)}
	svc := newService(t, store, sampleProducts(), rule)
	handler := bundle.NewHandler(bundle.HandlerConfig{Service: svc, Money: common.MoneyFormat{Symbol: "$"}})

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/packages",
		strings.NewReader(`{"name":"Mini","items":[{"productId":12,"quantity":1},{"productId":11,"quantity":1}]}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/packages",
		strings.NewReader(`{"name":"Nothing","items":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []struct {
			Name       string          `json:"name"`
			TotalPrice decimal.Decimal `json:"totalPrice"`
			SalePrice  decimal.Decimal `json:"salePrice"`
			Display    struct {
				TotalPrice string `json:"totalPrice"`
				SalePrice  string `json:"salePrice"`
			} `json:"display"`
		} `json:"data"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "live", resp.Source)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "$194.98", resp.Data[0].Display.TotalPrice)
	require.Equal(t, "$214.48", resp.Data[0].Display.SalePrice)

	store.listErr = errStoreDown
	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "fallback", resp.Source)
}
