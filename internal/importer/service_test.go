package importer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/db"
	"github.com/noah-isme/pcquote-api/internal/importer"
	"github.com/noah-isme/pcquote-api/internal/lock"
)

// fakeStore keeps products in memory; the embedded Querier is nil so any
// query the importer should not issue panics.
type fakeStore struct {
	db.Querier

	products []db.CreateProductParams
	failOn   string
}

func (f *fakeStore) DeleteAllProducts(context.Context) (int64, error) {
	n := int64(len(f.products))
	f.products = nil
	return n, nil
}

func (f *fakeStore) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	if f.failOn != "" && arg.Name == f.failOn {
		return db.Product{}, errors.New("check constraint violated")
	}
	f.products = append(f.products, arg)
	return db.Product{ID: int64(len(f.products)), Category: arg.Category, Name: arg.Name, Price: arg.Price}, nil
}

func (f *fakeStore) InTx(_ context.Context, fn func(q db.Querier) error) error {
	snapshot := append([]db.CreateProductParams(nil), f.products...)
	if err := fn(f); err != nil {
		f.products = snapshot
		return err
	}
	return nil
}

type fakeCatalog struct {
	products    []catalog.Product
	invalidated int
}

func (f *fakeCatalog) ListProducts(context.Context, catalog.ListParams) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) InvalidateCache(context.Context) { f.invalidated++ }

func seeded() *fakeStore {
	return &fakeStore{products: []db.CreateProductParams{{Category: "cpu", Name: "Old CPU"}}}
}

func newService(t *testing.T, store *fakeStore, cat *fakeCatalog) *importer.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := importer.NewService(importer.ServiceConfig{
		Store:   store,
		Catalog: cat,
		Locker:  lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		LockTTL: time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestImportReplacesCatalog(t *testing.T) {
	store := seeded()
	cat := &fakeCatalog{}
	svc := newService(t, store, cat)

	res, err := svc.Import(context.Background(), importer.FormatJSON, []importer.RawRow{
		{Row: 1, Name: "Ryzen 7 7700", Price: "299.00", Category: "CPU"},
		{Row: 2, Name: "RTX 4070", Price: "549", Category: "gpu"},
	})
	require.NoError(t, err)
	require.Equal(t, importer.Result{Imported: 2, Replaced: 1}, res)
	require.Len(t, store.products, 2)
	require.Equal(t, "cpu", store.products[0].Category)
	require.Equal(t, "549", db.Decimal(store.products[1].Price).String())
	require.Equal(t, 1, cat.invalidated)
}

func TestImportReportsEveryRowError(t *testing.T) {
	store := seeded()
	cat := &fakeCatalog{}
	svc := newService(t, store, cat)

	_, err := svc.Import(context.Background(), importer.FormatJSON, []importer.RawRow{
		{Row: 1, Name: "Fine", Price: "10", Category: "case"},
		{Row: 2, Name: "", Price: "-1", Category: "toaster"},
		{Row: 3, Name: "No price", Category: "psu"},
	})
	require.True(t, common.HasCode(err, common.CodeValidation))

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	problems := appErr.Details.(map[string]any)["errors"].([]importer.RowError)
	require.Len(t, problems, 4)
	require.Equal(t, importer.RowError{Row: 2, Field: "name", Message: "name is required"}, problems[0])
	require.Equal(t, "price", problems[1].Field)
	require.Equal(t, "category", problems[2].Field)
	require.Equal(t, 3, problems[3].Row)

	require.Equal(t, "Old CPU", store.products[0].Name)
	require.Zero(t, cat.invalidated)

	_, err = svc.Import(context.Background(), importer.FormatJSON, nil)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestImportRefusedWhileAnotherRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("catalog:import", "other-instance"))

	store := seeded()
	svc, err := importer.NewService(importer.ServiceConfig{
		Store:   store,
		Catalog: &fakeCatalog{},
		Locker:  lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	_, err = svc.Import(context.Background(), importer.FormatJSON, []importer.RawRow{
		{Row: 1, Name: "Ryzen 7 7700", Price: "299.00", Category: "cpu"},
	})
	require.True(t, common.HasCode(err, common.CodeConflict))
	require.Equal(t, "Old CPU", store.products[0].Name)
}

func TestImportRollsBackOnInsertFailure(t *testing.T) {
	store := seeded()
	store.failOn = "Bad"
	cat := &fakeCatalog{}
	svc := newService(t, store, cat)

	_, err := svc.Import(context.Background(), importer.FormatJSON, []importer.RawRow{
		{Row: 1, Name: "Good", Price: "1", Category: "ram"},
		{Row: 2, Name: "Bad", Price: "2", Category: "ram"},
	})
	require.Error(t, err)
	require.Len(t, store.products, 1)
	require.Equal(t, "Old CPU", store.products[0].Name)
	require.Zero(t, cat.invalidated)
}

func TestXLSXRoundTrip(t *testing.T) {
	products := catalog.SampleProducts()
	var buf bytes.Buffer
	require.NoError(t, importer.WriteXLSX(&buf, products))

	rows, err := importer.ReadXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(products))
	require.Equal(t, 2, rows[0].Row)

	records, problems := importer.Parse(rows)
	require.Empty(t, problems)
	for i, p := range products {
		require.Equal(t, p.Name, records[i].Name)
		require.Equal(t, p.Category, records[i].Category)
		require.True(t, p.Price.Equal(records[i].Price), "price of %s", p.Name)
	}
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSXHeaderAndBlankRows(t *testing.T) {
	data := workbook(t, [][]any{
		{"Category", "Name", "Price"},
		{"storage", "WD Blue 1TB", 54.5},
		{},
		{"cooling", "Noctua NH-D15", "109.90"},
	})
	rows, err := importer.ReadXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, importer.Cell("WD Blue 1TB"), rows[0].Name)
	require.Equal(t, importer.Cell("54.5"), rows[0].Price)
	require.Equal(t, 4, rows[1].Row)

	_, err = importer.ReadXLSX(bytes.NewReader(workbook(t, [][]any{{"name", "cost", "category"}})))
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, err = importer.ReadXLSX(strings.NewReader("not a workbook"))
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestImportHandlerJSONAndMultipart(t *testing.T) {
	store := seeded()
	cat := &fakeCatalog{}
	h := importer.NewHandler(importer.HandlerConfig{Service: newService(t, store, cat)})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/catalog/import",
		strings.NewReader(`{"products":[{"name":"Ryzen 9 7950X","price":549.99,"category":"cpu"}]}`))
	req.Header.Set("Content-Type", "application/json")
	h.Import(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, store.products, 1)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/catalog/import",
		strings.NewReader(`{"products":[{"name":"","price":"x","category":"cpu"}]}`))
	h.Import(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Details struct {
				Errors []importer.RowError `json:"errors"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Error.Details.Errors, 2)
	require.Equal(t, 1, body.Error.Details.Errors[0].Row)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "catalog.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook(t, [][]any{
		{"name", "price", "category"},
		{"Lian Li O11", 139.99, "case"},
		{"Seasonic Focus 850", 129, "psu"},
	}))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/catalog/import", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.Import(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, store.products, 2)
	require.Equal(t, "psu", store.products[1].Category)
	require.Equal(t, 2, cat.invalidated)
}

func TestImportHandlerRejectsLargeBodies(t *testing.T) {
	h := importer.NewHandler(importer.HandlerConfig{Service: newService(t, seeded(), &fakeCatalog{}), MaxBytes: 16})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/catalog/import",
		strings.NewReader(`{"products":[{"name":"a long enough body","price":1,"category":"cpu"}]}`))
	h.Import(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExportHandler(t *testing.T) {
	cat := &fakeCatalog{products: catalog.SampleProducts()[:3]}
	h := importer.NewHandler(importer.HandlerConfig{Service: newService(t, seeded(), cat)})

	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/catalog/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	rows, err := importer.ReadXLSX(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 3)
}
