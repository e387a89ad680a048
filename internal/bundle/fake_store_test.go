package bundle_test

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/db"
)

var errStoreDown error = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

// fakeStore is an in-memory package store. The embedded Querier is nil:
// calling a catalog or pricing query panics, which keeps tests honest about
// what the package service touches.
type fakeStore struct {
	db.Querier

	nextPkg   int64
	nextItem  int64
	packages  map[int64]db.Package
	items     map[int64][]db.PackageItem
	listErr   error
	failItemN int // fail the Nth CreatePackageItem call (1-based); 0 disables
	itemCalls int
	deleted   []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{packages: map[int64]db.Package{}, items: map[int64][]db.PackageItem{}}
}

func (f *fakeStore) ListPackages(_ context.Context, arg db.ListPackagesParams) ([]db.Package, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []db.Package
	for _, p := range f.packages {
		if q, ok := arg.Q.(string); ok && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetPackageByID(_ context.Context, id int64) (db.Package, error) {
	p, ok := f.packages[id]
	if !ok {
		return db.Package{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) CreatePackage(_ context.Context, arg db.CreatePackageParams) (db.Package, error) {
	f.nextPkg++
	p := db.Package{ID: f.nextPkg, Name: arg.Name, Description: arg.Description, TotalPrice: arg.TotalPrice}
	f.packages[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdatePackage(_ context.Context, arg db.UpdatePackageParams) (db.Package, error) {
	p, ok := f.packages[arg.ID]
	if !ok {
		return db.Package{}, pgx.ErrNoRows
	}
	p.Name = arg.Name
	p.Description = arg.Description
	p.TotalPrice = arg.TotalPrice
	f.packages[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdatePackageTotal(_ context.Context, arg db.UpdatePackageTotalParams) error {
	p, ok := f.packages[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	p.TotalPrice = arg.TotalPrice
	f.packages[p.ID] = p
	return nil
}

func (f *fakeStore) DeletePackage(_ context.Context, id int64) (int64, error) {
	if _, ok := f.packages[id]; !ok {
		return 0, nil
	}
	delete(f.packages, id)
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return 1, nil
}

func (f *fakeStore) ListPackageItems(_ context.Context, ids []int64) ([]db.PackageItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []db.PackageItem
	for _, id := range ids {
		out = append(out, f.items[id]...)
	}
	return out, nil
}

func (f *fakeStore) CreatePackageItem(_ context.Context, arg db.CreatePackageItemParams) (db.PackageItem, error) {
	f.itemCalls++
	if f.failItemN > 0 && f.itemCalls == f.failItemN {
		return db.PackageItem{}, errStoreDown
	}
	f.nextItem++
	it := db.PackageItem{
		ID:              f.nextItem,
		PackageID:       arg.PackageID,
		ProductID:       arg.ProductID,
		Quantity:        arg.Quantity,
		ProductName:     arg.ProductName,
		ProductPrice:    arg.ProductPrice,
		ProductCategory: arg.ProductCategory,
	}
	f.items[arg.PackageID] = append(f.items[arg.PackageID], it)
	return it, nil
}

func (f *fakeStore) DeletePackageItems(_ context.Context, packageID int64) error {
	delete(f.items, packageID)
	return nil
}

// InTx restores the previous state when fn fails.
func (f *fakeStore) InTx(_ context.Context, fn func(q db.Querier) error) error {
	pkgs := make(map[int64]db.Package, len(f.packages))
	for k, v := range f.packages {
		pkgs[k] = v
	}
	items := make(map[int64][]db.PackageItem, len(f.items))
	for k, v := range f.items {
		items[k] = append([]db.PackageItem(nil), v...)
	}
	if err := fn(f); err != nil {
		f.packages, f.items = pkgs, items
		return err
	}
	return nil
}

type fakeProducts map[int64]catalog.Product

func (f fakeProducts) ProductsByID(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product)
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func sampleProducts() fakeProducts {
	out := fakeProducts{}
	for _, p := range catalog.SampleProducts() {
		out[p.ID] = p
	}
	return out
}
