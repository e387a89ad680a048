package db

import "context"

type Querier interface {
	ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error)
	GetProductByID(ctx context.Context, id int64) (Product, error)
	ListProductsByIDs(ctx context.Context, ids []int64) ([]Product, error)
	CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error)
	UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)
	DeleteAllProducts(ctx context.Context) (int64, error)
	ListPackageNamesByProduct(ctx context.Context, productID int64) ([]ListPackageNamesByProductRow, error)
	GetLatestPricingRule(ctx context.Context) (PricingRule, error)
	InsertPricingRule(ctx context.Context, arg InsertPricingRuleParams) (InsertPricingRuleRow, error)
	ListPackages(ctx context.Context, arg ListPackagesParams) ([]Package, error)
	GetPackageByID(ctx context.Context, id int64) (Package, error)
	CreatePackage(ctx context.Context, arg CreatePackageParams) (Package, error)
	UpdatePackage(ctx context.Context, arg UpdatePackageParams) (Package, error)
	UpdatePackageTotal(ctx context.Context, arg UpdatePackageTotalParams) error
	DeletePackage(ctx context.Context, id int64) (int64, error)
	ListPackageItems(ctx context.Context, packageIDs []int64) ([]PackageItem, error)
	CreatePackageItem(ctx context.Context, arg CreatePackageItemParams) (PackageItem, error)
	DeletePackageItems(ctx context.Context, packageID int64) error
}

var _ Querier = (*Queries)(nil)
