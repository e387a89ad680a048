package cache

// Cache keys shared between writers and readers.
const (
	KeyProductList = "catalog:products:all"
	KeyPricingRule = "pricing:rule:active"
)
