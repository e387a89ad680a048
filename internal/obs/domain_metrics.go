package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteComputationsTotal counts priced quotes by where the rows came from.
	QuoteComputationsTotal *prometheus.CounterVec
	// CatalogImportsTotal counts bulk catalog imports by input format and outcome.
	CatalogImportsTotal *prometheus.CounterVec
	// PackageListFallbackTotal counts package listings served from the built-in dataset.
	PackageListFallbackTotal prometheus.Counter
	// PricingRuleUpdatesTotal counts pricing rule replacements.
	PricingRuleUpdatesTotal prometheus.Counter
	// PackageCompensationsTotal counts parent deletions after a failed item insert.
	PackageCompensationsTotal *prometheus.CounterVec
	// PackageRecalculationsTotal counts package total recalculation runs.
	PackageRecalculationsTotal *prometheus.CounterVec
	// RateLimitRejectionsTotal counts 429 answers by policy.
	RateLimitRejectionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		QuoteComputationsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_computations_total",
			Help:      "Count of quote price computations by row source.",
		}, []string{"source"}))
		CatalogImportsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_imports_total",
			Help:      "Count of bulk catalog imports by format and outcome.",
		}, []string{"format", "result"}))
		PackageListFallbackTotal = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_list_fallback_total",
			Help:      "Number of package listings served from the built-in sample dataset.",
		}))
		PricingRuleUpdatesTotal = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_rule_updates_total",
			Help:      "Number of pricing rule replacements.",
		}))
		PackageCompensationsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_compensations_total",
			Help:      "Count of compensating package deletions by outcome.",
		}, []string{"result"}))
		PackageRecalculationsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_recalculations_total",
			Help:      "Count of package total recalculation runs by outcome.",
		}, []string{"result"}))
		RateLimitRejectionsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Requests refused by a rate limit policy.",
		}, []string{"policy"}))
	})
}

// IncQuoteComputation records a priced quote. Safe before registration.
func IncQuoteComputation(source string) {
	if QuoteComputationsTotal != nil {
		QuoteComputationsTotal.WithLabelValues(source).Inc()
	}
}

// IncCatalogImport records a bulk import outcome.
func IncCatalogImport(format, result string) {
	if CatalogImportsTotal != nil {
		CatalogImportsTotal.WithLabelValues(format, result).Inc()
	}
}

// IncPackageListFallback records a package listing served from sample data.
func IncPackageListFallback() {
	if PackageListFallbackTotal != nil {
		PackageListFallbackTotal.Inc()
	}
}

// IncPricingRuleUpdate records a pricing rule replacement.
func IncPricingRuleUpdate() {
	if PricingRuleUpdatesTotal != nil {
		PricingRuleUpdatesTotal.Inc()
	}
}

// IncPackageCompensation records a compensating delete outcome.
func IncPackageCompensation(result string) {
	if PackageCompensationsTotal != nil {
		PackageCompensationsTotal.WithLabelValues(result).Inc()
	}
}

// IncPackageRecalculation records a recalculation run outcome.
func IncPackageRecalculation(result string) {
	if PackageRecalculationsTotal != nil {
		PackageRecalculationsTotal.WithLabelValues(result).Inc()
	}
}

// IncRateLimitRejection records a request refused by policy.
func IncRateLimitRejection(policy string) {
	if RateLimitRejectionsTotal != nil {
		RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
	}
}
