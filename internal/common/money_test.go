package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoneyFormat(t *testing.T) {
	f := MoneyFormat{Symbol: "$"}
	cases := map[string]string{
		"0":          "$0.00",
		"880":        "$880.00",
		"148.5":      "$148.50",
		"1234.567":   "$1,234.57",
		"1000000":    "$1,000,000.00",
		"-200":       "-$200.00",
		"-0.001":     "$0.00",
		"999.995":    "$1,000.00",
		"123456.789": "$123,456.79",
	}
	for in, want := range cases {
		require.Equal(t, want, f.Format(decimal.RequireFromString(in)), in)
	}
}

func TestMoneyFormatPercent(t *testing.T) {
	f := MoneyFormat{Symbol: "Rp"}
	require.Equal(t, "20.0%", f.Percent(decimal.NewFromInt(20)))
	require.Equal(t, "Rp12.00", f.Format(decimal.NewFromInt(12)))
}
