package pricing

import (
	"errors"
	"testing"

	"quickclean/internal/models"
	"quickclean/pkg/money"
)

func TestEstimate(t *testing.T) {
	cfg := models.PricingConfig{BasePrice: money.FromMajor(10), WetRate: money.FromMajor(2)}

	cases := []struct {
		name     string
		category models.Category
		weight   float64
		want     money.Amount
	}{
		{"wet 10kg", models.CategoryWet, 10, money.FromMajor(30)},
		{"fractional weight", models.CategoryWet, 2.5, money.FromMajor(15)},
		{"unknown category is base only", models.Category("Glass"), 10, money.FromMajor(10)},
		{"category without rate", models.CategoryDry, 4, money.FromMajor(10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Estimate(tc.category, tc.weight, cfg); got != tc.want {
				t.Errorf("Estimate = %s; want %s", got, tc.want)
			}
		})
	}
}

func TestEstimateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	// 10 + 1.5 * 3.333 = 14.9995 -> 15.00
	if got := Estimate(models.CategoryDry, 3.333, cfg); got != money.FromMajor(15) {
		t.Errorf("Estimate(Dry, 3.333) = %s; want 15.00", got)
	}
	if got := Estimate(models.CategoryEWaste, 1, cfg); got != money.FromMajor(15) {
		t.Errorf("Estimate(E-Waste, 1) = %s; want 15.00", got)
	}
}

func TestTaxAndEarning(t *testing.T) {
	if got := Tax(money.FromMajor(30), money.Percent(1800)); got != money.MustAmount("5.40") {
		t.Errorf("Tax(30, 18%%) = %s; want 5.40", got)
	}
	if got := WorkerEarning(money.FromMajor(100)); got != money.FromMajor(70) {
		t.Errorf("WorkerEarning(100) = %s; want 70.00", got)
	}
	if got := WorkerEarning(money.MustAmount("0.05")); got != money.MustAmount("0.04") {
		t.Errorf("WorkerEarning(0.05) = %s; want 0.04", got)
	}
}

func TestResolveWeight(t *testing.T) {
	w := 7.5
	got, err := ResolveWeight(&w, nil)
	if err != nil || got != 7.5 {
		t.Fatalf("ResolveWeight(7.5) = %v, %v", got, err)
	}

	medium := models.QuantityMedium
	got, err = ResolveWeight(nil, &medium)
	if err != nil || got != 15 {
		t.Fatalf("ResolveWeight(Medium) = %v, %v; want 15", got, err)
	}

	if _, err := ResolveWeight(nil, nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("ResolveWeight(nil, nil) err = %v; want ErrValidation", err)
	}
	zero := 0.0
	if _, err := ResolveWeight(&zero, nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("ResolveWeight(0) err = %v; want ErrValidation", err)
	}
}

func TestBuildQuote(t *testing.T) {
	q := BuildQuote(models.CategoryWet, 10, DefaultConfig())
	if q.Price != money.FromMajor(30) || q.Tax != money.MustAmount("5.40") || q.Total != money.MustAmount("35.40") {
		t.Errorf("quote = %+v; want 30.00 + 5.40 = 35.40", q)
	}
}
