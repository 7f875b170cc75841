package pricing

import (
	"fmt"
	"math"

	"quickclean/internal/models"
	"quickclean/pkg/money"
)

// Share of the estimated price paid out to the worker.
const (
	workerShareNum = 70
	workerShareDen = 100
)

// Estimate prices a pickup as base + weight * per-kg rate. Weight is rounded to
// whole grams first so the result depends only on the stored configuration.
func Estimate(category models.Category, weightKg float64, cfg models.PricingConfig) money.Amount {
	grams := int64(math.Round(weightKg * 1000))
	return cfg.BasePrice + cfg.RateFor(category).MulFrac(grams, 1000)
}

// Tax is price * gst%.
func Tax(price money.Amount, gst money.Percent) money.Amount {
	return gst.Of(price)
}

// WorkerEarning is what the worker is credited on completion.
func WorkerEarning(estimated money.Amount) money.Amount {
	return estimated.MulFrac(workerShareNum, workerShareDen)
}

// ResolveWeight picks the explicit weight when given, else the nominal weight
// of the quantity bucket.
func ResolveWeight(weightKg *float64, quantity *models.Quantity) (float64, error) {
	if weightKg != nil {
		if *weightKg <= 0 || math.IsNaN(*weightKg) || math.IsInf(*weightKg, 0) {
			return 0, fmt.Errorf("%w: weight must be positive", models.ErrValidation)
		}
		return *weightKg, nil
	}
	if quantity != nil {
		if w, ok := quantity.NominalWeightKg(); ok {
			return w, nil
		}
		return 0, fmt.Errorf("%w: unknown quantity %q", models.ErrValidation, *quantity)
	}
	return 0, fmt.Errorf("%w: weight or quantity is required", models.ErrValidation)
}

// BuildQuote is the price preview shown on the request form.
func BuildQuote(category models.Category, weightKg float64, cfg models.PricingConfig) *models.Quote {
	price := Estimate(category, weightKg, cfg)
	tax := Tax(price, cfg.GSTPercent)
	return &models.Quote{
		Category:   category,
		WeightKg:   weightKg,
		Price:      price,
		GSTPercent: cfg.GSTPercent,
		Tax:        tax,
		Total:      price + tax,
	}
}

// DefaultConfig is the price list seeded on first boot.
func DefaultConfig() models.PricingConfig {
	return models.PricingConfig{
		BasePrice:      money.FromMajor(10),
		WetRate:        money.FromMajor(2),
		DryRate:        money.MustAmount("1.50"),
		MixedRate:      money.FromMajor(3),
		RecyclableRate: money.MustAmount("0.50"),
		EWasteRate:     money.FromMajor(5),
		GSTPercent:     money.Percent(1800),
	}
}
