package models

import (
	"time"

	"quickclean/pkg/money"
)

// PricingConfig is the single active price list. Rates are per kilogram.
type PricingConfig struct {
	BasePrice      money.Amount  `json:"base_price" validate:"gte=0"`
	WetRate        money.Amount  `json:"wet_waste_rate" validate:"gte=0"`
	DryRate        money.Amount  `json:"dry_waste_rate" validate:"gte=0"`
	MixedRate      money.Amount  `json:"mixed_waste_rate" validate:"gte=0"`
	RecyclableRate money.Amount  `json:"recycle_rate" validate:"gte=0"`
	EWasteRate     money.Amount  `json:"e_waste_rate" validate:"gte=0"`
	GSTPercent     money.Percent `json:"gst_percent" validate:"gte=0,lte=10000"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// RateFor returns the per-kilogram rate; unknown categories are free.
func (p PricingConfig) RateFor(c Category) money.Amount {
	switch c {
	case CategoryWet:
		return p.WetRate
	case CategoryDry:
		return p.DryRate
	case CategoryMixed:
		return p.MixedRate
	case CategoryRecyclable:
		return p.RecyclableRate
	case CategoryEWaste:
		return p.EWasteRate
	}
	return 0
}

// QuoteRequest asks for a price preview before submitting a request.
type QuoteRequest struct {
	Category Category  `json:"category" validate:"required,category"`
	WeightKg *float64  `json:"weight_kg,omitempty" validate:"required_without=Quantity,omitempty,gt=0,lte=10000"`
	Quantity *Quantity `json:"quantity,omitempty" validate:"required_without=WeightKg,omitempty,quantity"`
}

type Quote struct {
	Category   Category      `json:"category"`
	WeightKg   float64       `json:"weight_kg"`
	Price      money.Amount  `json:"price"`
	GSTPercent money.Percent `json:"gst_percent"`
	Tax        money.Amount  `json:"tax"`
	Total      money.Amount  `json:"total"`
}
