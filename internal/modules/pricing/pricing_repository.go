package pricing

import (
	"context"
	"errors"
	"fmt"

	"quickclean/internal/models"
	"quickclean/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for the pricing repository.
type RepositoryInterface interface {
	Get(ctx context.Context) (*models.PricingConfig, error)
	Replace(ctx context.Context, cfg models.PricingConfig) (*models.PricingConfig, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const pricingColumns = `base_price_minor, wet_rate_minor, dry_rate_minor, mixed_rate_minor,
	recyclable_rate_minor, e_waste_rate_minor, gst_basis_points, updated_at`

func (r *Repository) Get(ctx context.Context) (*models.PricingConfig, error) {
	row := r.db.QueryRow(ctx, `SELECT `+pricingColumns+` FROM pricing_config WHERE id = 1`)
	cfg, err := scanPricing(row)
	if err != nil {
		return nil, fmt.Errorf("repository.GetPricing: %w", err)
	}
	return cfg, nil
}

// Replace overwrites the whole price list. Concurrent writers are last-write-wins.
func (r *Repository) Replace(ctx context.Context, cfg models.PricingConfig) (*models.PricingConfig, error) {
	query := `
		INSERT INTO pricing_config (id, base_price_minor, wet_rate_minor, dry_rate_minor, mixed_rate_minor,
		                            recyclable_rate_minor, e_waste_rate_minor, gst_basis_points, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			base_price_minor = EXCLUDED.base_price_minor,
			wet_rate_minor = EXCLUDED.wet_rate_minor,
			dry_rate_minor = EXCLUDED.dry_rate_minor,
			mixed_rate_minor = EXCLUDED.mixed_rate_minor,
			recyclable_rate_minor = EXCLUDED.recyclable_rate_minor,
			e_waste_rate_minor = EXCLUDED.e_waste_rate_minor,
			gst_basis_points = EXCLUDED.gst_basis_points,
			updated_at = now()
		RETURNING ` + pricingColumns

	row := r.db.QueryRow(ctx, query,
		int64(cfg.BasePrice), int64(cfg.WetRate), int64(cfg.DryRate), int64(cfg.MixedRate),
		int64(cfg.RecyclableRate), int64(cfg.EWasteRate), int64(cfg.GSTPercent))
	saved, err := scanPricing(row)
	if err != nil {
		return nil, fmt.Errorf("repository.ReplacePricing: %w", err)
	}
	return saved, nil
}

func scanPricing(row pgx.Row) (*models.PricingConfig, error) {
	var base, wet, dry, mixed, recyclable, eWaste, gst int64
	var cfg models.PricingConfig
	if err := row.Scan(&base, &wet, &dry, &mixed, &recyclable, &eWaste, &gst, &cfg.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	cfg.BasePrice = money.Amount(base)
	cfg.WetRate = money.Amount(wet)
	cfg.DryRate = money.Amount(dry)
	cfg.MixedRate = money.Amount(mixed)
	cfg.RecyclableRate = money.Amount(recyclable)
	cfg.EWasteRate = money.Amount(eWaste)
	cfg.GSTPercent = money.Percent(gst)
	return &cfg, nil
}
