package pricing

import (
	"context"
	"fmt"

	"quickclean/internal/models"

	"go.uber.org/zap"
)

// ServiceInterface defines the business logic for the price list.
type ServiceInterface interface {
	GetConfig(ctx context.Context) (*models.PricingConfig, error)
	UpdateConfig(ctx context.Context, cfg models.PricingConfig) (*models.PricingConfig, error)
	Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error)
}

type Service struct {
	repo  RepositoryInterface
	cache Cache
	log   *zap.Logger
}

// NewService wires the repository behind a read-through cache. A nil cache
// disables caching.
func NewService(repo RepositoryInterface, cache Cache, log *zap.Logger) ServiceInterface {
	if cache == nil {
		cache = noCache{}
	}
	return &Service{repo: repo, cache: cache, log: log}
}

func (s *Service) GetConfig(ctx context.Context) (*models.PricingConfig, error) {
	if cfg, ok, err := s.cache.Load(ctx); err != nil {
		s.log.Warn("pricing cache read failed", zap.Error(err))
	} else if ok {
		return cfg, nil
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.GetConfig: %w", err)
	}
	if err := s.cache.Store(ctx, cfg); err != nil {
		s.log.Warn("pricing cache write failed", zap.Error(err))
	}
	return cfg, nil
}

func (s *Service) UpdateConfig(ctx context.Context, cfg models.PricingConfig) (*models.PricingConfig, error) {
	saved, err := s.repo.Replace(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateConfig: %w", err)
	}
	// Writing the new list through outranks any reader still holding the old
	// row. If that fails the key is dropped so the next read hits the store.
	if err := s.cache.Store(ctx, saved); err != nil {
		s.log.Warn("pricing cache refresh failed", zap.Error(err))
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Error("pricing cache invalidation failed", zap.Error(err))
		}
	}
	s.log.Info("pricing config replaced",
		zap.Stringer("base_price", saved.BasePrice),
		zap.Stringer("gst_percent", saved.GSTPercent))
	return saved, nil
}

func (s *Service) Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error) {
	weight, err := ResolveWeight(req.WeightKg, req.Quantity)
	if err != nil {
		return nil, err
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return BuildQuote(req.Category, weight, *cfg), nil
}
