package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/cache"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/db"
	"github.com/noah-isme/pcquote-api/internal/obs"
)

type queryProvider interface {
	GetLatestPricingRule(ctx context.Context) (db.PricingRule, error)
	InsertPricingRule(ctx context.Context, arg db.InsertPricingRuleParams) (db.InsertPricingRuleRow, error)
}

// Service reads and replaces the active pricing rule.
type Service struct {
	queries queryProvider
	cache   *cache.JSON
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Cache   *cache.JSON
	Logger  zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("pricing: queries provider is required")
	}
	return &Service{queries: cfg.Queries, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// GetRule returns the most recently saved rule, or DefaultRule when none
// has been saved yet.
func (s *Service) GetRule(ctx context.Context) (Rule, error) {
	var cached Rule
	if ok, err := s.cache.Get(ctx, cache.KeyPricingRule, &cached); err == nil && ok {
		return cached, nil
	}
	row, err := s.queries.GetLatestPricingRule(ctx)
	if err != nil {
		if db.IsNotFound(err) {
			return DefaultRule(), nil
		}
		if db.IsUnavailable(err) {
			return Rule{}, common.Unavailable("pricing store unavailable", err)
		}
		return Rule{}, fmt.Errorf("get pricing rule: %w", err)
	}
	rule := ruleFromRow(row)
	if err := s.cache.Set(ctx, cache.KeyPricingRule, rule); err != nil {
		s.logger.Warn().Err(err).Msg("pricing_cache_write_failed")
	}
	return rule, nil
}

// CurrentRule is GetRule for price computations: when the rule cannot be
// loaded it returns nil, which every resolver treats as a multiplier of 1.
func (s *Service) CurrentRule(ctx context.Context) *Rule {
	if s == nil {
		return nil
	}
	rule, err := s.GetRule(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("pricing_rule_unavailable")
		return nil
	}
	return &rule
}

// ReplaceRule stores rule as the new active rule.
func (s *Service) ReplaceRule(ctx context.Context, rule Rule) (Rule, error) {
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	row, err := s.queries.InsertPricingRule(ctx, insertParams(rule))
	if err != nil {
		if db.IsUnavailable(err) {
			return Rule{}, common.Unavailable("pricing store unavailable", err)
		}
		return Rule{}, fmt.Errorf("insert pricing rule: %w", err)
	}
	rule.ID = row.ID
	if row.CreatedAt.Valid {
		rule.CreatedAt = row.CreatedAt.Time
	}
	if err := s.cache.Delete(ctx, cache.KeyPricingRule); err != nil {
		s.logger.Warn().Err(err).Msg("pricing_cache_invalidate_failed")
	}
	obs.IncPricingRuleUpdate()
	s.logger.Info().Int64("rule_id", rule.ID).Bool("unified", rule.UnifiedPricing).Msg("pricing_rule_replaced")
	return rule, nil
}
