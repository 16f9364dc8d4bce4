package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"go.uber.org/zap"
)

// PriceLister loads the provider's active prices.
type PriceLister interface {
	ListRecurringPrices(ctx context.Context) ([]entity.Plan, error)
}

// PlanCatalogOptions configures filtering and caching of plans.
type PlanCatalogOptions struct {
	TTL                 time.Duration
	ExcludeNameContains []string
	PopularNameContains string
	Fallback            []entity.Plan
	// Now is the clock; time.Now when nil
	Now func() time.Time
}

// PlanCatalog serves the pricing plans, cached for a TTL.
// Fallback plans are returned (and not cached) when the provider fails.
type PlanCatalog struct {
	prices   PriceLister
	ttl      time.Duration
	exclude  []string
	popular  string
	fallback []entity.Plan
	now      func() time.Time
	metrics  metrics.BillingMetrics
	logger   *zap.Logger

	mu        sync.Mutex
	cached    []entity.Plan
	expiresAt time.Time
}

// NewPlanCatalog creates a new plan catalog
func NewPlanCatalog(prices PriceLister, opts PlanCatalogOptions, billingMetrics metrics.BillingMetrics, logger *zap.Logger) *PlanCatalog {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	exclude := make([]string, 0, len(opts.ExcludeNameContains))
	for _, e := range opts.ExcludeNameContains {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			exclude = append(exclude, e)
		}
	}
	return &PlanCatalog{
		prices:   prices,
		ttl:      opts.TTL,
		exclude:  exclude,
		popular:  strings.ToLower(opts.PopularNameContains),
		fallback: opts.Fallback,
		now:      opts.Now,
		metrics:  billingMetrics,
		logger:   logger,
	}
}

// Plans returns the cached plans, loading them from the provider when stale.
func (c *PlanCatalog) Plans(ctx context.Context) ([]entity.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Before(c.expiresAt) {
		c.metrics.IncPlanCatalogLoad(metrics.CatalogSourceCache)
		return c.cached, nil
	}

	raw, err := c.prices.ListRecurringPrices(ctx)
	if err != nil {
		if len(c.fallback) == 0 {
			return nil, err
		}
		c.logger.Warn("PlanCatalog: failed to load plans from provider, serving fallback plans", zap.Error(err))
		c.metrics.IncPlanCatalogLoad(metrics.CatalogSourceFallback)
		return c.fallback, nil
	}

	c.cached = c.shape(raw)
	c.expiresAt = c.now().Add(c.ttl)
	c.metrics.IncPlanCatalogLoad(metrics.CatalogSourceProvider)
	return c.cached, nil
}

// Plan finds a plan by its price id.
func (c *PlanCatalog) Plan(ctx context.Context, priceID string) (*entity.Plan, error) {
	plans, err := c.Plans(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].ID == priceID {
			plan := plans[i]
			return &plan, nil
		}
	}
	return nil, nil
}

// Invalidate drops the cache so the next read goes to the provider.
func (c *PlanCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.expiresAt = time.Time{}
}

// shape filters excluded products, marks popular plans and orders by price.
func (c *PlanCatalog) shape(raw []entity.Plan) []entity.Plan {
	plans := make([]entity.Plan, 0, len(raw))
	for _, p := range raw {
		name := strings.ToLower(p.Name)
		if c.excluded(name) {
			continue
		}
		if c.popular != "" && strings.Contains(name, c.popular) {
			p.Popular = true
		}
		if p.Features == nil {
			p.Features = []string{}
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Price.LessThan(plans[j].Price)
	})
	return plans
}

func (c *PlanCatalog) excluded(name string) bool {
	for _, e := range c.exclude {
		if strings.Contains(name, e) {
			return true
		}
	}
	return false
}
