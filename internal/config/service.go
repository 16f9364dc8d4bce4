package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
)

type ServiceConfig struct {
	Name                    string         `yaml:"name"`
	Environment             string         `yaml:"environment"`
	Version                 string         `yaml:"version"`
	ClientURL               string         `yaml:"client_url"`
	StripeSecretKey         string         `yaml:"stripe_secret_key"`
	StripeWebhookSecret     string         `yaml:"stripe_webhook_secret"`
	AdminAPIKey             string         `yaml:"admin_api_key"`
	DefaultDonationCurrency string         `yaml:"default_donation_currency"`
	Supabase                SupabaseConfig `yaml:"supabase"`

	// StripeAPIURL overrides the Stripe API base URL (stripe-mock, tests)
	StripeAPIURL string `yaml:"stripe_api_url"`
}

type SupabaseConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	ProjectURL   string `yaml:"project_url"`
	MappingTable string `yaml:"mapping_table"`

	// APIKey is the service role key used for PostgREST access
	APIKey string `yaml:"api_key"`
}

// PlansConfig controls the pricing catalog.
type PlansConfig struct {
	CacheTTL            time.Duration  `yaml:"cache_ttl"`
	ExcludeNameContains []string       `yaml:"exclude_name_contains"`
	PopularNameContains string         `yaml:"popular_name_contains"`
	Fallback            []FallbackPlan `yaml:"fallback"`
}

// FallbackPlan is served when Stripe cannot be reached.
type FallbackPlan struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Amount      string   `yaml:"amount"`
	Currency    string   `yaml:"currency"`
	Interval    string   `yaml:"interval"`
	Features    []string `yaml:"features"`
	Popular     bool     `yaml:"popular"`
}

// ToPlan converts the configured plan into a catalog entry.
func (p FallbackPlan) ToPlan() (entity.Plan, error) {
	price, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return entity.Plan{}, fmt.Errorf("fallback plan %q: invalid amount %q: %w", p.ID, p.Amount, err)
	}
	interval := p.Interval
	if interval == "" {
		interval = "month"
	}
	return entity.Plan{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         price,
		UnitAmount:    entity.MajorToMinor(price, p.Currency),
		Currency:      strings.ToUpper(p.Currency),
		Interval:      interval,
		IntervalCount: 1,
		Features:      p.Features,
		Popular:       p.Popular,
	}, nil
}

// FallbackPlans converts every configured fallback plan.
func (c PlansConfig) FallbackPlans() ([]entity.Plan, error) {
	plans := make([]entity.Plan, 0, len(c.Fallback))
	for _, p := range c.Fallback {
		plan, err := p.ToPlan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// AuditConfig tunes the duplicate customer auditor.
type AuditConfig struct {
	PageLimit   int `yaml:"page_limit"`
	Concurrency int `yaml:"concurrency"`
}
