package stripe

import (
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
)

const (
	defaultPlanName     = "Unknown Plan"
	defaultPlanInterval = "month"
	featuresMetadataKey = "features"
)

func toCustomerFields(c *stripego.Customer) entity.CustomerFields {
	fields := entity.CustomerFields{
		ID:          c.ID,
		Email:       c.Email,
		Name:        c.Name,
		Phone:       c.Phone,
		Description: c.Description,
		Metadata:    c.Metadata,
	}
	if c.Created > 0 {
		fields.Created = time.Unix(c.Created, 0).UTC()
	}
	if c.Address != nil {
		address := entity.Address{
			Line1:      c.Address.Line1,
			Line2:      c.Address.Line2,
			City:       c.Address.City,
			State:      c.Address.State,
			PostalCode: c.Address.PostalCode,
			Country:    c.Address.Country,
		}
		if !address.IsZero() {
			fields.Address = &address
		}
	}
	return fields
}

func toAddressParams(a *entity.Address) *stripego.AddressParams {
	return &stripego.AddressParams{
		Line1:      stripego.String(a.Line1),
		Line2:      stripego.String(a.Line2),
		City:       stripego.String(a.City),
		State:      stripego.String(a.State),
		PostalCode: stripego.String(a.PostalCode),
		Country:    stripego.String(a.Country),
	}
}

// toPlan converts a recurring price with its expanded product.
func toPlan(p *stripego.Price) entity.Plan {
	plan := entity.Plan{
		ID:         p.ID,
		Name:       defaultPlanName,
		UnitAmount: p.UnitAmount,
		Currency:   strings.ToUpper(string(p.Currency)),
		Interval:   defaultPlanInterval,
		Price:      entity.MinorToMajor(p.UnitAmount, string(p.Currency)),
		Features:   []string{},
	}
	if p.Recurring != nil {
		if p.Recurring.Interval != "" {
			plan.Interval = string(p.Recurring.Interval)
		}
		plan.IntervalCount = p.Recurring.IntervalCount
	}
	if p.Product != nil {
		plan.ProductID = p.Product.ID
		if p.Product.Name != "" {
			plan.Name = p.Product.Name
		}
		plan.Description = p.Product.Description
		plan.Features = splitFeatures(p.Product.Metadata[featuresMetadataKey])
	}
	return plan
}

func splitFeatures(raw string) []string {
	features := []string{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	return features
}

func toSubscription(s *stripego.Subscription) *entity.Subscription {
	sub := &entity.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Items:             []entity.SubscriptionItem{},
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.CurrentPeriodEnd > 0 {
		sub.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	if s.Created > 0 {
		sub.CreatedAt = time.Unix(s.Created, 0).UTC()
	}
	if s.Items == nil {
		return sub
	}
	for _, item := range s.Items.Data {
		si := entity.SubscriptionItem{ID: item.ID}
		if item.Price != nil {
			si.PriceID = item.Price.ID
			si.Amount = item.Price.UnitAmount
			si.Currency = strings.ToUpper(string(item.Price.Currency))
			if item.Price.Recurring != nil {
				si.Interval = string(item.Price.Recurring.Interval)
				si.IntervalCount = item.Price.Recurring.IntervalCount
			}
			if item.Price.Product != nil {
				si.ProductName = item.Price.Product.Name
			}
		}
		sub.Items = append(sub.Items, si)
	}
	return sub
}
