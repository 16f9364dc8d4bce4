package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing"

// BillingMetrics records customer reconciliation, audit, webhook and catalog activity.
type BillingMetrics interface {
	ObserveReconciliation(action string, err error, duration time.Duration)
	IncMappingWrite(outcome string)
	IncAuditRecommendation(recommendation string)
	IncAuditDeletion(outcome string)
	IncWebhookEvent(eventType, status string)
	IncPlanCatalogLoad(source string)
}

// Mapping write outcomes
const (
	MappingWriteUpserted = "upserted"
	MappingWriteConflict = "conflict"
	MappingWriteError    = "error"
)

// Audit deletion outcomes
const (
	DeletionDeleted = "deleted"
	DeletionRefused = "refused"
	DeletionError   = "error"
)

// Plan catalog sources
const (
	CatalogSourceCache    = "cache"
	CatalogSourceProvider = "provider"
	CatalogSourceFallback = "fallback"
)

type billingMetrics struct {
	reconciliations     *prometheus.CounterVec
	reconcileDuration   prometheus.Histogram
	mappingWrites       *prometheus.CounterVec
	auditRecommendation *prometheus.CounterVec
	auditDeletions      *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	catalogLoads        *prometheus.CounterVec
}

// NewBillingMetrics registers the billing collectors on registry.
func NewBillingMetrics(registry prometheus.Registerer) BillingMetrics {
	factory := promauto.With(registry)

	return &billingMetrics{
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Customer reconciliations by action and result.",
		}, []string{"action", "result"}),
		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Duration of customer reconciliation including provider calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		mappingWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_writes_total",
			Help:      "User to customer mapping writes by outcome.",
		}, []string{"outcome"}),
		auditRecommendation: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_customers_total",
			Help:      "Audited customers by recommendation.",
		}, []string{"recommendation"}),
		auditDeletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_deletions_total",
			Help:      "Guarded customer deletions by outcome.",
		}, []string{"outcome"}),
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events by type and handling status.",
		}, []string{"event_type", "status"}),
		catalogLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_catalog_loads_total",
			Help:      "Plan catalog reads by source.",
		}, []string{"source"}),
	}
}

func (m *billingMetrics) ObserveReconciliation(action string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
		if action == "" {
			action = "none"
		}
	}
	m.reconciliations.WithLabelValues(action, result).Inc()
	m.reconcileDuration.Observe(duration.Seconds())
}

func (m *billingMetrics) IncMappingWrite(outcome string) {
	m.mappingWrites.WithLabelValues(outcome).Inc()
}

func (m *billingMetrics) IncAuditRecommendation(recommendation string) {
	m.auditRecommendation.WithLabelValues(recommendation).Inc()
}

func (m *billingMetrics) IncAuditDeletion(outcome string) {
	m.auditDeletions.WithLabelValues(outcome).Inc()
}

func (m *billingMetrics) IncWebhookEvent(eventType, status string) {
	m.webhookEvents.WithLabelValues(eventType, status).Inc()
}

func (m *billingMetrics) IncPlanCatalogLoad(source string) {
	m.catalogLoads.WithLabelValues(source).Inc()
}
