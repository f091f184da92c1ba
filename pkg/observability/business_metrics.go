package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvoicesGenerated counts invoices materialized from recurring templates
	InvoicesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_invoices_generated_total",
		Help: "Total number of invoices generated from recurring templates",
	})

	// TemplatesDeactivated counts templates retired by an end date
	TemplatesDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_templates_deactivated_total",
		Help: "Total number of recurring templates deactivated by end date",
	})

	// GenerationFailures counts templates that failed within a generation pass
	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_generation_failures_total",
		Help: "Total number of per-template failures during generation passes",
	})

	// GenerationPassDuration observes the wall time of one generation pass
	GenerationPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "billing_generation_pass_duration_seconds",
		Help: "Duration of a full invoice generation pass in seconds",
		// Buckets: 100ms to 5m (a pass touches a bounded batch of templates)
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// NotificationsEnqueued counts WhatsApp jobs handed to the delivery queue
	NotificationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_notifications_enqueued_total",
		Help: "Total number of notification jobs enqueued for delivery",
	}, []string{
		"message_type", // invoice, followup
	})

	// NotificationsDelivered counts terminal delivery outcomes by the worker
	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_notifications_delivered_total",
		Help: "Total number of notification delivery attempts by outcome",
	}, []string{
		"status", // sent, failed
	})
)
