// Package metrics holds the Prometheus collectors for the ticketing core.
// Collectors register on the default registry and are served by
// promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_orders_created_total",
			Help: "PENDING orders committed",
		},
	)

	ordersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_orders_rejected_total",
			Help: "Purchase attempts rejected by admission control",
		},
		[]string{"reason"},
	)

	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Tickets minted",
		},
		[]string{"source"},
	)

	txConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_tx_conflicts_total",
			Help: "Serializable transaction attempts that hit a conflict",
		},
		[]string{"op"},
	)

	txDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_tx_duration_seconds",
			Help:    "Duration of serializable transactions including retries",
			Buckets: prometheus.ExponentialBuckets(0.002, 2, 12),
		},
		[]string{"op", "status"},
	)

	integrityFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_issuance_integrity_failures_total",
			Help: "Paid orders that could not be issued because stock was exceeded",
		},
	)

	webhookOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_payment_notifications_total",
			Help: "Payment reconciliation outcomes",
		},
		[]string{"channel", "outcome"},
	)

	deliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_delivery_failures_total",
			Help: "Ticket deliveries that failed after issuance",
		},
	)

	checkins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_checkins_total",
			Help: "Ticket scans by result",
		},
		[]string{"status"},
	)

	orphanPayments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_orphan_payments_total",
			Help: "Approved payments whose referenced order no longer exists",
		},
	)

	expiredOrders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_pending_orders_expired_total",
			Help: "PENDING orders removed by the expiry sweep",
		},
	)
)

// TrackOrderCreated counts a committed PENDING order.
func TrackOrderCreated() { ordersCreated.Inc() }
// TrackOrderRejected counts a purchase refused with the given reason code.
func TrackOrderRejected(reason string) { ordersRejected.WithLabelValues(reason).Inc() }

// TrackTicketsIssued counts n tickets minted by source ("online" or "manual").
func TrackTicketsIssued(source string, n int) {
	ticketsIssued.WithLabelValues(source).Add(float64(n))
}

// TrackTxConflict counts one retried attempt of op.
func TrackTxConflict(op string) { txConflicts.WithLabelValues(op).Inc() }

// TrackTx records how long op took end to end, retries included.
func TrackTx(op string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	txDuration.WithLabelValues(op, status).Observe(time.Since(started).Seconds())
}

// TrackIntegrityFailure counts a paid order that would oversell its type.
func TrackIntegrityFailure() { integrityFailures.Inc() }
// TrackReconcile counts a payment reconciliation by channel and outcome.
func TrackReconcile(channel, outcome string) { webhookOutcomes.WithLabelValues(channel, outcome).Inc() }
// TrackDeliveryFailure counts a delivery that must be resent.
func TrackDeliveryFailure() { deliveryFailures.Inc() }
// TrackCheckin counts a scan by result.
func TrackCheckin(status string) { checkins.WithLabelValues(status).Inc() }
// TrackExpiredOrders adds n swept PENDING orders.
func TrackExpiredOrders(n int) { expiredOrders.Add(float64(n)) }

// TrackOrphanPayment counts money taken for an order that is gone.  Any
// increase needs a manual refund or reissue.
func TrackOrphanPayment() { orphanPayments.Inc() }
