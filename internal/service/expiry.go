package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

const expiryBatch = 200

// ExpiryService deletes PENDING orders that outlived their TTL so their
// stock and coupon slots become available again.  An order is only swept
// once it is older than ttl+grace: the checkout preference closes at ttl,
// and a payment approved just before that may be notified minutes later.
type ExpiryService struct {
	store  ports.Store
	ttl    time.Duration
	grace  time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewExpiryService returns a sweeper for PENDING orders.  A zero ttl
// disables it; a negative grace counts as zero.
func NewExpiryService(store ports.Store, ttl, grace time.Duration, logger *logrus.Logger) *ExpiryService {
	if grace < 0 {
		grace = 0
	}
	return &ExpiryService{store: store, ttl: ttl, grace: grace, logger: logger, now: time.Now}
}

// Enabled reports whether a TTL is configured.
func (s *ExpiryService) Enabled() bool { return s.ttl > 0 }

// Sweep expires one batch and returns how many orders were removed. Each
// order goes in its own transaction; an order paid meanwhile is skipped by
// the PENDING guard.
func (s *ExpiryService) Sweep(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	stale, err := s.store.PendingOrdersBefore(ctx, s.cutoff(), expiryBatch)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, o := range stale {
		var gone bool
		err := s.store.InTx(ctx, "expire_order", func(ctx context.Context, q ports.Queries) error {
			ok, err := q.DeletePendingOrder(ctx, o.ID)
			if err != nil || !ok {
				gone = false
				return err
			}
			if o.CouponID != nil {
				if err := q.DecrementCouponUse(ctx, *o.CouponID); err != nil {
					return err
				}
			}
			gone = true
			return nil
		})
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("order_id", o.ID).Warn("pending order not expired")
			continue
		}
		if gone {
			removed++
		}
	}
	if removed > 0 {
		metrics.TrackExpiredOrders(removed)
		s.logger.WithContext(ctx).WithField("orders", removed).Info("expired pending orders")
	}
	return removed, nil
}

// cutoff is the creation time before which a PENDING order is expired.
func (s *ExpiryService) cutoff() time.Time {
	return s.now().Add(-s.ttl - s.grace)
}

// Run sweeps every interval until ctx is done.
func (s *ExpiryService) Run(ctx context.Context, every time.Duration) {
	if !s.Enabled() || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.WithContext(ctx).WithError(err).Error("expiry sweep failed")
			}
		}
	}
}
