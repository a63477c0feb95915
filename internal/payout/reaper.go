package payout

import (
	"context"
	"time"

	"github.com/rifapix/rifapix/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultReaperInterval is how often abandoned charges are swept.
const defaultReaperInterval = time.Minute

// PendingPaymentReaper marks pending PIX payments past their expiry as
// expired. Expired is not terminal for settlement: a late gateway webhook
// still settles the payment.
type PendingPaymentReaper struct {
	db       *gorm.DB
	interval time.Duration
}

// NewPendingPaymentReaper wires the reaper.
func NewPendingPaymentReaper(conn *gorm.DB) *PendingPaymentReaper {
	return &PendingPaymentReaper{db: conn, interval: defaultReaperInterval}
}

// Start launches the sweep loop in a background goroutine.
func (r *PendingPaymentReaper) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go r.run(ctx)
	log.Infof("pending payment reaper started (interval=%s)", r.interval)
}

func (r *PendingPaymentReaper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		r.sweepOnce(ctx)
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// sweepOnce expires every pending payment past its deadline.
func (r *PendingPaymentReaper) sweepOnce(ctx context.Context) {
	result := r.db.WithContext(ctx).Model(&models.PixPayment{}).
		Where("status = ? AND expires_at < ?", models.PixPaymentPending, time.Now()).
		Update("status", models.PixPaymentExpired)
	if result.Error != nil {
		log.WithError(result.Error).Error("pending payment sweep failed")
		return
	}
	if result.RowsAffected > 0 {
		log.WithField("expired", result.RowsAffected).Info("expired abandoned pix payments")
	}
}
