package referral

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// bonusInsertRetries bounds retries when a randomly picked bonus number
// loses the unique-index race to a concurrent allocation.
const bonusInsertRetries = 3

// Signup errors.
var (
	// ErrCodeNotFound indicates an unknown or inactive referral code.
	ErrCodeNotFound = errors.New("referral code not found")
)

// Engine credits affiliates when their referred users make a first paid
// purchase, and allocates the bonus ticket number that rewards it.
type Engine struct {
	db *gorm.DB
}

// NewEngine wires the attribution engine.
func NewEngine(conn *gorm.DB) *Engine {
	return &Engine{db: conn}
}

// RegisterSignup creates the registered-state referral row for a new user who
// signed up with an affiliate code. An unknown or inactive code is a soft
// failure: the signup proceeds unreferred.
func (e *Engine) RegisterSignup(ctx context.Context, code string, userID uint64) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	var affiliate models.Affiliate
	if errFind := e.db.WithContext(ctx).
		Where("code = ? AND status = ?", code, models.AffiliateActive).
		First(&affiliate).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrCodeNotFound
		}
		return errFind
	}

	referral := models.AffiliateReferral{
		AffiliateID:    affiliate.ID,
		ReferredUserID: userID,
		Status:         models.ReferralRegistered,
	}
	return e.db.WithContext(ctx).Create(&referral).Error
}

// OnPaidPurchase runs once per settled purchase. It transitions the buyer's
// referral to participant on their first qualifying purchase and allocates a
// bonus number to the referring affiliate.
//
// Every failure here is logged and swallowed: attribution must never undo or
// block the settlement that triggered it.
func (e *Engine) OnPaidPurchase(ctx context.Context, userID uint64, raffleID *uint64) {
	var user models.User
	if errFind := e.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		log.WithError(errFind).WithField("user_id", userID).Error("attribution: load buyer failed")
		return
	}
	code := strings.TrimSpace(user.ReferredBy)
	if code == "" {
		return
	}

	var affiliate models.Affiliate
	if errFind := e.db.WithContext(ctx).
		Where("code = ?", code).
		First(&affiliate).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithFields(log.Fields{"user_id": userID, "code": code}).Warn("attribution: referral code has no affiliate")
			return
		}
		log.WithError(errFind).Error("attribution: affiliate lookup failed")
		return
	}
	if affiliate.Status != models.AffiliateActive {
		// Inactive codes attribute nothing; not an error.
		return
	}

	var referral models.AffiliateReferral
	if errFind := e.db.WithContext(ctx).
		Where("affiliate_id = ? AND referred_user_id = ?", affiliate.ID, userID).
		First(&referral).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			// Signup-time row missing: a consistency gap. Do not fabricate a
			// referral; that would credit retroactive signups.
			log.WithFields(log.Fields{
				"affiliate_id": affiliate.ID,
				"user_id":      userID,
			}).Error("attribution: referral row missing for referred buyer")
			return
		}
		log.WithError(errFind).Error("attribution: referral lookup failed")
		return
	}

	weekStart := WeekStart(time.Now().In(db.Location()))
	updates := map[string]any{
		"status":     models.ReferralParticipant,
		"week_start": weekStart,
	}
	if raffleID != nil {
		updates["raffle_id"] = *raffleID
	}
	// Conditional update: only the invocation that observes registered state
	// performs the transition, so a second purchase (or a concurrent
	// settlement) is a no-op and the bonus is allocated exactly once.
	transition := e.db.WithContext(ctx).Model(&models.AffiliateReferral{}).
		Where("id = ? AND status = ?", referral.ID, models.ReferralRegistered).
		Updates(updates)
	if transition.Error != nil {
		log.WithError(transition.Error).Error("attribution: transition failed")
		return
	}
	if transition.RowsAffected == 0 {
		return
	}

	e.allocateBonus(ctx, &affiliate, referral.ID, raffleID)
}

// allocateBonus grants the affiliate one free number in a future draw.
// No eligible raffle or no free number defers the grant with a logged no-op.
func (e *Engine) allocateBonus(ctx context.Context, affiliate *models.Affiliate, referralID uint64, triggerRaffleID *uint64) {
	target, errTarget := e.pickTargetRaffle(ctx, triggerRaffleID)
	if errTarget != nil {
		log.WithError(errTarget).Error("attribution: target raffle lookup failed")
		return
	}
	if target == nil {
		log.WithFields(log.Fields{
			"affiliate_id": affiliate.ID,
			"referral_id":  referralID,
		}).Warn("attribution: no eligible raffle for bonus number")
		return
	}

	available, errAvailable := e.availableNumbers(ctx, target)
	if errAvailable != nil {
		log.WithError(errAvailable).Error("attribution: free number scan failed")
		return
	}
	if len(available) == 0 {
		log.WithFields(log.Fields{
			"affiliate_id": affiliate.ID,
			"raffle_id":    target.ID,
		}).Warn("attribution: raffle has no free numbers for bonus")
		return
	}

	for attempt := 0; attempt < bonusInsertRetries && len(available) > 0; attempt++ {
		idx := rand.Intn(len(available))
		number := available[idx]

		ticket := models.Ticket{
			RaffleID:      target.ID,
			TicketNumber:  number,
			UserID:        affiliate.UserID,
			PaymentStatus: models.TicketStatusBonus,
		}
		if errCreate := e.db.WithContext(ctx).Create(&ticket).Error; errCreate != nil {
			if isDuplicateKey(errCreate) {
				// Lost the unique-index race for this number; drop it and retry.
				available = append(available[:idx], available[idx+1:]...)
				continue
			}
			log.WithError(errCreate).WithFields(log.Fields{
				"affiliate_id": affiliate.ID,
				"raffle_id":    target.ID,
			}).Error("attribution: bonus ticket insert failed")
			return
		}

		bonus := models.AffiliateBonusNumber{
			AffiliateID:  affiliate.ID,
			ReferralID:   referralID,
			RaffleID:     target.ID,
			TicketNumber: number,
		}
		if errBonus := e.db.WithContext(ctx).Create(&bonus).Error; errBonus != nil {
			log.WithError(errBonus).Error("attribution: bonus number record failed")
		}
		log.WithFields(log.Fields{
			"affiliate_id": affiliate.ID,
			"raffle_id":    target.ID,
			"number":       number,
		}).Info("attribution: bonus number allocated")
		return
	}

	log.WithField("affiliate_id", affiliate.ID).Warn("attribution: bonus allocation exhausted retries")
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// Falls back to message matching for drivers that do not map the error to
// gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// pickTargetRaffle selects where the bonus number lives: the earliest-draw
// active raffle distinct from the trigger, else the earliest future raffle.
// Returns nil when no raffle qualifies.
func (e *Engine) pickTargetRaffle(ctx context.Context, triggerRaffleID *uint64) (*models.Raffle, error) {
	query := e.db.WithContext(ctx).
		Where("status = ? AND total_tickets > 0", models.RaffleStatusActive)
	if triggerRaffleID != nil {
		query = query.Where("id <> ?", *triggerRaffleID)
	}

	var target models.Raffle
	errFind := query.Order("draw_date ASC").First(&target).Error
	if errFind == nil {
		return &target, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	future := e.db.WithContext(ctx).
		Where("status = ? AND draw_date > ? AND total_tickets > 0", models.RaffleStatusScheduled, time.Now())
	if triggerRaffleID != nil {
		future = future.Where("id <> ?", *triggerRaffleID)
	}
	errFind = future.Order("draw_date ASC").First(&target).Error
	if errFind == nil {
		return &target, nil
	}
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, errFind
}

// availableNumbers returns raffle numbers not present as any ticket row,
// regardless of payment status, so pending reservations are not collided with.
func (e *Engine) availableNumbers(ctx context.Context, raffle *models.Raffle) ([]int, error) {
	var usedNumbers []int
	if errFind := e.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("raffle_id = ?", raffle.ID).
		Pluck("ticket_number", &usedNumbers).Error; errFind != nil {
		return nil, errFind
	}

	used := make(map[int]struct{}, len(usedNumbers))
	for _, n := range usedNumbers {
		used[n] = struct{}{}
	}
	available := make([]int, 0, raffle.TotalTickets-len(used))
	for n := 1; n <= raffle.TotalTickets; n++ {
		if _, taken := used[n]; !taken {
			available = append(available, n)
		}
	}
	return available, nil
}
