package payout

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/referral"
	"github.com/rifapix/rifapix/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Outcome describes the result of one calculator run.
type Outcome int

// Outcome values.
const (
	// OutcomeRecorded means a winner was determined and recorded.
	OutcomeRecorded Outcome = iota
	// OutcomeAlreadyProcessed means the window already has a winner record.
	// Expected steady state under at-least-once scheduling; a success.
	OutcomeAlreadyProcessed
	// OutcomeNoReferrals means the window had no qualifying referrals.
	OutcomeNoReferrals
)

// Result reports what a calculator run did.
type Result struct {
	Outcome       Outcome
	AffiliateID   uint64
	ReferralCount int
	PrizeAmount   float64
	WindowStart   time.Time
	WindowEnd     time.Time
}

// Calculator determines and records periodic affiliate prize winners.
// It only records; paying the prize is a manual operational step.
type Calculator struct {
	db *gorm.DB
}

// NewCalculator wires the payout calculator.
func NewCalculator(conn *gorm.DB) *Calculator {
	return &Calculator{db: conn}
}

// standing aggregates one affiliate's qualifying referrals in a window.
type standing struct {
	affiliateID  uint64
	count        int
	minCreatedAt time.Time
}

// RunWeekly computes the winner of the most recently closed calendar week.
func (c *Calculator) RunWeekly(ctx context.Context, now time.Time) (Result, error) {
	start, end := referral.PreviousWeekWindow(now.In(db.Location()))
	weekEnd := end.AddDate(0, 0, -1) // Stored inclusive: the window's Sunday.
	result := Result{WindowStart: start, WindowEnd: weekEnd}

	var existing models.WeeklyAffiliateWinner
	errFind := c.db.WithContext(ctx).
		Where("week_start = ? AND week_end = ?", start, weekEnd).
		First(&existing).Error
	if errFind == nil {
		result.Outcome = OutcomeAlreadyProcessed
		result.AffiliateID = existing.AffiliateID
		return result, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return result, errFind
	}

	winner, found, errRank := c.topAffiliate(ctx, start, end)
	if errRank != nil {
		return result, errRank
	}
	if !found {
		result.Outcome = OutcomeNoReferrals
		log.WithField("week_start", start.Format("2006-01-02")).Info("weekly payout: no qualifying referrals")
		return result, nil
	}

	prize := settings.WeeklyPrizeAmount()
	record := models.WeeklyAffiliateWinner{
		AffiliateID:   winner.affiliateID,
		WeekStart:     start,
		WeekEnd:       weekEnd,
		ReferralCount: winner.count,
		PrizeAmount:   prize,
	}
	if errCreate := c.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return result, errCreate
	}

	result.Outcome = OutcomeRecorded
	result.AffiliateID = winner.affiliateID
	result.ReferralCount = winner.count
	result.PrizeAmount = prize
	log.WithFields(log.Fields{
		"affiliate_id": winner.affiliateID,
		"referrals":    winner.count,
		"week_start":   start.Format("2006-01-02"),
	}).Info("weekly payout: winner recorded")
	return result, nil
}

// RunMonthly computes the winner of the most recently closed calendar month.
func (c *Calculator) RunMonthly(ctx context.Context, now time.Time) (Result, error) {
	start, end := referral.PreviousMonthWindow(now.In(db.Location()))
	monthYear := start.Format("2006-01")
	result := Result{WindowStart: start, WindowEnd: end}

	var existing models.MonthlyAffiliateWinner
	errFind := c.db.WithContext(ctx).
		Where("month_year = ?", monthYear).
		First(&existing).Error
	if errFind == nil {
		result.Outcome = OutcomeAlreadyProcessed
		result.AffiliateID = existing.AffiliateID
		return result, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return result, errFind
	}

	winner, found, errRank := c.topAffiliate(ctx, start, end)
	if errRank != nil {
		return result, errRank
	}
	if !found {
		result.Outcome = OutcomeNoReferrals
		log.WithField("month", monthYear).Info("monthly payout: no qualifying referrals")
		return result, nil
	}

	prize := settings.MonthlyPrizeAmount()
	record := models.MonthlyAffiliateWinner{
		AffiliateID:   winner.affiliateID,
		MonthYear:     monthYear,
		ReferralCount: winner.count,
		PrizeAmount:   prize,
	}
	if errCreate := c.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return result, errCreate
	}

	result.Outcome = OutcomeRecorded
	result.AffiliateID = winner.affiliateID
	result.ReferralCount = winner.count
	result.PrizeAmount = prize
	log.WithFields(log.Fields{
		"affiliate_id": winner.affiliateID,
		"referrals":    winner.count,
		"month":        monthYear,
	}).Info("monthly payout: winner recorded")
	return result, nil
}

// topAffiliate ranks qualifying referrals whose week_start falls inside
// [start, end). Winner: highest count, then earliest first referral, then
// lowest affiliate id so repeated runs always agree.
func (c *Calculator) topAffiliate(ctx context.Context, start, end time.Time) (standing, bool, error) {
	var referrals []models.AffiliateReferral
	if errFind := c.db.WithContext(ctx).
		Where("status = ? AND week_start >= ? AND week_start < ?",
			models.ReferralParticipant, start, end).
		Find(&referrals).Error; errFind != nil {
		return standing{}, false, errFind
	}
	if len(referrals) == 0 {
		return standing{}, false, nil
	}

	byAffiliate := make(map[uint64]*standing, len(referrals))
	for _, row := range referrals {
		entry, ok := byAffiliate[row.AffiliateID]
		if !ok {
			byAffiliate[row.AffiliateID] = &standing{
				affiliateID:  row.AffiliateID,
				count:        1,
				minCreatedAt: row.CreatedAt,
			}
			continue
		}
		entry.count++
		if row.CreatedAt.Before(entry.minCreatedAt) {
			entry.minCreatedAt = row.CreatedAt
		}
	}

	standings := make([]standing, 0, len(byAffiliate))
	for _, entry := range byAffiliate {
		standings = append(standings, *entry)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].count != standings[j].count {
			return standings[i].count > standings[j].count
		}
		if !standings[i].minCreatedAt.Equal(standings[j].minCreatedAt) {
			return standings[i].minCreatedAt.Before(standings[j].minCreatedAt)
		}
		return standings[i].affiliateID < standings[j].affiliateID
	})
	return standings[0], true, nil
}
