package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/payout"
	"gorm.io/gorm"
)

// PayoutHandler exposes manual triggers for the payout calculator. Useful for
// replaying a missed window without waiting for the scheduler tick.
type PayoutHandler struct {
	calculator *payout.Calculator
}

// NewPayoutHandler wires the payout trigger handler.
func NewPayoutHandler(db *gorm.DB) *PayoutHandler {
	return &PayoutHandler{calculator: payout.NewCalculator(db)}
}

// RunWeekly runs the weekly calculation for the most recently closed week.
func (h *PayoutHandler) RunWeekly(c *gin.Context) {
	result, errRun := h.calculator.RunWeekly(c.Request.Context(), time.Now())
	if errRun != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "weekly payout run failed"})
		return
	}
	c.JSON(http.StatusOK, payoutResultResponse(result))
}

// RunMonthly runs the monthly calculation for the most recently closed month.
func (h *PayoutHandler) RunMonthly(c *gin.Context) {
	result, errRun := h.calculator.RunMonthly(c.Request.Context(), time.Now())
	if errRun != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "monthly payout run failed"})
		return
	}
	c.JSON(http.StatusOK, payoutResultResponse(result))
}

func payoutResultResponse(result payout.Result) gin.H {
	out := gin.H{
		"outcome":      payoutOutcomeLabel(result.Outcome),
		"window_start": result.WindowStart.Format("2006-01-02"),
		"window_end":   result.WindowEnd.Format("2006-01-02"),
	}
	if result.Outcome != payout.OutcomeNoReferrals {
		out["affiliate_id"] = result.AffiliateID
	}
	if result.Outcome == payout.OutcomeRecorded {
		out["referral_count"] = result.ReferralCount
		out["prize_amount"] = result.PrizeAmount
	}
	return out
}

func payoutOutcomeLabel(outcome payout.Outcome) string {
	switch outcome {
	case payout.OutcomeRecorded:
		return "recorded"
	case payout.OutcomeAlreadyProcessed:
		return "already_processed"
	case payout.OutcomeNoReferrals:
		return "no_referrals"
	default:
		return "unknown"
	}
}
