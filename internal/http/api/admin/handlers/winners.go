package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/gorm"
)

// WinnerHandler exposes recorded affiliate prize winners.
type WinnerHandler struct {
	db *gorm.DB
}

// NewWinnerHandler wires the winner listing handler.
func NewWinnerHandler(db *gorm.DB) *WinnerHandler {
	return &WinnerHandler{db: db}
}

// ListWeekly returns weekly winner records, most recent week first.
func (h *WinnerHandler) ListWeekly(c *gin.Context) {
	var winners []models.WeeklyAffiliateWinner
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Affiliate").
		Preload("Affiliate.User").
		Order("week_start DESC").
		Find(&winners).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(winners))
	for _, winner := range winners {
		out = append(out, gin.H{
			"week_start":     winner.WeekStart.Format("2006-01-02"),
			"week_end":       winner.WeekEnd.Format("2006-01-02"),
			"affiliate_id":   winner.AffiliateID,
			"affiliate_code": winner.Affiliate.Code,
			"affiliate_name": winner.Affiliate.User.Name,
			"referral_count": winner.ReferralCount,
			"prize_amount":   winner.PrizeAmount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"winners": out})
}

// ListMonthly returns monthly winner records, most recent month first.
func (h *WinnerHandler) ListMonthly(c *gin.Context) {
	var winners []models.MonthlyAffiliateWinner
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Affiliate").
		Preload("Affiliate.User").
		Order("month_year DESC").
		Find(&winners).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(winners))
	for _, winner := range winners {
		out = append(out, gin.H{
			"month":          winner.MonthYear,
			"affiliate_id":   winner.AffiliateID,
			"affiliate_code": winner.Affiliate.Code,
			"affiliate_name": winner.Affiliate.User.Name,
			"referral_count": winner.ReferralCount,
			"prize_amount":   winner.PrizeAmount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"winners": out})
}
