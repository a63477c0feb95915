package handlers

import (
	"crypto/rand"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/gorm"
)

// affiliateCodeLength is the length of generated referral codes.
const affiliateCodeLength = 6

// codeAlphabet avoids ambiguous characters in shareable codes.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// AffiliateHandler handles opt-in and the affiliate's own summary.
type AffiliateHandler struct {
	db *gorm.DB
}

// NewAffiliateHandler wires the affiliate handler.
func NewAffiliateHandler(db *gorm.DB) *AffiliateHandler {
	return &AffiliateHandler{db: db}
}

// generateAffiliateCode produces a random shareable code.
func generateAffiliateCode() (string, error) {
	buf := make([]byte, affiliateCodeLength)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", errRead
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// OptIn creates the caller's affiliate record, idempotently: re-requesting
// returns the existing code.
func (h *AffiliateHandler) OptIn(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var existing models.Affiliate
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		First(&existing).Error
	if errFind == nil {
		c.JSON(http.StatusOK, gin.H{"code": existing.Code, "status": existing.Status})
		return
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	// The unique index on user_id resolves a concurrent double opt-in; the
	// loser re-reads the winner's row.
	for attempt := 0; attempt < 5; attempt++ {
		code, errCode := generateAffiliateCode()
		if errCode != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "code generation failed"})
			return
		}
		affiliate := models.Affiliate{
			UserID: userID,
			Code:   code,
			Status: models.AffiliateActive,
		}
		errCreate := h.db.WithContext(c.Request.Context()).Create(&affiliate).Error
		if errCreate == nil {
			c.JSON(http.StatusCreated, gin.H{"code": affiliate.Code, "status": affiliate.Status})
			return
		}
		if errRecheck := h.db.WithContext(c.Request.Context()).
			Where("user_id = ?", userID).
			First(&existing).Error; errRecheck == nil {
			c.JSON(http.StatusOK, gin.H{"code": existing.Code, "status": existing.Status})
			return
		}
		// Otherwise assume a code collision and retry with a fresh one.
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "opt-in failed"})
}

// Summary returns the caller's referral counts and bonus numbers.
func (h *AffiliateHandler) Summary(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var affiliate models.Affiliate
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		First(&affiliate).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not an affiliate"})
		return
	}

	ctx := c.Request.Context()
	var registered, participants int64
	if errCount := h.db.WithContext(ctx).Model(&models.AffiliateReferral{}).
		Where("affiliate_id = ? AND status = ?", affiliate.ID, models.ReferralRegistered).
		Count(&registered).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.AffiliateReferral{}).
		Where("affiliate_id = ? AND status = ?", affiliate.ID, models.ReferralParticipant).
		Count(&participants).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var bonusNumbers []models.AffiliateBonusNumber
	if errFind := h.db.WithContext(ctx).
		Preload("Raffle").
		Where("affiliate_id = ?", affiliate.ID).
		Order("created_at DESC").
		Find(&bonusNumbers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	bonuses := make([]gin.H, 0, len(bonusNumbers))
	for _, bonus := range bonusNumbers {
		bonuses = append(bonuses, gin.H{
			"raffle_id":     bonus.RaffleID,
			"raffle_title":  bonus.Raffle.Title,
			"ticket_number": bonus.TicketNumber,
			"granted_at":    bonus.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"code":                 affiliate.Code,
		"status":               affiliate.Status,
		"registered_referrals": registered,
		"qualifying_referrals": participants,
		"bonus_numbers":        bonuses,
	})
}
