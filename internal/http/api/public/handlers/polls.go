package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/payment"
	"gorm.io/gorm"
)

// PollHandler serves prediction polls and paid entries.
type PollHandler struct {
	db       *gorm.DB
	payments *payment.Service
}

// NewPollHandler wires the poll handler.
func NewPollHandler(db *gorm.DB, payments *payment.Service) *PollHandler {
	return &PollHandler{db: db, payments: payments}
}

// List returns open and recently settled polls.
func (h *PollHandler) List(c *gin.Context) {
	var polls []models.Poll
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("created_at DESC").
		Limit(50).
		Find(&polls).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(polls))
	for _, poll := range polls {
		var options []string
		_ = json.Unmarshal(poll.Options, &options)
		out = append(out, gin.H{
			"id":             poll.ID,
			"question":       poll.Question,
			"options":        options,
			"entry_price":    poll.EntryPrice,
			"prize_pool":     poll.PrizePool,
			"status":         poll.Status,
			"winning_option": poll.WinningOption,
		})
	}
	c.JSON(http.StatusOK, gin.H{"polls": out})
}

// enterPollRequest captures a paid option selection.
type enterPollRequest struct {
	OptionIndex *int `json:"option_index"`
}

// Enter creates a pending entry and its PIX charge for one poll option.
func (h *PollHandler) Enter(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	pollID, errParse := parseUintParam(c, "id")
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body enterPollRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.OptionIndex == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing option_index"})
		return
	}

	pay, errCreate := h.payments.CreatePollEntry(c.Request.Context(), userID, pollID, *body.OptionIndex)
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, payment.ErrPollNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "poll not active"})
		case errors.Is(errCreate, payment.ErrAlreadyEntered):
			c.JSON(http.StatusConflict, gin.H{"error": "already entered"})
		case errors.Is(errCreate, payment.ErrNumberOutOfRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": "option out of range"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "charge creation failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment_id":  pay.ID,
		"amount":      pay.Amount,
		"pix_payload": pay.PixPayload,
		"expires_at":  pay.ExpiresAt,
		"status":      pay.Status,
	})
}
