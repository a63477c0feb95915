package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/payment"
	"gorm.io/gorm"
)

// PurchaseHandler creates PIX charges for raffle numbers and exposes
// payment status for client-side polling.
type PurchaseHandler struct {
	db       *gorm.DB
	payments *payment.Service
}

// NewPurchaseHandler wires the purchase handler.
func NewPurchaseHandler(db *gorm.DB, payments *payment.Service) *PurchaseHandler {
	return &PurchaseHandler{db: db, payments: payments}
}

// createPurchaseRequest captures a raffle number purchase.
type createPurchaseRequest struct {
	RaffleID uint64 `json:"raffle_id"`
	Numbers  []int  `json:"numbers"`
}

// Create reserves the selected numbers behind a pending PIX charge.
// The response carries the PIX payload; confirmation arrives via webhook.
func (h *PurchaseHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var body createPurchaseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.RaffleID == 0 || len(body.Numbers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing raffle_id or numbers"})
		return
	}

	pay, errCreate := h.payments.CreateRafflePurchase(c.Request.Context(), userID, body.RaffleID, body.Numbers)
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, payment.ErrRaffleNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "raffle not active"})
		case errors.Is(errCreate, payment.ErrNumberOutOfRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": "number out of range"})
		case errors.Is(errCreate, payment.ErrNumberUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "number unavailable"})
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

// Status returns the current state of one of the caller's payments.
// Clients poll this while waiting for the webhook, bounded by expires_at.
func (h *PurchaseHandler) Status(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	paymentID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var pay models.PixPayment
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", paymentID, userID).
		First(&pay).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id": pay.ID,
		"status":     pay.Status,
		"amount":     pay.Amount,
		"expires_at": pay.ExpiresAt,
		"paid_at":    pay.PaidAt,
	})
}

// ListTickets returns the caller's tickets, newest first.
func (h *PurchaseHandler) ListTickets(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var tickets []models.Ticket
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Raffle").
		Where("user_id = ? AND payment_status IN ?", userID,
			[]models.TicketStatus{models.TicketStatusPaid, models.TicketStatusBonus}).
		Order("created_at DESC").
		Find(&tickets).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, gin.H{
			"raffle_id":     ticket.RaffleID,
			"raffle_title":  ticket.Raffle.Title,
			"ticket_number": ticket.TicketNumber,
			"status":        ticket.PaymentStatus,
			"draw_date":     ticket.Raffle.DrawDate,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tickets": out})
}
