package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/gorm"
)

// RaffleHandler serves public raffle listings.
type RaffleHandler struct {
	db *gorm.DB
}

// NewRaffleHandler wires the raffle handler.
func NewRaffleHandler(db *gorm.DB) *RaffleHandler {
	return &RaffleHandler{db: db}
}

// formatRaffle renders a raffle with its sold count.
func (h *RaffleHandler) formatRaffle(c *gin.Context, raffle *models.Raffle) gin.H {
	var sold int64
	_ = h.db.WithContext(c.Request.Context()).Model(&models.Ticket{}).
		Where("raffle_id = ? AND payment_status IN ?", raffle.ID,
			[]models.TicketStatus{models.TicketStatusPaid, models.TicketStatusBonus}).
		Count(&sold).Error

	return gin.H{
		"id":            raffle.ID,
		"title":         raffle.Title,
		"description":   raffle.Description,
		"ticket_price":  raffle.TicketPrice,
		"total_tickets": raffle.TotalTickets,
		"sold_tickets":  sold,
		"game_type":     raffle.GameType,
		"status":        raffle.Status,
		"draw_date":     raffle.DrawDate,
	}
}

// List returns active and upcoming raffles, soonest draw first.
func (h *RaffleHandler) List(c *gin.Context) {
	var raffles []models.Raffle
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("status IN ?", []models.RaffleStatus{models.RaffleStatusActive, models.RaffleStatusScheduled}).
		Order("draw_date ASC").
		Find(&raffles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(raffles))
	for i := range raffles {
		out = append(out, h.formatRaffle(c, &raffles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"raffles": out})
}

// Get returns one raffle with its taken numbers, for the number picker.
func (h *RaffleHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var raffle models.Raffle
	if errFind := h.db.WithContext(c.Request.Context()).First(&raffle, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "raffle not found"})
		return
	}

	var takenNumbers []int
	if errFind := h.db.WithContext(c.Request.Context()).Model(&models.Ticket{}).
		Where("raffle_id = ? AND payment_status IN ?", raffle.ID,
			[]models.TicketStatus{models.TicketStatusPaid, models.TicketStatusBonus}).
		Pluck("ticket_number", &takenNumbers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := h.formatRaffle(c, &raffle)
	out["taken_numbers"] = takenNumbers
	c.JSON(http.StatusOK, out)
}
