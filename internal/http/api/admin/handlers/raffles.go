package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	errNotScheduled = errors.New("raffle is not scheduled")
	errActiveExists = errors.New("another number selection raffle is active")
)

// RaffleHandler manages the raffle lifecycle.
type RaffleHandler struct {
	db *gorm.DB
}

// NewRaffleHandler wires the admin raffle handler.
func NewRaffleHandler(db *gorm.DB) *RaffleHandler {
	return &RaffleHandler{db: db}
}

// List returns all raffles, newest first.
func (h *RaffleHandler) List(c *gin.Context) {
	var raffles []models.Raffle
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("created_at DESC").
		Find(&raffles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffles": raffles})
}

// createRaffleRequest describes a new raffle.
type createRaffleRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	TicketPrice  float64 `json:"ticket_price"`
	TotalTickets int     `json:"total_tickets"`
	GameType     int     `json:"game_type"`
	DrawDate     string  `json:"draw_date"` // RFC 3339
}

// Create records a raffle in the scheduled state.
func (h *RaffleHandler) Create(c *gin.Context) {
	var body createRaffleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	if body.TicketPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticket_price must be positive"})
		return
	}
	if body.TotalTickets < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_tickets must not be negative"})
		return
	}
	gameType := models.RaffleGameType(body.GameType)
	if gameType != models.GameTypeNumberSelection && gameType != models.GameTypeDraw {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown game_type"})
		return
	}
	if gameType == models.GameTypeNumberSelection && body.TotalTickets == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number selection raffles need a ticket capacity"})
		return
	}
	drawDate, errParse := time.Parse(time.RFC3339, body.DrawDate)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draw_date"})
		return
	}

	raffle := models.Raffle{
		Title:        strings.TrimSpace(body.Title),
		Description:  strings.TrimSpace(body.Description),
		TicketPrice:  body.TicketPrice,
		TotalTickets: body.TotalTickets,
		GameType:     gameType,
		Status:       models.RaffleStatusScheduled,
		DrawDate:     drawDate,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&raffle).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	log.WithFields(log.Fields{"raffle_id": raffle.ID, "title": raffle.Title}).Info("raffle created")
	c.JSON(http.StatusCreated, gin.H{"raffle": raffle})
}

// Activate opens a scheduled raffle for sales. Number-selection raffles are
// exclusive: activation fails while another one is active.
func (h *RaffleHandler) Activate(c *gin.Context) {
	id, errParam := parseUintParam(c, "id")
	if errParam != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raffle models.Raffle
		if errFind := tx.First(&raffle, id).Error; errFind != nil {
			return errFind
		}
		if raffle.Status != models.RaffleStatusScheduled {
			return errNotScheduled
		}
		if raffle.GameType == models.GameTypeNumberSelection {
			var activeCount int64
			if errCount := tx.Model(&models.Raffle{}).
				Where("game_type = ? AND status = ? AND id <> ?",
					models.GameTypeNumberSelection, models.RaffleStatusActive, id).
				Count(&activeCount).Error; errCount != nil {
				return errCount
			}
			if activeCount > 0 {
				return errActiveExists
			}
		}
		return tx.Model(&models.Raffle{}).
			Where("id = ? AND status = ?", id, models.RaffleStatusScheduled).
			Update("status", models.RaffleStatusActive).Error
	})
	if errTx != nil {
		h.writeTransitionError(c, errTx)
		return
	}

	log.WithField("raffle_id", id).Info("raffle activated")
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

// Complete marks an active raffle as drawn.
func (h *RaffleHandler) Complete(c *gin.Context) {
	h.transition(c, models.RaffleStatusActive, models.RaffleStatusCompleted, "completed")
}

// Cancel cancels a scheduled or active raffle.
func (h *RaffleHandler) Cancel(c *gin.Context) {
	id, errParam := parseUintParam(c, "id")
	if errParam != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Raffle{}).
		Where("id = ? AND status IN ?", id,
			[]models.RaffleStatus{models.RaffleStatusScheduled, models.RaffleStatusActive}).
		Update("status", models.RaffleStatusCancelled)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "raffle not cancellable"})
		return
	}

	log.WithField("raffle_id", id).Info("raffle cancelled")
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// transition flips a raffle from one status to another with a conditional update.
func (h *RaffleHandler) transition(c *gin.Context, from, to models.RaffleStatus, label string) {
	id, errParam := parseUintParam(c, "id")
	if errParam != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Raffle{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
		return
	}

	log.WithFields(log.Fields{"raffle_id": id, "status": label}).Info("raffle status changed")
	c.JSON(http.StatusOK, gin.H{"status": label})
}

func (h *RaffleHandler) writeTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "raffle not found"})
	case errors.Is(err, errNotScheduled):
		c.JSON(http.StatusConflict, gin.H{"error": "raffle is not scheduled"})
	case errors.Is(err, errActiveExists):
		c.JSON(http.StatusConflict, gin.H{"error": "another number selection raffle is already active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	}
}
