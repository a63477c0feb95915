package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PollHandler manages the prediction poll lifecycle.
type PollHandler struct {
	db *gorm.DB
}

// NewPollHandler wires the admin poll handler.
func NewPollHandler(db *gorm.DB) *PollHandler {
	return &PollHandler{db: db}
}

// createPollRequest describes a new poll.
type createPollRequest struct {
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	EntryPrice float64  `json:"entry_price"`
	PrizePool  float64  `json:"prize_pool"`
}

// Create opens a new poll for paid entries.
func (h *PollHandler) Create(c *gin.Context) {
	var body createPollRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing question"})
		return
	}
	if len(body.Options) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least two options required"})
		return
	}
	for _, option := range body.Options {
		if strings.TrimSpace(option) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty option label"})
			return
		}
	}
	if body.EntryPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry_price must be positive"})
		return
	}

	optionsJSON, errMarshal := json.Marshal(body.Options)
	if errMarshal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}

	poll := models.Poll{
		Question:   strings.TrimSpace(body.Question),
		Options:    datatypes.JSON(optionsJSON),
		EntryPrice: body.EntryPrice,
		PrizePool:  body.PrizePool,
		Status:     models.PollStatusActive,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&poll).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	log.WithFields(log.Fields{"poll_id": poll.ID, "question": poll.Question}).Info("poll created")
	c.JSON(http.StatusCreated, gin.H{"poll": poll})
}

// Close stops an active poll from accepting entries.
func (h *PollHandler) Close(c *gin.Context) {
	id, errParam := parseUintParam(c, "id")
	if errParam != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Poll{}).
		Where("id = ? AND status = ?", id, models.PollStatusActive).
		Update("status", models.PollStatusClosed)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "poll is not active"})
		return
	}

	log.WithField("poll_id", id).Info("poll closed")
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// settlePollRequest names the winning option.
type settlePollRequest struct {
	WinningOption *int `json:"winning_option"`
}

// Settle records the winning option of a closed poll. The outcome is set once
// and never overwritten.
func (h *PollHandler) Settle(c *gin.Context) {
	id, errParam := parseUintParam(c, "id")
	if errParam != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body settlePollRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.WinningOption == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing winning_option"})
		return
	}

	var poll models.Poll
	if errFind := h.db.WithContext(c.Request.Context()).First(&poll, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
		return
	}

	var options []string
	if errDecode := json.Unmarshal(poll.Options, &options); errDecode != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt option set"})
		return
	}
	if *body.WinningOption < 0 || *body.WinningOption >= len(options) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "winning_option out of range"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Poll{}).
		Where("id = ? AND status = ? AND winning_option IS NULL", id, models.PollStatusClosed).
		Updates(map[string]any{
			"status":         models.PollStatusCompleted,
			"winning_option": *body.WinningOption,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "poll is not closed or already settled"})
		return
	}

	log.WithFields(log.Fields{"poll_id": id, "winning_option": *body.WinningOption}).Info("poll settled")
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}
