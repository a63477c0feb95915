package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsHandler manages runtime-tunable platform settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler wires the settings handler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// knownSettingKeys limits updates to keys the platform actually reads.
var knownSettingKeys = map[string]struct{}{
	settings.WeeklyPrizeAmountKey:    {},
	settings.MonthlyPrizeAmountKey:   {},
	settings.PaymentExpiryMinutesKey: {},
	settings.LeaderboardSizeKey:      {},
}

// List returns the current effective settings.
func (h *SettingsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		settings.WeeklyPrizeAmountKey:    settings.WeeklyPrizeAmount(),
		settings.MonthlyPrizeAmountKey:   settings.MonthlyPrizeAmount(),
		settings.PaymentExpiryMinutesKey: settings.PaymentExpiryMinutes(),
		settings.LeaderboardSizeKey:      settings.LeaderboardSize(),
	})
}

// Update upserts the supplied settings and refreshes the in-memory snapshot.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rows := make([]models.Setting, 0, len(body))
	for key, value := range body {
		key = strings.TrimSpace(key)
		if _, known := knownSettingKeys[key]; !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting key: " + key})
			return
		}
		rows = append(rows, models.Setting{Key: key, Value: value})
	}

	ctx := c.Request.Context()
	if errSave := h.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rows).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, h.db); errRefresh != nil {
		log.WithError(errRefresh).Error("settings snapshot refresh failed after update")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
