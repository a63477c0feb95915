package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/gorm"
)

// defaultUserPageSize bounds admin user listings.
const defaultUserPageSize = 50

// UserHandler exposes back-office user lookup.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler wires the admin user handler.
func NewUserHandler(conn *gorm.DB) *UserHandler {
	return &UserHandler{db: conn}
}

// List returns users, optionally filtered by a case-insensitive name or
// phone substring via ?q=.
func (h *UserHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q+"%")
		nameExpr := db.CaseInsensitiveLikeExpr(h.db, "name")
		phoneExpr := db.CaseInsensitiveLikeExpr(h.db, "phone")
		query = query.Where(nameExpr+" OR "+phoneExpr, pattern, pattern)
	}

	limit := defaultUserPageSize
	if raw := c.Query("limit"); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed <= defaultUserPageSize {
			limit = parsed
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			offset = parsed
		}
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var users []models.User
	if errFind := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, user := range users {
		out = append(out, gin.H{
			"id":          user.ID,
			"name":        user.Name,
			"phone":       user.Phone,
			"pix_key":     user.PixKey,
			"referred_by": user.ReferredBy,
			"created_at":  user.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "users": out})
}
