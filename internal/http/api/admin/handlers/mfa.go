package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/security"
	"gorm.io/gorm"
)

// totpIssuer names the platform in authenticator apps.
const totpIssuer = "RifaPIX"

// pendingSecretTTL bounds how long a prepared TOTP secret awaits confirmation.
const pendingSecretTTL = 10 * time.Minute

// pendingSecret holds a prepared-but-unconfirmed TOTP secret.
type pendingSecret struct {
	secret    string
	expiresAt time.Time
}

// MFAHandler handles TOTP enrollment for admins.
type MFAHandler struct {
	db *gorm.DB

	mu      sync.Mutex
	pending map[uint64]pendingSecret
}

// NewMFAHandler wires the MFA handler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db, pending: make(map[uint64]pendingSecret)}
}

// Status reports whether the admin has TOTP enabled.
func (h *MFAHandler) Status(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).
		Select("id", "totp_enabled").
		First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": admin.TOTPEnabled})
}

// PrepareTOTP generates a new secret pending confirmation.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).
		Select("id", "username").
		First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	secret, url, errGenerate := security.GenerateTOTPSecret(totpIssuer, admin.Username)
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "totp generation failed"})
		return
	}

	h.mu.Lock()
	h.pending[adminID] = pendingSecret{secret: secret, expiresAt: time.Now().Add(pendingSecretTTL)}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// confirmTOTPRequest carries the code proving the authenticator was enrolled.
type confirmTOTPRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP validates the first code and persists the secret.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return
	}

	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	h.mu.Lock()
	entry, found := h.pending[adminID]
	h.mu.Unlock()
	if !found || time.Now().After(entry.expiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending totp secret"})
		return
	}
	if !security.ValidateTOTP(entry.secret, body.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", adminID).
		Updates(map[string]any{"totp_secret": entry.secret, "totp_enabled": true}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	h.mu.Lock()
	delete(h.pending, adminID)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

// DisableTOTP turns MFA off after validating a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return
	}

	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).
		Select("id", "totp_secret", "totp_enabled").
		First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if admin.TOTPEnabled && !security.ValidateTOTP(admin.TOTPSecret, body.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", adminID).
		Updates(map[string]any{"totp_secret": "", "totp_enabled": false}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}
