package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/config"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/referral"
	"github.com/rifapix/rifapix/internal/security"
	"github.com/rifapix/rifapix/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler handles user registration and login.
type AuthHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	referral *referral.Engine
}

// NewAuthHandler wires the auth handler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, engine *referral.Engine) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, referral: engine}
}

// registerRequest captures the signup payload.
type registerRequest struct {
	Name         string `json:"name"`          // Display name.
	Phone        string `json:"phone"`         // Login identifier.
	Password     string `json:"password"`      // Plaintext password, hashed before storage.
	PixKey       string `json:"pix_key"`       // Optional payout key.
	ReferralCode string `json:"referral_code"` // Optional affiliate code.
}

// Register creates a user account. A valid affiliate code creates the
// registered-state referral row; an invalid one is ignored so signup never
// fails on a bad code.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	phone := strings.TrimSpace(body.Phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing phone"})
		return
	}
	if len(body.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	code := strings.TrimSpace(body.ReferralCode)
	user := models.User{
		Name:         name,
		Phone:        phone,
		PasswordHash: hash,
		PixKey:       strings.TrimSpace(body.PixKey),
		ReferredBy:   code,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "phone already registered"})
		return
	}

	if code != "" {
		if errReferral := h.referral.RegisterSignup(c.Request.Context(), code, user.ID); errReferral != nil {
			if errors.Is(errReferral, referral.ErrCodeNotFound) {
				// Unknown code: keep it on the profile for audit, no referral row.
				log.WithFields(log.Fields{"user_id": user.ID, "code": code}).Info("signup with unknown referral code")
			} else {
				log.WithError(errReferral).WithField("user_id", user.ID).Error("signup referral creation failed")
			}
		}
	}

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Phone, user.Name, h.jwtCfg.UserExpiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"phone": util.MaskPhone(user.Phone),
		},
	})
}

// loginRequest captures the login payload.
type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	phone := strings.TrimSpace(body.Phone)
	if phone == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("phone = ?", phone).
		First(&user).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !security.CheckPassword(user.PasswordHash, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Phone, user.Name, h.jwtCfg.UserExpiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
