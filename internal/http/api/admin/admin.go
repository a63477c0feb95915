package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/config"
	"github.com/rifapix/rifapix/internal/http/api/admin/handlers"
	"github.com/rifapix/rifapix/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the back-office API.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	api := r.Group("/api/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	api.POST("/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(adminAuthMiddleware(jwtCfg))

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	raffleHandler := handlers.NewRaffleHandler(db)
	authed.GET("/raffles", raffleHandler.List)
	authed.POST("/raffles", raffleHandler.Create)
	authed.POST("/raffles/:id/activate", raffleHandler.Activate)
	authed.POST("/raffles/:id/complete", raffleHandler.Complete)
	authed.POST("/raffles/:id/cancel", raffleHandler.Cancel)

	pollHandler := handlers.NewPollHandler(db)
	authed.POST("/polls", pollHandler.Create)
	authed.POST("/polls/:id/close", pollHandler.Close)
	authed.POST("/polls/:id/settle", pollHandler.Settle)

	userHandler := handlers.NewUserHandler(db)
	authed.GET("/users", userHandler.List)

	winnerHandler := handlers.NewWinnerHandler(db)
	authed.GET("/winners/weekly", winnerHandler.ListWeekly)
	authed.GET("/winners/monthly", winnerHandler.ListMonthly)

	payoutHandler := handlers.NewPayoutHandler(db)
	authed.POST("/payouts/weekly/run", payoutHandler.RunWeekly)
	authed.POST("/payouts/monthly/run", payoutHandler.RunMonthly)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.List)
	authed.PUT("/settings", settingsHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin ID into context.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" || token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, errParse := security.ParseAdminToken(jwtCfg.Secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
