package public

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/config"
	"github.com/rifapix/rifapix/internal/http/api/public/handlers"
	"github.com/rifapix/rifapix/internal/payment"
	"github.com/rifapix/rifapix/internal/referral"
	"github.com/rifapix/rifapix/internal/security"
	"gorm.io/gorm"
)

// RegisterPublicRoutes registers the consumer-facing API.
func RegisterPublicRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, payments *payment.Service, engine *referral.Engine, ranking *referral.Ranking) {
	if r == nil || db == nil {
		return
	}

	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, engine)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	raffleHandler := handlers.NewRaffleHandler(db)
	api.GET("/raffles", raffleHandler.List)
	api.GET("/raffles/:id", raffleHandler.Get)

	pollHandler := handlers.NewPollHandler(db, payments)
	api.GET("/polls", pollHandler.List)

	leaderboardHandler := handlers.NewLeaderboardHandler(ranking)
	api.GET("/leaderboard", leaderboardHandler.Get)

	webhookHandler := handlers.NewWebhookHandler(payments)
	api.POST("/webhooks/pix", webhookHandler.HandlePix)

	authed := api.Group("")
	authed.Use(userAuthMiddleware(jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)

	purchaseHandler := handlers.NewPurchaseHandler(db, payments)
	authed.POST("/purchases", purchaseHandler.Create)
	authed.GET("/payments/:id", purchaseHandler.Status)
	authed.GET("/tickets", purchaseHandler.ListTickets)

	authed.POST("/polls/:id/entries", pollHandler.Enter)

	affiliateHandler := handlers.NewAffiliateHandler(db)
	authed.POST("/affiliate", affiliateHandler.OptIn)
	authed.GET("/affiliate", affiliateHandler.Summary)
}

// userAuthMiddleware validates user JWTs and loads the user ID into context.
func userAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errParse := security.ParseToken(jwtCfg.Secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Next()
	}
}
