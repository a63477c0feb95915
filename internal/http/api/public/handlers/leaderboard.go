package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/referral"
	"github.com/rifapix/rifapix/internal/settings"
)

// LeaderboardHandler serves the live weekly affiliate leaderboard.
type LeaderboardHandler struct {
	ranking *referral.Ranking
}

// NewLeaderboardHandler wires the leaderboard handler.
func NewLeaderboardHandler(ranking *referral.Ranking) *LeaderboardHandler {
	return &LeaderboardHandler{ranking: ranking}
}

// Get returns the top affiliates of the current open week.
// An empty week yields an empty list.
func (h *LeaderboardHandler) Get(c *gin.Context) {
	topN := settings.LeaderboardSize()
	if raw := c.Query("limit"); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed < topN {
			topN = parsed
		}
	}

	entries, errRank := h.ranking.Leaderboard(c.Request.Context(), time.Now(), topN)
	if errRank != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
