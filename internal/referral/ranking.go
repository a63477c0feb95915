package referral

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// leaderboardCacheTTL bounds staleness of the cached live leaderboard.
const leaderboardCacheTTL = 30 * time.Second

// LeaderboardEntry is one row of the live weekly leaderboard.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	AffiliateCode string `json:"affiliate_code"`
	DisplayName   string `json:"display_name"`
	ReferralCount int    `json:"referral_count"`
}

// Ranking computes the live leaderboard for the current open week.
// Pure read; safe to call arbitrarily often and concurrently.
type Ranking struct {
	db    *gorm.DB
	cache *redis.Client // Optional; nil disables caching.
}

// NewRanking wires the ranking service. cache may be nil.
func NewRanking(conn *gorm.DB, cache *redis.Client) *Ranking {
	return &Ranking{db: conn, cache: cache}
}

// Leaderboard returns the top-N affiliates by qualifying referrals in the
// week containing now. Zero rows yields an empty slice, not an error.
func (r *Ranking) Leaderboard(ctx context.Context, now time.Time, topN int) ([]LeaderboardEntry, error) {
	if topN <= 0 {
		topN = 10
	}
	weekStart, weekEnd := WeekWindow(now.In(db.Location()))

	// The cached value is the full week ranking; every caller trims to its
	// own topN on read, so a small request cannot shrink what later
	// requests see for the rest of the TTL.
	cacheKey := "leaderboard:week:" + weekStart.Format("2006-01-02")
	if r.cache != nil {
		if cached, errGet := r.cache.Get(ctx, cacheKey).Bytes(); errGet == nil {
			var entries []LeaderboardEntry
			if errDecode := json.Unmarshal(cached, &entries); errDecode == nil {
				return trimTopN(entries, topN), nil
			}
		}
	}

	var referrals []models.AffiliateReferral
	if errFind := r.db.WithContext(ctx).
		Where("status = ? AND week_start >= ? AND week_start < ?",
			models.ReferralParticipant, weekStart, weekEnd).
		Find(&referrals).Error; errFind != nil {
		return nil, errFind
	}

	counts := make(map[uint64]int, len(referrals))
	for _, referral := range referrals {
		counts[referral.AffiliateID]++
	}

	type ranked struct {
		affiliateID uint64
		count       int
	}
	rows := make([]ranked, 0, len(counts))
	for id, count := range counts {
		rows = append(rows, ranked{affiliateID: id, count: count})
	}
	// Live display only; count ordering is enough, id keeps it stable.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].affiliateID < rows[j].affiliateID
	})

	entries := make([]LeaderboardEntry, 0, len(rows))
	if len(rows) > 0 {
		ids := make([]uint64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.affiliateID)
		}
		var affiliates []models.Affiliate
		if errFind := r.db.WithContext(ctx).
			Preload("User").
			Where("id IN ?", ids).
			Find(&affiliates).Error; errFind != nil {
			return nil, errFind
		}
		byID := make(map[uint64]models.Affiliate, len(affiliates))
		for _, affiliate := range affiliates {
			byID[affiliate.ID] = affiliate
		}
		for i, row := range rows {
			affiliate := byID[row.affiliateID]
			entries = append(entries, LeaderboardEntry{
				Rank:          i + 1,
				AffiliateCode: affiliate.Code,
				DisplayName:   affiliate.User.Name,
				ReferralCount: row.count,
			})
		}
	}

	if r.cache != nil {
		if encoded, errEncode := json.Marshal(entries); errEncode == nil {
			if errSet := r.cache.Set(ctx, cacheKey, encoded, leaderboardCacheTTL).Err(); errSet != nil {
				log.WithError(errSet).Debug("leaderboard cache write failed")
			}
		}
	}
	return trimTopN(entries, topN), nil
}

// trimTopN caps the ranking to the caller's window.
func trimTopN(entries []LeaderboardEntry, topN int) []LeaderboardEntry {
	if len(entries) > topN {
		return entries[:topN]
	}
	return entries
}
