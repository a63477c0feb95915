package referral

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/gorm"
)

// newTestCache backs the ranking cache with an in-process redis server.
func newTestCache(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

// seedAffiliateWithReferrals creates an affiliate and n participant referrals
// inside the current week window.
func seedAffiliateWithReferrals(t *testing.T, conn *gorm.DB, code string, n int) models.Affiliate {
	t.Helper()

	owner := models.User{Name: "Dono " + code, Phone: "+55119" + code, PasswordHash: "x"}
	if errSeed := conn.Create(&owner).Error; errSeed != nil {
		t.Fatalf("seed owner %s: %v", code, errSeed)
	}
	affiliate := models.Affiliate{UserID: owner.ID, Code: code, Status: models.AffiliateActive}
	if errSeed := conn.Create(&affiliate).Error; errSeed != nil {
		t.Fatalf("seed affiliate %s: %v", code, errSeed)
	}

	weekStart := WeekStart(time.Now().In(db.Location()))
	for i := 0; i < n; i++ {
		referred := models.User{
			Name:         fmt.Sprintf("Indicado %s %d", code, i),
			Phone:        fmt.Sprintf("+5511%s%04d", code, i),
			PasswordHash: "x",
			ReferredBy:   code,
		}
		if errSeed := conn.Create(&referred).Error; errSeed != nil {
			t.Fatalf("seed referred user: %v", errSeed)
		}
		referral := models.AffiliateReferral{
			AffiliateID:    affiliate.ID,
			ReferredUserID: referred.ID,
			Status:         models.ReferralParticipant,
			WeekStart:      &weekStart,
		}
		if errSeed := conn.Create(&referral).Error; errSeed != nil {
			t.Fatalf("seed referral: %v", errSeed)
		}
	}
	return affiliate
}

func TestLeaderboardEmptyWeek(t *testing.T) {
	conn := openTestDB(t)
	ranking := NewRanking(conn, nil)

	entries, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 10)
	if errBoard != nil {
		t.Fatalf("leaderboard: %v", errBoard)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0 for an empty week", len(entries))
	}
}

func TestLeaderboardOrdersByCount(t *testing.T) {
	conn := openTestDB(t)
	ranking := NewRanking(conn, nil)

	seedAffiliateWithReferrals(t, conn, "20001", 1)
	seedAffiliateWithReferrals(t, conn, "20002", 3)
	seedAffiliateWithReferrals(t, conn, "20003", 2)

	entries, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 10)
	if errBoard != nil {
		t.Fatalf("leaderboard: %v", errBoard)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	wantCodes := []string{"20002", "20003", "20001"}
	wantCounts := []int{3, 2, 1}
	for i, entry := range entries {
		if entry.Rank != i+1 {
			t.Fatalf("entry %d rank = %d, want %d", i, entry.Rank, i+1)
		}
		if entry.AffiliateCode != wantCodes[i] {
			t.Fatalf("entry %d code = %s, want %s", i, entry.AffiliateCode, wantCodes[i])
		}
		if entry.ReferralCount != wantCounts[i] {
			t.Fatalf("entry %d count = %d, want %d", i, entry.ReferralCount, wantCounts[i])
		}
	}
}

func TestLeaderboardTruncatesToTopN(t *testing.T) {
	conn := openTestDB(t)
	ranking := NewRanking(conn, nil)

	seedAffiliateWithReferrals(t, conn, "30001", 5)
	seedAffiliateWithReferrals(t, conn, "30002", 4)
	seedAffiliateWithReferrals(t, conn, "30003", 3)

	entries, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 2)
	if errBoard != nil {
		t.Fatalf("leaderboard: %v", errBoard)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].AffiliateCode != "30001" || entries[1].AffiliateCode != "30002" {
		t.Fatalf("top-2 = %s, %s; want 30001, 30002", entries[0].AffiliateCode, entries[1].AffiliateCode)
	}
}

func TestLeaderboardCacheKeepsFullRankingAcrossLimits(t *testing.T) {
	conn := openTestDB(t)
	ranking := NewRanking(conn, newTestCache(t))

	seedAffiliateWithReferrals(t, conn, "50001", 5)
	seedAffiliateWithReferrals(t, conn, "50002", 4)
	seedAffiliateWithReferrals(t, conn, "50003", 3)
	seedAffiliateWithReferrals(t, conn, "50004", 2)
	seedAffiliateWithReferrals(t, conn, "50005", 1)

	// A small request warms the cache first.
	first, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 1)
	if errBoard != nil {
		t.Fatalf("leaderboard limit=1: %v", errBoard)
	}
	if len(first) != 1 || first[0].AffiliateCode != "50001" {
		t.Fatalf("limit=1 = %+v, want single entry 50001", first)
	}

	second, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 10)
	if errBoard != nil {
		t.Fatalf("leaderboard limit=10: %v", errBoard)
	}
	if len(second) != 5 {
		t.Fatalf("entries after limit=1 warm-up = %d, want all 5", len(second))
	}
	if second[0].AffiliateCode != "50001" || second[4].AffiliateCode != "50005" {
		t.Fatalf("full ranking = %+v, want 50001..50005 by count", second)
	}
}

func TestLeaderboardServesFromCacheWithinTTL(t *testing.T) {
	conn := openTestDB(t)
	ranking := NewRanking(conn, newTestCache(t))

	seedAffiliateWithReferrals(t, conn, "60001", 2)
	seedAffiliateWithReferrals(t, conn, "60002", 1)

	if _, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 10); errBoard != nil {
		t.Fatalf("warm cache: %v", errBoard)
	}

	// Wipe the backing table; a fresh read inside the TTL must not notice.
	if errWipe := conn.Exec("DELETE FROM affiliate_referrals").Error; errWipe != nil {
		t.Fatalf("wipe referrals: %v", errWipe)
	}

	entries, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 1)
	if errBoard != nil {
		t.Fatalf("cached leaderboard: %v", errBoard)
	}
	if len(entries) != 1 || entries[0].AffiliateCode != "60001" {
		t.Fatalf("cached top-1 = %+v, want 60001", entries)
	}
}

func TestLeaderboardExcludesRegisteredAndOtherWeeks(t *testing.T) {
	conn := openTestDB(t)
	ranking := NewRanking(conn, nil)

	affiliate := seedAffiliateWithReferrals(t, conn, "40001", 1)

	// A registered referral and a participant from last week must not count.
	registeredUser := models.User{Name: "Registrado", Phone: "+5511400010099", PasswordHash: "x"}
	if errSeed := conn.Create(&registeredUser).Error; errSeed != nil {
		t.Fatalf("seed registered user: %v", errSeed)
	}
	if errSeed := conn.Create(&models.AffiliateReferral{
		AffiliateID:    affiliate.ID,
		ReferredUserID: registeredUser.ID,
		Status:         models.ReferralRegistered,
	}).Error; errSeed != nil {
		t.Fatalf("seed registered referral: %v", errSeed)
	}

	lastWeek := WeekStart(time.Now().In(db.Location())).AddDate(0, 0, -7)
	lastWeekUser := models.User{Name: "Semana passada", Phone: "+5511400010098", PasswordHash: "x"}
	if errSeed := conn.Create(&lastWeekUser).Error; errSeed != nil {
		t.Fatalf("seed last-week user: %v", errSeed)
	}
	if errSeed := conn.Create(&models.AffiliateReferral{
		AffiliateID:    affiliate.ID,
		ReferredUserID: lastWeekUser.ID,
		Status:         models.ReferralParticipant,
		WeekStart:      &lastWeek,
	}).Error; errSeed != nil {
		t.Fatalf("seed last-week referral: %v", errSeed)
	}

	entries, errBoard := ranking.Leaderboard(context.Background(), time.Now(), 10)
	if errBoard != nil {
		t.Fatalf("leaderboard: %v", errBoard)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ReferralCount != 1 {
		t.Fatalf("count = %d, want 1 (current-week participants only)", entries[0].ReferralCount)
	}
}
