package payout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/referral"
	"github.com/rifapix/rifapix/internal/settings"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedAffiliate(t *testing.T, conn *gorm.DB, code string) models.Affiliate {
	t.Helper()
	owner := models.User{Name: "Dono " + code, Phone: "+55118" + code, PasswordHash: "x"}
	if errSeed := conn.Create(&owner).Error; errSeed != nil {
		t.Fatalf("seed owner %s: %v", code, errSeed)
	}
	affiliate := models.Affiliate{UserID: owner.ID, Code: code, Status: models.AffiliateActive}
	if errSeed := conn.Create(&affiliate).Error; errSeed != nil {
		t.Fatalf("seed affiliate %s: %v", code, errSeed)
	}
	return affiliate
}

// seedParticipants creates n participant referrals for an affiliate with the
// given week_start and first-referral timestamp.
func seedParticipants(t *testing.T, conn *gorm.DB, affiliate models.Affiliate, weekStart, firstAt time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		referred := models.User{
			Name:         fmt.Sprintf("Indicado %s %d", affiliate.Code, i),
			Phone:        fmt.Sprintf("+5511%s%04d", affiliate.Code, i),
			PasswordHash: "x",
			ReferredBy:   affiliate.Code,
		}
		if errSeed := conn.Create(&referred).Error; errSeed != nil {
			t.Fatalf("seed referred user: %v", errSeed)
		}
		referral := models.AffiliateReferral{
			AffiliateID:    affiliate.ID,
			ReferredUserID: referred.ID,
			Status:         models.ReferralParticipant,
			WeekStart:      &weekStart,
			CreatedAt:      firstAt.Add(time.Duration(i) * time.Hour),
		}
		if errSeed := conn.Create(&referral).Error; errSeed != nil {
			t.Fatalf("seed referral: %v", errSeed)
		}
	}
}

func TestRunWeeklyRecordsWinnerWithTieBreak(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	now := time.Now().In(db.Location())
	weekStart, _ := referral.PreviousWeekWindow(now)

	first := seedAffiliate(t, conn, "10001")
	second := seedAffiliate(t, conn, "10002")
	third := seedAffiliate(t, conn, "10003")

	// first and second tie on count; first referred earlier and must win.
	seedParticipants(t, conn, first, weekStart, weekStart.Add(2*time.Hour), 3)
	seedParticipants(t, conn, second, weekStart, weekStart.Add(26*time.Hour), 3)
	seedParticipants(t, conn, third, weekStart, weekStart.Add(1*time.Hour), 1)

	result, errRun := calc.RunWeekly(context.Background(), now)
	if errRun != nil {
		t.Fatalf("run weekly: %v", errRun)
	}
	if result.Outcome != OutcomeRecorded {
		t.Fatalf("outcome = %v, want OutcomeRecorded", result.Outcome)
	}
	if result.AffiliateID != first.ID {
		t.Fatalf("winner = %d, want %d (earliest first referral breaks the tie)", result.AffiliateID, first.ID)
	}
	if result.ReferralCount != 3 {
		t.Fatalf("referral count = %d, want 3", result.ReferralCount)
	}
	if result.PrizeAmount != settings.DefaultWeeklyPrizeAmount {
		t.Fatalf("prize = %.2f, want default %.2f", result.PrizeAmount, settings.DefaultWeeklyPrizeAmount)
	}

	var record models.WeeklyAffiliateWinner
	if errFind := conn.First(&record).Error; errFind != nil {
		t.Fatalf("winner record missing: %v", errFind)
	}
	if !record.WeekStart.Equal(weekStart) {
		t.Fatalf("record week_start = %v, want %v", record.WeekStart, weekStart)
	}
	if !record.WeekEnd.Equal(weekStart.AddDate(0, 0, 6)) {
		t.Fatalf("record week_end = %v, want the window's sunday %v", record.WeekEnd, weekStart.AddDate(0, 0, 6))
	}
}

func TestRunWeeklyIsIdempotentPerWindow(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	now := time.Now().In(db.Location())
	weekStart, _ := referral.PreviousWeekWindow(now)
	affiliate := seedAffiliate(t, conn, "11001")
	seedParticipants(t, conn, affiliate, weekStart, weekStart.Add(time.Hour), 2)

	if result, errRun := calc.RunWeekly(context.Background(), now); errRun != nil || result.Outcome != OutcomeRecorded {
		t.Fatalf("first run: outcome=%v err=%v", result.Outcome, errRun)
	}

	result, errRun := calc.RunWeekly(context.Background(), now)
	if errRun != nil {
		t.Fatalf("second run: %v", errRun)
	}
	if result.Outcome != OutcomeAlreadyProcessed {
		t.Fatalf("second run outcome = %v, want OutcomeAlreadyProcessed", result.Outcome)
	}
	if result.AffiliateID != affiliate.ID {
		t.Fatalf("second run winner = %d, want %d", result.AffiliateID, affiliate.ID)
	}

	var count int64
	if errCount := conn.Model(&models.WeeklyAffiliateWinner{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count winners: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("winner records = %d, want exactly 1 per window", count)
	}
}

func TestRunWeeklyNoReferrals(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	result, errRun := calc.RunWeekly(context.Background(), time.Now())
	if errRun != nil {
		t.Fatalf("run weekly: %v", errRun)
	}
	if result.Outcome != OutcomeNoReferrals {
		t.Fatalf("outcome = %v, want OutcomeNoReferrals", result.Outcome)
	}

	var count int64
	if errCount := conn.Model(&models.WeeklyAffiliateWinner{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count winners: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("winner records = %d, want 0 for an empty window", count)
	}
}

func TestRunWeeklyIgnoresCurrentWeek(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	now := time.Now().In(db.Location())
	currentWeek := referral.WeekStart(now)
	affiliate := seedAffiliate(t, conn, "12001")
	seedParticipants(t, conn, affiliate, currentWeek, currentWeek.Add(time.Hour), 2)

	result, errRun := calc.RunWeekly(context.Background(), now)
	if errRun != nil {
		t.Fatalf("run weekly: %v", errRun)
	}
	if result.Outcome != OutcomeNoReferrals {
		t.Fatalf("outcome = %v, want OutcomeNoReferrals (current week is still open)", result.Outcome)
	}
}

func TestRunMonthlyRecordsWinner(t *testing.T) {
	conn := openTestDB(t)
	calc := NewCalculator(conn)

	now := time.Now().In(db.Location())
	monthStart, _ := referral.PreviousMonthWindow(now)

	winner := seedAffiliate(t, conn, "13001")
	runnerUp := seedAffiliate(t, conn, "13002")
	seedParticipants(t, conn, winner, monthStart, monthStart.Add(time.Hour), 4)
	seedParticipants(t, conn, runnerUp, monthStart, monthStart.Add(time.Hour), 2)

	result, errRun := calc.RunMonthly(context.Background(), now)
	if errRun != nil {
		t.Fatalf("run monthly: %v", errRun)
	}
	if result.Outcome != OutcomeRecorded {
		t.Fatalf("outcome = %v, want OutcomeRecorded", result.Outcome)
	}
	if result.AffiliateID != winner.ID {
		t.Fatalf("winner = %d, want %d", result.AffiliateID, winner.ID)
	}
	if result.PrizeAmount != settings.DefaultMonthlyPrizeAmount {
		t.Fatalf("prize = %.2f, want default %.2f", result.PrizeAmount, settings.DefaultMonthlyPrizeAmount)
	}

	var record models.MonthlyAffiliateWinner
	if errFind := conn.First(&record).Error; errFind != nil {
		t.Fatalf("winner record missing: %v", errFind)
	}
	if record.MonthYear != monthStart.Format("2006-01") {
		t.Fatalf("month_year = %s, want %s", record.MonthYear, monthStart.Format("2006-01"))
	}

	// Rerun is a no-op.
	result, errRun = calc.RunMonthly(context.Background(), now)
	if errRun != nil {
		t.Fatalf("monthly rerun: %v", errRun)
	}
	if result.Outcome != OutcomeAlreadyProcessed {
		t.Fatalf("rerun outcome = %v, want OutcomeAlreadyProcessed", result.Outcome)
	}
}
