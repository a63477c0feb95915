package settings

import (
	"encoding/json"
	"testing"
	"time"
)

func resetSnapshot() {
	StoreDBConfig(time.Time{}, map[string]json.RawMessage{})
}

func TestTypedGettersFallBackToDefaults(t *testing.T) {
	resetSnapshot()
	t.Cleanup(resetSnapshot)

	if got := WeeklyPrizeAmount(); got != DefaultWeeklyPrizeAmount {
		t.Fatalf("weekly prize = %.2f, want default %.2f", got, DefaultWeeklyPrizeAmount)
	}
	if got := PaymentExpiryMinutes(); got != DefaultPaymentExpiryMinutes {
		t.Fatalf("expiry = %d, want default %d", got, DefaultPaymentExpiryMinutes)
	}
	if got := LeaderboardSize(); got != DefaultLeaderboardSize {
		t.Fatalf("leaderboard size = %d, want default %d", got, DefaultLeaderboardSize)
	}
}

func TestTypedGettersReadSnapshot(t *testing.T) {
	t.Cleanup(resetSnapshot)

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		WeeklyPrizeAmountKey:    json.RawMessage(`250.5`),
		PaymentExpiryMinutesKey: json.RawMessage(`15`),
	})

	if got := WeeklyPrizeAmount(); got != 250.5 {
		t.Fatalf("weekly prize = %.2f, want 250.50", got)
	}
	if got := PaymentExpiryMinutes(); got != 15 {
		t.Fatalf("expiry = %d, want 15", got)
	}
	// Unset keys keep their defaults.
	if got := MonthlyPrizeAmount(); got != DefaultMonthlyPrizeAmount {
		t.Fatalf("monthly prize = %.2f, want default %.2f", got, DefaultMonthlyPrizeAmount)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Cleanup(resetSnapshot)

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		WeeklyPrizeAmountKey: json.RawMessage(`"not a number"`),
		LeaderboardSizeKey:   json.RawMessage(`-3`),
	})

	if got := WeeklyPrizeAmount(); got != DefaultWeeklyPrizeAmount {
		t.Fatalf("malformed weekly prize = %.2f, want default", got)
	}
	if got := LeaderboardSize(); got != DefaultLeaderboardSize {
		t.Fatalf("non-positive leaderboard size = %d, want default", got)
	}
}

func TestDBConfigValueCopies(t *testing.T) {
	t.Cleanup(resetSnapshot)

	original := json.RawMessage(`42`)
	StoreDBConfig(time.Now(), map[string]json.RawMessage{LeaderboardSizeKey: original})

	value, ok := DBConfigValue(LeaderboardSizeKey)
	if !ok {
		t.Fatalf("value missing")
	}
	value[0] = 'X'

	again, _ := DBConfigValue(LeaderboardSizeKey)
	if string(again) != "42" {
		t.Fatalf("snapshot mutated through returned value: %s", again)
	}
}
