package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// dbConfigSnapshot holds the in-memory DB config values.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// globalDBConfig stores the latest dbConfigSnapshot atomically.
var globalDBConfig atomic.Value // stores dbConfigSnapshot

// init seeds the global DB config snapshot.
func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		copied := make([]byte, len(v))
		copy(copied, v)
		next[key] = copied
	}

	globalDBConfig.Store(dbConfigSnapshot{
		updatedAt: updatedAt.UTC(),
		values:    next,
	})
}

// DBConfigValue returns a copy of the raw config value for a key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	cfg := loadDBConfig()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := cfg.values[key]
	if !ok || val == nil {
		return nil, ok
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// loadDBConfig returns the current snapshot with safe defaults.
func loadDBConfig() dbConfigSnapshot {
	v := globalDBConfig.Load()
	cfg, ok := v.(dbConfigSnapshot)
	if !ok || cfg.values == nil {
		return dbConfigSnapshot{values: map[string]json.RawMessage{}}
	}
	return cfg
}

// floatValue decodes a float setting, falling back when absent or malformed.
func floatValue(key string, fallback float64) float64 {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return fallback
	}
	var out float64
	if errDecode := json.Unmarshal(raw, &out); errDecode != nil || out <= 0 {
		return fallback
	}
	return out
}

// intValue decodes an int setting, falling back when absent or malformed.
func intValue(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return fallback
	}
	var out int
	if errDecode := json.Unmarshal(raw, &out); errDecode != nil || out <= 0 {
		return fallback
	}
	return out
}

// WeeklyPrizeAmount returns the configured weekly affiliate prize in BRL.
func WeeklyPrizeAmount() float64 {
	return floatValue(WeeklyPrizeAmountKey, DefaultWeeklyPrizeAmount)
}

// MonthlyPrizeAmount returns the configured monthly affiliate prize in BRL.
func MonthlyPrizeAmount() float64 {
	return floatValue(MonthlyPrizeAmountKey, DefaultMonthlyPrizeAmount)
}

// PaymentExpiryMinutes returns how long a PIX charge stays payable.
func PaymentExpiryMinutes() int {
	return intValue(PaymentExpiryMinutesKey, DefaultPaymentExpiryMinutes)
}

// LeaderboardSize returns the public leaderboard length.
func LeaderboardSize() int {
	return intValue(LeaderboardSizeKey, DefaultLeaderboardSize)
}
