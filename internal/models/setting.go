package models

import (
	"encoding/json"
	"time"
)

// Setting stores a runtime-tunable configuration entry in the database,
// such as prize amounts and the payment expiry window.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     json.RawMessage `gorm:"type:json"`                                         // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
