package models

import (
	"time"

	"gorm.io/datatypes"
)

// PollStatus describes the lifecycle state of a prediction poll.
type PollStatus string

// PollStatus constants define poll lifecycle states.
const (
	// PollStatusActive marks a poll open for paid entries.
	PollStatusActive PollStatus = "active"
	// PollStatusClosed marks a poll no longer accepting entries, outcome pending.
	PollStatusClosed PollStatus = "closed"
	// PollStatusCompleted marks a poll whose winning option has been set.
	PollStatusCompleted PollStatus = "completed"
)

// Poll represents a prediction market question with paid option entries.
type Poll struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Question string         `gorm:"type:text;not null"` // Public question.
	Options  datatypes.JSON `gorm:"type:json;not null"` // Ordered option labels, JSON array of strings.

	EntryPrice float64 `gorm:"type:decimal(20,2);not null"` // Price per entry in BRL.
	PrizePool  float64 `gorm:"type:decimal(20,2);not null"` // Advertised prize pool in BRL.

	Status        PollStatus `gorm:"type:text;not null;index"` // Lifecycle state.
	WinningOption *int       // Winning option index, set once on settlement.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// PollEntry represents a user's selection of one option in a poll.
// A user holds at most one paid entry per poll.
type PollEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PollID uint64 `gorm:"not null;uniqueIndex:idx_poll_user"` // Entered poll.
	UserID uint64 `gorm:"not null;uniqueIndex:idx_poll_user"` // Entering user.

	OptionIndex int `gorm:"not null"` // Chosen option.

	PaymentStatus TicketStatus `gorm:"type:text;not null;index"` // pending or paid.

	PixPaymentID *uint64 `gorm:"index"` // Settling payment.

	Poll Poll `gorm:"foreignKey:PollID"` // Poll relation.
	User User `gorm:"foreignKey:UserID"` // User relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
