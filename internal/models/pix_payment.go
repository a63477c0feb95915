package models

import (
	"time"

	"gorm.io/datatypes"
)

// PixPaymentStatus describes the lifecycle state of a payment intent.
type PixPaymentStatus string

// PixPaymentStatus constants define payment lifecycle states.
const (
	// PixPaymentPending marks a charge created but not yet confirmed.
	PixPaymentPending PixPaymentStatus = "pending"
	// PixPaymentPaid marks a charge confirmed by the gateway webhook.
	PixPaymentPaid PixPaymentStatus = "paid"
	// PixPaymentError marks a payment confirmed by the gateway whose ticket
	// materialization failed. Terminal; requires operator intervention.
	PixPaymentError PixPaymentStatus = "error"
	// PixPaymentExpired marks a pending charge abandoned past its expiry.
	// Not terminal for settlement: a late webhook is still honored.
	PixPaymentExpired PixPaymentStatus = "expired"
)

// PixPayment represents a PIX payment intent for raffle numbers or a poll entry.
type PixPayment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64  `gorm:"not null;index"` // Paying user.
	RaffleID *uint64 `gorm:"index"`          // Raffle purchased from, nil for poll entries.
	PollID   *uint64 `gorm:"index"`          // Poll entered, nil for raffle purchases.

	SelectedNumbers datatypes.JSON `gorm:"type:json"` // Ticket numbers chosen, JSON array of ints.
	SelectedOption  *int           // Poll option index, nil for raffle purchases.

	Amount float64 `gorm:"type:decimal(20,2);not null"` // Charge amount in BRL.

	// GatewayTransactionID is assigned after the gateway accepts the charge;
	// the payment row is created first, so the column is nullable with NULLs
	// exempt from the unique index.
	GatewayTransactionID *string `gorm:"type:text;uniqueIndex"`
	ExternalID           string  `gorm:"type:text;not null;uniqueIndex"` // Our idempotency id sent to the gateway.
	PixPayload           string  `gorm:"type:text"`                      // Copy-paste PIX payload shown to the user.

	Status PixPaymentStatus `gorm:"type:text;not null;index"` // Lifecycle state.

	WebhookPayload datatypes.JSON `gorm:"type:json"` // Raw confirmation payload kept for audit.

	ExpiresAt time.Time  `gorm:"not null"` // Abandon-after deadline (10 minutes from creation).
	PaidAt    *time.Time // Confirmation time, if paid.

	User User `gorm:"foreignKey:UserID"` // Payer relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
