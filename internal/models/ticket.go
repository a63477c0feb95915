package models

import "time"

// TicketStatus describes how a ticket was (or will be) paid for.
type TicketStatus string

// TicketStatus constants define ticket payment states.
const (
	// TicketStatusPending marks a number reserved by an unconfirmed payment.
	TicketStatusPending TicketStatus = "pending"
	// TicketStatusPaid marks a number bought and settled.
	TicketStatusPaid TicketStatus = "paid"
	// TicketStatusBonus marks a number granted free to an affiliate.
	// Bonus tickets are draw-eligible but excluded from revenue.
	TicketStatusBonus TicketStatus = "bonus"
)

// Ticket represents ownership of one number in one raffle.
//
// The unique index on (raffle_id, ticket_number) is the real guard against
// double-selling a number; the pre-checks in the purchase and allocation
// paths are an early reject, not the source of truth.
type Ticket struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RaffleID     uint64 `gorm:"not null;uniqueIndex:idx_raffle_number"` // Raffle the number belongs to.
	TicketNumber int    `gorm:"not null;uniqueIndex:idx_raffle_number"` // Number within [1, total_tickets].

	UserID uint64 `gorm:"not null;index"` // Owning user.

	PaymentStatus TicketStatus `gorm:"type:text;not null;index"` // pending, paid or bonus.

	PixPaymentID *uint64 `gorm:"index"` // Settling payment, nil for bonus tickets.

	Raffle Raffle `gorm:"foreignKey:RaffleID"` // Raffle relation.
	User   User   `gorm:"foreignKey:UserID"`   // Owner relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
