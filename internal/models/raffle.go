package models

import "time"

// RaffleStatus describes the lifecycle state of a raffle.
type RaffleStatus int

// RaffleStatus constants define raffle lifecycle states.
const (
	// RaffleStatusScheduled marks a raffle created but not yet selling.
	RaffleStatusScheduled RaffleStatus = 0
	// RaffleStatusActive marks a raffle open for ticket sales.
	RaffleStatusActive RaffleStatus = 1
	// RaffleStatusCompleted marks a raffle whose draw has happened.
	RaffleStatusCompleted RaffleStatus = 2
	// RaffleStatusCancelled marks a raffle cancelled before its draw.
	RaffleStatusCancelled RaffleStatus = 3
)

// RaffleGameType distinguishes the selling model of a raffle.
type RaffleGameType int

// RaffleGameType constants define raffle selling models.
const (
	// GameTypeNumberSelection sells user-picked numbers; at most one active at a time.
	GameTypeNumberSelection RaffleGameType = 1
	// GameTypeDraw is a continuous daily-draw raffle; several may run in parallel.
	GameTypeDraw RaffleGameType = 2
)

// Raffle represents a sellable draw with a fixed price and ticket capacity.
type Raffle struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title       string `gorm:"type:text;not null"` // Public title.
	Description string `gorm:"type:text"`          // Optional public description.

	TicketPrice  float64 `gorm:"type:decimal(20,2);not null"` // Price per ticket in BRL.
	TotalTickets int     `gorm:"not null;default:0"`          // Capacity; 0 means unbounded (continuous draw).

	GameType RaffleGameType `gorm:"not null;default:1;index"` // Selling model.
	Status   RaffleStatus   `gorm:"not null;default:0;index"` // Lifecycle state.

	DrawDate time.Time `gorm:"not null;index"` // When the draw happens.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
