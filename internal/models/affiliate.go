package models

import "time"

// AffiliateStatus describes whether an affiliate code is honored.
type AffiliateStatus string

// AffiliateStatus constants define affiliate states.
const (
	// AffiliateActive marks a code that attributes referrals.
	AffiliateActive AffiliateStatus = "active"
	// AffiliateInactive marks a disabled code; treated as no referral.
	AffiliateInactive AffiliateStatus = "inactive"
)

// Affiliate represents a user's opt-in into the referral program.
// One record per user; re-requesting opt-in returns the existing code.
type Affiliate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"`           // Owning user.
	Code   string `gorm:"type:text;not null;uniqueIndex"` // Human-shareable referral code.

	Status AffiliateStatus `gorm:"type:text;not null;index"` // active or inactive.

	User User `gorm:"foreignKey:UserID"` // Owner relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ReferralStatus describes how far a referral has progressed.
type ReferralStatus string

// ReferralStatus constants define referral states.
const (
	// ReferralRegistered marks a referred user who signed up but has not purchased.
	ReferralRegistered ReferralStatus = "registered"
	// ReferralParticipant marks a referred user whose first paid purchase settled.
	// The registered -> participant transition happens at most once and never reverts.
	ReferralParticipant ReferralStatus = "participant"
)

// AffiliateReferral links an affiliate to a user who signed up with their code.
type AffiliateReferral struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AffiliateID    uint64 `gorm:"not null;uniqueIndex:idx_affiliate_referred"` // Crediting affiliate.
	ReferredUserID uint64 `gorm:"not null;uniqueIndex:idx_affiliate_referred"` // Referred user.

	Status ReferralStatus `gorm:"type:text;not null;index"` // registered or participant.

	RaffleID  *uint64    `gorm:"index"` // Raffle of the qualifying purchase, once participant.
	WeekStart *time.Time `gorm:"index"` // Monday of the ISO week of the qualifying purchase.

	Affiliate    Affiliate `gorm:"foreignKey:AffiliateID"`    // Affiliate relation.
	ReferredUser User      `gorm:"foreignKey:ReferredUserID"` // Referred user relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp; tie-break key for payouts.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// AffiliateBonusNumber records a free ticket number granted for a qualifying referral.
type AffiliateBonusNumber struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AffiliateID  uint64 `gorm:"not null;index"` // Rewarded affiliate.
	ReferralID   uint64 `gorm:"not null;index"` // Qualifying referral that earned the grant.
	RaffleID     uint64 `gorm:"not null;index"` // Target raffle of the free number.
	TicketNumber int    `gorm:"not null"`       // Granted number.

	Affiliate Affiliate         `gorm:"foreignKey:AffiliateID"` // Affiliate relation.
	Referral  AffiliateReferral `gorm:"foreignKey:ReferralID"`  // Referral relation.
	Raffle    Raffle            `gorm:"foreignKey:RaffleID"`    // Raffle relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// WeeklyAffiliateWinner is the immutable record of a closed week's top affiliate.
// At most one row per (week_start, week_end) pair.
type WeeklyAffiliateWinner struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AffiliateID   uint64    `gorm:"not null;index"`                       // Winning affiliate.
	WeekStart     time.Time `gorm:"not null;uniqueIndex:idx_week_window"` // Monday of the closed week.
	WeekEnd       time.Time `gorm:"not null;uniqueIndex:idx_week_window"` // Sunday of the closed week.
	ReferralCount int       `gorm:"not null"`                             // Qualifying referrals in the window.
	PrizeAmount   float64   `gorm:"type:decimal(20,2);not null"`          // Fixed weekly prize in BRL.

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID"` // Affiliate relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// MonthlyAffiliateWinner is the immutable record of a closed month's top affiliate.
// At most one row per month_year key.
type MonthlyAffiliateWinner struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AffiliateID   uint64  `gorm:"not null;index"`                 // Winning affiliate.
	MonthYear     string  `gorm:"type:text;not null;uniqueIndex"` // Window key, formatted 2006-01.
	ReferralCount int     `gorm:"not null"`                       // Qualifying referrals in the window.
	PrizeAmount   float64 `gorm:"type:decimal(20,2);not null"`    // Fixed monthly prize in BRL.

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID"` // Affiliate relation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
