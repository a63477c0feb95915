package db

import (
	"fmt"

	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all platform entities.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Raffle{},
		&models.Ticket{},
		&models.PixPayment{},
		&models.Affiliate{},
		&models.AffiliateReferral{},
		&models.AffiliateBonusNumber{},
		&models.WeeklyAffiliateWinner{},
		&models.MonthlyAffiliateWinner{},
		&models.Poll{},
		&models.PollEntry{},
		&models.Setting{},
	)
}
