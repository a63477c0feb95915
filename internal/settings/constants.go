package settings

// DB config keys and defaults for runtime-tunable settings.
const (
	// WeeklyPrizeAmountKey is the DB config key for the weekly affiliate prize (BRL).
	WeeklyPrizeAmountKey = "WEEKLY_PRIZE_AMOUNT"
	// MonthlyPrizeAmountKey is the DB config key for the monthly affiliate prize (BRL).
	MonthlyPrizeAmountKey = "MONTHLY_PRIZE_AMOUNT"
	// PaymentExpiryMinutesKey controls how long a PIX charge stays payable.
	PaymentExpiryMinutesKey = "PAYMENT_EXPIRY_MINUTES"
	// LeaderboardSizeKey controls how many rows the public leaderboard returns.
	LeaderboardSizeKey = "LEADERBOARD_SIZE"

	// DefaultWeeklyPrizeAmount is the fallback weekly prize (BRL).
	DefaultWeeklyPrizeAmount = 100.0
	// DefaultMonthlyPrizeAmount is the fallback monthly prize (BRL).
	DefaultMonthlyPrizeAmount = 500.0
	// DefaultPaymentExpiryMinutes is the fallback charge expiry window.
	DefaultPaymentExpiryMinutes = 10
	// DefaultLeaderboardSize is the fallback leaderboard length.
	DefaultLeaderboardSize = 10
)
