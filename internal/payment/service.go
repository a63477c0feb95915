package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rifapix/rifapix/internal/gateway"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settlement and purchase errors.
var (
	// ErrPaymentNotFound indicates a webhook for an unknown transaction id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInvalidPayload indicates a malformed webhook body.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrRaffleNotActive indicates a purchase against a raffle not selling.
	ErrRaffleNotActive = errors.New("raffle not active")
	// ErrNumberUnavailable indicates a selected number is already owned.
	ErrNumberUnavailable = errors.New("ticket number unavailable")
	// ErrNumberOutOfRange indicates a selected number outside the raffle range.
	ErrNumberOutOfRange = errors.New("ticket number out of range")
	// ErrPollNotActive indicates an entry against a poll not accepting entries.
	ErrPollNotActive = errors.New("poll not active")
	// ErrAlreadyEntered indicates the user already holds a paid entry in a poll.
	ErrAlreadyEntered = errors.New("already entered poll")
	// ErrTicketMaterialization indicates tickets could not be inserted after
	// the payment was marked paid. The payment is flagged error and needs an
	// operator.
	ErrTicketMaterialization = errors.New("ticket materialization failed")
)

// SettleOutcome describes the result of processing a webhook.
type SettleOutcome int

// SettleOutcome values.
const (
	// OutcomeIgnored means the event did not signal a paid status.
	OutcomeIgnored SettleOutcome = iota
	// OutcomeAlreadyProcessed means the payment was already settled.
	OutcomeAlreadyProcessed
	// OutcomeSettled means the payment was settled and tickets materialized.
	OutcomeSettled
)

// ChargeCreator creates PIX charges. Satisfied by *gateway.Client.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, in gateway.CreateChargeRequest) (*gateway.Charge, error)
}

// Attributor is notified after a payment settles, once per paid purchase.
// Satisfied by the referral attribution engine.
type Attributor interface {
	OnPaidPurchase(ctx context.Context, userID uint64, raffleID *uint64)
}

// Service owns the PIX payment lifecycle: charge creation, webhook
// settlement and ticket materialization.
type Service struct {
	db          *gorm.DB
	charges     ChargeCreator
	attribution Attributor
}

// NewService wires the payment service.
func NewService(db *gorm.DB, charges ChargeCreator, attribution Attributor) *Service {
	return &Service{db: db, charges: charges, attribution: attribution}
}

// CreateRafflePurchase creates a pending payment and requests a gateway
// charge for the selected numbers in a raffle.
//
// The pre-check that numbers are free is an early reject; the unique index
// on (raffle_id, ticket_number) at settlement is the real guard.
func (s *Service) CreateRafflePurchase(ctx context.Context, userID uint64, raffleID uint64, numbers []int) (*models.PixPayment, error) {
	if len(numbers) == 0 {
		return nil, ErrNumberOutOfRange
	}

	var raffle models.Raffle
	if errFind := s.db.WithContext(ctx).First(&raffle, raffleID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrRaffleNotActive
		}
		return nil, errFind
	}
	if raffle.Status != models.RaffleStatusActive {
		return nil, ErrRaffleNotActive
	}

	seen := make(map[int]struct{}, len(numbers))
	for _, number := range numbers {
		if number < 1 || (raffle.TotalTickets > 0 && number > raffle.TotalTickets) {
			return nil, ErrNumberOutOfRange
		}
		if _, dup := seen[number]; dup {
			return nil, ErrNumberUnavailable
		}
		seen[number] = struct{}{}
	}

	var taken int64
	if errCount := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("raffle_id = ? AND ticket_number IN ? AND payment_status IN ?",
			raffleID, numbers, []models.TicketStatus{models.TicketStatusPaid, models.TicketStatusBonus}).
		Count(&taken).Error; errCount != nil {
		return nil, errCount
	}
	if taken > 0 {
		return nil, ErrNumberUnavailable
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		return nil, errFind
	}

	amount := raffle.TicketPrice * float64(len(numbers))
	selected, _ := json.Marshal(numbers)
	pay := models.PixPayment{
		UserID:          userID,
		RaffleID:        &raffle.ID,
		SelectedNumbers: datatypes.JSON(selected),
		Amount:          amount,
		ExternalID:      uuid.NewString(),
		Status:          models.PixPaymentPending,
		ExpiresAt:       time.Now().Add(time.Duration(settings.PaymentExpiryMinutes()) * time.Minute),
	}
	if errCreate := s.db.WithContext(ctx).Create(&pay).Error; errCreate != nil {
		return nil, errCreate
	}

	return s.requestCharge(ctx, &pay, user.Name, fmt.Sprintf("Rifa %s - %d numero(s)", raffle.Title, len(numbers)))
}

// CreatePollEntry creates a pending poll entry and its PIX charge.
// One paid entry per (poll, user); a pending entry is replaced in place.
func (s *Service) CreatePollEntry(ctx context.Context, userID uint64, pollID uint64, optionIndex int) (*models.PixPayment, error) {
	var poll models.Poll
	if errFind := s.db.WithContext(ctx).First(&poll, pollID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotActive
		}
		return nil, errFind
	}
	if poll.Status != models.PollStatusActive {
		return nil, ErrPollNotActive
	}

	var options []string
	if errDecode := json.Unmarshal(poll.Options, &options); errDecode != nil {
		return nil, fmt.Errorf("decode poll options: %w", errDecode)
	}
	if optionIndex < 0 || optionIndex >= len(options) {
		return nil, ErrNumberOutOfRange
	}

	var existing models.PollEntry
	errFind := s.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		First(&existing).Error
	switch {
	case errFind == nil && existing.PaymentStatus == models.TicketStatusPaid:
		return nil, ErrAlreadyEntered
	case errFind == nil:
		// Pending entry from an abandoned charge; update the option in place.
		if errUpdate := s.db.WithContext(ctx).Model(&existing).
			Update("option_index", optionIndex).Error; errUpdate != nil {
			return nil, errUpdate
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		existing = models.PollEntry{
			PollID:        pollID,
			UserID:        userID,
			OptionIndex:   optionIndex,
			PaymentStatus: models.TicketStatusPending,
		}
		if errCreate := s.db.WithContext(ctx).Create(&existing).Error; errCreate != nil {
			return nil, errCreate
		}
	default:
		return nil, errFind
	}

	var user models.User
	if errUser := s.db.WithContext(ctx).First(&user, userID).Error; errUser != nil {
		return nil, errUser
	}

	pay := models.PixPayment{
		UserID:         userID,
		PollID:         &poll.ID,
		SelectedOption: &optionIndex,
		Amount:         poll.EntryPrice,
		ExternalID:     uuid.NewString(),
		Status:         models.PixPaymentPending,
		ExpiresAt:      time.Now().Add(time.Duration(settings.PaymentExpiryMinutes()) * time.Minute),
	}
	if errCreate := s.db.WithContext(ctx).Create(&pay).Error; errCreate != nil {
		return nil, errCreate
	}

	out, errCharge := s.requestCharge(ctx, &pay, user.Name, fmt.Sprintf("Palpite: %s", poll.Question))
	if errCharge != nil {
		return nil, errCharge
	}
	if errLink := s.db.WithContext(ctx).Model(&models.PollEntry{}).
		Where("id = ?", existing.ID).
		Update("pix_payment_id", pay.ID).Error; errLink != nil {
		return nil, errLink
	}
	return out, nil
}

// requestCharge calls the gateway and stores the returned transaction id and
// PIX payload on the payment. On gateway failure the payment stays pending
// until the reaper expires it.
func (s *Service) requestCharge(ctx context.Context, pay *models.PixPayment, payerName, description string) (*models.PixPayment, error) {
	charge, errCharge := s.charges.CreateCharge(ctx, gateway.CreateChargeRequest{
		PayerName:   payerName,
		AmountCents: int64(math.Round(pay.Amount * 100)),
		ExternalID:  pay.ExternalID,
		Description: description,
		Metadata:    map[string]string{"payment_id": fmt.Sprintf("%d", pay.ID)},
	})
	if errCharge != nil {
		log.WithError(errCharge).WithField("payment_id", pay.ID).Error("gateway charge creation failed")
		return nil, errCharge
	}

	updates := map[string]any{
		"gateway_transaction_id": charge.TransactionID,
		"pix_payload":            charge.PixPayload,
	}
	if !charge.ExpiresAt.IsZero() {
		updates["expires_at"] = charge.ExpiresAt
	}
	if errUpdate := s.db.WithContext(ctx).Model(pay).Updates(updates).Error; errUpdate != nil {
		return nil, errUpdate
	}
	pay.GatewayTransactionID = &charge.TransactionID
	pay.PixPayload = charge.PixPayload
	return pay, nil
}

// Settle processes a gateway webhook.
//
// Idempotent under at-least-once delivery: a repeated confirmation for a
// settled payment returns OutcomeAlreadyProcessed without side effects.
func (s *Service) Settle(ctx context.Context, event *gateway.WebhookEvent) (SettleOutcome, error) {
	if event == nil || event.TransactionID == "" {
		return OutcomeIgnored, ErrInvalidPayload
	}
	if !event.IsPaid() {
		log.WithFields(log.Fields{
			"event_type":     event.EventType,
			"status":         event.Status,
			"transaction_id": event.TransactionID,
		}).Debug("ignoring non-paid webhook event")
		return OutcomeIgnored, nil
	}

	var pay models.PixPayment
	if errFind := s.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", event.TransactionID).
		First(&pay).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return OutcomeIgnored, fmt.Errorf("%w: transaction %s", ErrPaymentNotFound, event.TransactionID)
		}
		return OutcomeIgnored, errFind
	}

	if pay.Status == models.PixPaymentPaid {
		return OutcomeAlreadyProcessed, nil
	}
	if pay.Status == models.PixPaymentError {
		// Operator owns this payment; do not reprocess.
		return OutcomeAlreadyProcessed, nil
	}

	// Conditional update closes the race between two concurrent deliveries:
	// only the one that flips the status materializes tickets.
	now := time.Now()
	flip := s.db.WithContext(ctx).Model(&models.PixPayment{}).
		Where("id = ? AND status IN ?", pay.ID, []models.PixPaymentStatus{models.PixPaymentPending, models.PixPaymentExpired}).
		Updates(map[string]any{
			"status":          models.PixPaymentPaid,
			"paid_at":         now,
			"webhook_payload": datatypes.JSON(event.Raw),
		})
	if flip.Error != nil {
		return OutcomeIgnored, flip.Error
	}
	if flip.RowsAffected == 0 {
		return OutcomeAlreadyProcessed, nil
	}

	if errMaterialize := s.materialize(ctx, &pay); errMaterialize != nil {
		// The payment is confirmed but its goods were not delivered. Flag it
		// for manual recovery instead of guessing a fix.
		if errFlag := s.db.WithContext(ctx).Model(&models.PixPayment{}).
			Where("id = ?", pay.ID).
			Update("status", models.PixPaymentError).Error; errFlag != nil {
			log.WithError(errFlag).WithField("payment_id", pay.ID).Error("failed to flag payment as error")
		}
		log.WithError(errMaterialize).WithField("payment_id", pay.ID).Error("ticket materialization failed after payment marked paid")
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrTicketMaterialization, errMaterialize)
	}

	if s.attribution != nil {
		s.attribution.OnPaidPurchase(ctx, pay.UserID, pay.RaffleID)
	}
	return OutcomeSettled, nil
}

// materialize inserts the goods a settled payment bought.
func (s *Service) materialize(ctx context.Context, pay *models.PixPayment) error {
	switch {
	case pay.RaffleID != nil:
		var numbers []int
		if errDecode := json.Unmarshal(pay.SelectedNumbers, &numbers); errDecode != nil {
			return fmt.Errorf("decode selected numbers: %w", errDecode)
		}
		for _, number := range numbers {
			ticket := models.Ticket{
				RaffleID:      *pay.RaffleID,
				TicketNumber:  number,
				UserID:        pay.UserID,
				PaymentStatus: models.TicketStatusPaid,
				PixPaymentID:  &pay.ID,
			}
			if errCreate := s.db.WithContext(ctx).Create(&ticket).Error; errCreate != nil {
				return fmt.Errorf("insert ticket %d: %w", number, errCreate)
			}
		}
		return nil
	case pay.PollID != nil:
		result := s.db.WithContext(ctx).Model(&models.PollEntry{}).
			Where("poll_id = ? AND user_id = ?", *pay.PollID, pay.UserID).
			Updates(map[string]any{
				"payment_status": models.TicketStatusPaid,
				"pix_payment_id": pay.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("poll entry missing for poll %d user %d", *pay.PollID, pay.UserID)
		}
		return nil
	default:
		return errors.New("payment references neither raffle nor poll")
	}
}
