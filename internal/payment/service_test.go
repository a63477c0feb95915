package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/gateway"
	"github.com/rifapix/rifapix/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeChargeCreator struct {
	calls []gateway.CreateChargeRequest
	err   error
}

func (f *fakeChargeCreator) CreateCharge(_ context.Context, in gateway.CreateChargeRequest) (*gateway.Charge, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Charge{
		TransactionID: fmt.Sprintf("tx-%d", len(f.calls)),
		PixPayload:    "00020126580014br.gov.bcb.pix",
		StatusCode:    "created",
	}, nil
}

type fakeAttributor struct {
	userIDs []uint64
}

func (f *fakeAttributor) OnPaidPurchase(_ context.Context, userID uint64, _ *uint64) {
	f.userIDs = append(f.userIDs, userID)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, name, phone string) models.User {
	t.Helper()
	user := models.User{Name: name, Phone: phone, PasswordHash: "x"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	return user
}

func seedActiveRaffle(t *testing.T, conn *gorm.DB, price float64, total int) models.Raffle {
	t.Helper()
	raffle := models.Raffle{
		Title:        "Rifa do iPhone",
		TicketPrice:  price,
		TotalTickets: total,
		GameType:     models.GameTypeNumberSelection,
		Status:       models.RaffleStatusActive,
		DrawDate:     time.Now().Add(72 * time.Hour),
	}
	if errCreate := conn.Create(&raffle).Error; errCreate != nil {
		t.Fatalf("seed raffle: %v", errCreate)
	}
	return raffle
}

func seedPendingPayment(t *testing.T, conn *gorm.DB, userID, raffleID uint64, txnID string, numbers []int) models.PixPayment {
	t.Helper()
	selected, _ := json.Marshal(numbers)
	pay := models.PixPayment{
		UserID:               userID,
		RaffleID:             &raffleID,
		SelectedNumbers:      datatypes.JSON(selected),
		Amount:               5.0 * float64(len(numbers)),
		GatewayTransactionID: &txnID,
		ExternalID:           fmt.Sprintf("ext-%s", txnID),
		Status:               models.PixPaymentPending,
		ExpiresAt:            time.Now().Add(10 * time.Minute),
	}
	if errCreate := conn.Create(&pay).Error; errCreate != nil {
		t.Fatalf("seed payment: %v", errCreate)
	}
	return pay
}

func paidEvent(txnID string) *gateway.WebhookEvent {
	raw := fmt.Sprintf(`{"event_type":"payment","transaction_id":%q,"status":"paid"}`, txnID)
	return &gateway.WebhookEvent{
		EventType:     "payment",
		TransactionID: txnID,
		Status:        "paid",
		Raw:           json.RawMessage(raw),
	}
}

func TestSettleMaterializesTicketsAndIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	attribution := &fakeAttributor{}
	svc := NewService(conn, &fakeChargeCreator{}, attribution)

	user := seedUser(t, conn, "Maria", "+5511999990001")
	raffle := seedActiveRaffle(t, conn, 5.0, 200)
	pay := seedPendingPayment(t, conn, user.ID, raffle.ID, "tx-settle", []int{42})

	outcome, errSettle := svc.Settle(context.Background(), paidEvent("tx-settle"))
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %v, want OutcomeSettled", outcome)
	}

	var stored models.PixPayment
	if errFind := conn.First(&stored, pay.ID).Error; errFind != nil {
		t.Fatalf("reload payment: %v", errFind)
	}
	if stored.Status != models.PixPaymentPaid {
		t.Fatalf("payment status = %s, want paid", stored.Status)
	}
	if stored.PaidAt == nil {
		t.Fatalf("paid_at not set")
	}
	if len(stored.WebhookPayload) == 0 {
		t.Fatalf("webhook payload not stored")
	}

	var ticket models.Ticket
	if errFind := conn.Where("raffle_id = ? AND ticket_number = ?", raffle.ID, 42).First(&ticket).Error; errFind != nil {
		t.Fatalf("ticket not materialized: %v", errFind)
	}
	if ticket.UserID != user.ID || ticket.PaymentStatus != models.TicketStatusPaid {
		t.Fatalf("ticket = %+v, want paid ticket owned by user %d", ticket, user.ID)
	}
	if len(attribution.userIDs) != 1 || attribution.userIDs[0] != user.ID {
		t.Fatalf("attribution calls = %v, want exactly one for user %d", attribution.userIDs, user.ID)
	}

	// Second delivery of the same confirmation must be a no-op.
	outcome, errSettle = svc.Settle(context.Background(), paidEvent("tx-settle"))
	if errSettle != nil {
		t.Fatalf("settle redelivery: %v", errSettle)
	}
	if outcome != OutcomeAlreadyProcessed {
		t.Fatalf("redelivery outcome = %v, want OutcomeAlreadyProcessed", outcome)
	}
	var ticketCount int64
	if errCount := conn.Model(&models.Ticket{}).Where("raffle_id = ?", raffle.ID).Count(&ticketCount).Error; errCount != nil {
		t.Fatalf("count tickets: %v", errCount)
	}
	if ticketCount != 1 {
		t.Fatalf("ticket count after redelivery = %d, want 1", ticketCount)
	}
	if len(attribution.userIDs) != 1 {
		t.Fatalf("attribution called %d times, want 1", len(attribution.userIDs))
	}
}

func TestSettleIgnoresNonPaidEvent(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	user := seedUser(t, conn, "Maria", "+5511999990002")
	raffle := seedActiveRaffle(t, conn, 5.0, 100)
	pay := seedPendingPayment(t, conn, user.ID, raffle.ID, "tx-created", []int{7})

	event := &gateway.WebhookEvent{
		EventType:     "payment",
		TransactionID: "tx-created",
		Status:        "created",
		Raw:           json.RawMessage(`{"status":"created"}`),
	}
	outcome, errSettle := svc.Settle(context.Background(), event)
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %v, want OutcomeIgnored", outcome)
	}

	var stored models.PixPayment
	if errFind := conn.First(&stored, pay.ID).Error; errFind != nil {
		t.Fatalf("reload payment: %v", errFind)
	}
	if stored.Status != models.PixPaymentPending {
		t.Fatalf("payment status = %s, want pending", stored.Status)
	}
}

func TestSettleUnknownTransaction(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	_, errSettle := svc.Settle(context.Background(), paidEvent("tx-missing"))
	if !errors.Is(errSettle, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", errSettle)
	}
}

func TestSettleHonorsLateWebhookOnExpiredPayment(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	user := seedUser(t, conn, "Maria", "+5511999990003")
	raffle := seedActiveRaffle(t, conn, 5.0, 100)
	pay := seedPendingPayment(t, conn, user.ID, raffle.ID, "tx-late", []int{13})
	if errUpdate := conn.Model(&pay).Update("status", models.PixPaymentExpired).Error; errUpdate != nil {
		t.Fatalf("expire payment: %v", errUpdate)
	}

	outcome, errSettle := svc.Settle(context.Background(), paidEvent("tx-late"))
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %v, want OutcomeSettled for late webhook", outcome)
	}
}

func TestSettleFlagsPaymentOnMaterializationFailure(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	user := seedUser(t, conn, "Maria", "+5511999990004")
	other := seedUser(t, conn, "Joana", "+5511999990005")
	raffle := seedActiveRaffle(t, conn, 5.0, 100)
	pay := seedPendingPayment(t, conn, user.ID, raffle.ID, "tx-conflict", []int{9})

	// Another settlement already owns number 9; the unique index must reject
	// the insert and the payment must be flagged for an operator.
	conflicting := models.Ticket{
		RaffleID:      raffle.ID,
		TicketNumber:  9,
		UserID:        other.ID,
		PaymentStatus: models.TicketStatusPaid,
	}
	if errCreate := conn.Create(&conflicting).Error; errCreate != nil {
		t.Fatalf("seed conflicting ticket: %v", errCreate)
	}

	_, errSettle := svc.Settle(context.Background(), paidEvent("tx-conflict"))
	if !errors.Is(errSettle, ErrTicketMaterialization) {
		t.Fatalf("err = %v, want ErrTicketMaterialization", errSettle)
	}

	var stored models.PixPayment
	if errFind := conn.First(&stored, pay.ID).Error; errFind != nil {
		t.Fatalf("reload payment: %v", errFind)
	}
	if stored.Status != models.PixPaymentError {
		t.Fatalf("payment status = %s, want error", stored.Status)
	}

	// Redelivery must not retry a payment owned by an operator.
	outcome, errSettle := svc.Settle(context.Background(), paidEvent("tx-conflict"))
	if errSettle != nil {
		t.Fatalf("settle redelivery: %v", errSettle)
	}
	if outcome != OutcomeAlreadyProcessed {
		t.Fatalf("redelivery outcome = %v, want OutcomeAlreadyProcessed", outcome)
	}
}

func TestCreateRafflePurchase(t *testing.T) {
	conn := openTestDB(t)
	charges := &fakeChargeCreator{}
	svc := NewService(conn, charges, nil)

	user := seedUser(t, conn, "Maria", "+5511999990006")
	raffle := seedActiveRaffle(t, conn, 5.0, 200)

	pay, errCreate := svc.CreateRafflePurchase(context.Background(), user.ID, raffle.ID, []int{42, 43})
	if errCreate != nil {
		t.Fatalf("create purchase: %v", errCreate)
	}
	if pay.Status != models.PixPaymentPending {
		t.Fatalf("payment status = %s, want pending", pay.Status)
	}
	if pay.Amount != 10.0 {
		t.Fatalf("amount = %.2f, want 10.00", pay.Amount)
	}
	if pay.GatewayTransactionID == nil || *pay.GatewayTransactionID == "" {
		t.Fatalf("gateway transaction id not recorded")
	}
	if pay.PixPayload == "" {
		t.Fatalf("pix payload not recorded")
	}
	if len(charges.calls) != 1 {
		t.Fatalf("gateway called %d times, want 1", len(charges.calls))
	}
	if charges.calls[0].AmountCents != 1000 {
		t.Fatalf("charge amount = %d centavos, want 1000", charges.calls[0].AmountCents)
	}

	// No tickets exist before settlement.
	var ticketCount int64
	if errCount := conn.Model(&models.Ticket{}).Count(&ticketCount).Error; errCount != nil {
		t.Fatalf("count tickets: %v", errCount)
	}
	if ticketCount != 0 {
		t.Fatalf("ticket count before settlement = %d, want 0", ticketCount)
	}
}

func TestCreateRafflePurchaseValidation(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	user := seedUser(t, conn, "Maria", "+5511999990007")
	raffle := seedActiveRaffle(t, conn, 5.0, 100)

	if _, errCreate := svc.CreateRafflePurchase(context.Background(), user.ID, raffle.ID, []int{0}); !errors.Is(errCreate, ErrNumberOutOfRange) {
		t.Fatalf("number 0: err = %v, want ErrNumberOutOfRange", errCreate)
	}
	if _, errCreate := svc.CreateRafflePurchase(context.Background(), user.ID, raffle.ID, []int{101}); !errors.Is(errCreate, ErrNumberOutOfRange) {
		t.Fatalf("number 101: err = %v, want ErrNumberOutOfRange", errCreate)
	}
	if _, errCreate := svc.CreateRafflePurchase(context.Background(), user.ID, raffle.ID, []int{5, 5}); !errors.Is(errCreate, ErrNumberUnavailable) {
		t.Fatalf("duplicate numbers: err = %v, want ErrNumberUnavailable", errCreate)
	}

	taken := models.Ticket{RaffleID: raffle.ID, TicketNumber: 5, UserID: user.ID, PaymentStatus: models.TicketStatusPaid}
	if errSeed := conn.Create(&taken).Error; errSeed != nil {
		t.Fatalf("seed taken ticket: %v", errSeed)
	}
	if _, errCreate := svc.CreateRafflePurchase(context.Background(), user.ID, raffle.ID, []int{5}); !errors.Is(errCreate, ErrNumberUnavailable) {
		t.Fatalf("taken number: err = %v, want ErrNumberUnavailable", errCreate)
	}

	scheduled := models.Raffle{
		Title:        "Rifa futura",
		TicketPrice:  5.0,
		TotalTickets: 100,
		GameType:     models.GameTypeNumberSelection,
		Status:       models.RaffleStatusScheduled,
		DrawDate:     time.Now().Add(240 * time.Hour),
	}
	if errSeed := conn.Create(&scheduled).Error; errSeed != nil {
		t.Fatalf("seed scheduled raffle: %v", errSeed)
	}
	if _, errCreate := svc.CreateRafflePurchase(context.Background(), user.ID, scheduled.ID, []int{1}); !errors.Is(errCreate, ErrRaffleNotActive) {
		t.Fatalf("scheduled raffle: err = %v, want ErrRaffleNotActive", errCreate)
	}
}

func TestCreatePollEntry(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	user := seedUser(t, conn, "Maria", "+5511999990008")
	options, _ := json.Marshal([]string{"Flamengo", "Palmeiras"})
	poll := models.Poll{
		Question:   "Quem ganha o campeonato?",
		Options:    datatypes.JSON(options),
		EntryPrice: 2.0,
		PrizePool:  500.0,
		Status:     models.PollStatusActive,
	}
	if errSeed := conn.Create(&poll).Error; errSeed != nil {
		t.Fatalf("seed poll: %v", errSeed)
	}

	pay, errEnter := svc.CreatePollEntry(context.Background(), user.ID, poll.ID, 1)
	if errEnter != nil {
		t.Fatalf("create entry: %v", errEnter)
	}
	if pay.PollID == nil || *pay.PollID != poll.ID {
		t.Fatalf("payment poll id = %v, want %d", pay.PollID, poll.ID)
	}

	var entry models.PollEntry
	if errFind := conn.Where("poll_id = ? AND user_id = ?", poll.ID, user.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("entry not created: %v", errFind)
	}
	if entry.PaymentStatus != models.TicketStatusPending {
		t.Fatalf("entry status = %s, want pending", entry.PaymentStatus)
	}

	// Re-entering before paying switches the option in place.
	if _, errEnter = svc.CreatePollEntry(context.Background(), user.ID, poll.ID, 0); errEnter != nil {
		t.Fatalf("re-enter pending: %v", errEnter)
	}
	var entryCount int64
	if errCount := conn.Model(&models.PollEntry{}).Where("poll_id = ?", poll.ID).Count(&entryCount).Error; errCount != nil {
		t.Fatalf("count entries: %v", errCount)
	}
	if entryCount != 1 {
		t.Fatalf("entry count = %d, want 1", entryCount)
	}
	if errFind := conn.First(&entry, entry.ID).Error; errFind != nil {
		t.Fatalf("reload entry: %v", errFind)
	}
	if entry.OptionIndex != 0 {
		t.Fatalf("option index = %d, want 0 after re-entry", entry.OptionIndex)
	}

	// A settled entry refuses further entries.
	if errPaid := conn.Model(&entry).Update("payment_status", models.TicketStatusPaid).Error; errPaid != nil {
		t.Fatalf("mark entry paid: %v", errPaid)
	}
	if _, errEnter = svc.CreatePollEntry(context.Background(), user.ID, poll.ID, 1); !errors.Is(errEnter, ErrAlreadyEntered) {
		t.Fatalf("paid re-entry: err = %v, want ErrAlreadyEntered", errEnter)
	}

	if _, errEnter = svc.CreatePollEntry(context.Background(), user.ID, poll.ID, 7); errEnter == nil {
		t.Fatalf("out-of-range option accepted")
	}
}

func TestSettlePollEntryMarksEntryPaid(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, &fakeChargeCreator{}, nil)

	user := seedUser(t, conn, "Maria", "+5511999990009")
	options, _ := json.Marshal([]string{"Sim", "Nao"})
	poll := models.Poll{
		Question:   "Vai chover domingo?",
		Options:    datatypes.JSON(options),
		EntryPrice: 2.0,
		Status:     models.PollStatusActive,
	}
	if errSeed := conn.Create(&poll).Error; errSeed != nil {
		t.Fatalf("seed poll: %v", errSeed)
	}

	pay, errEnter := svc.CreatePollEntry(context.Background(), user.ID, poll.ID, 0)
	if errEnter != nil {
		t.Fatalf("create entry: %v", errEnter)
	}

	outcome, errSettle := svc.Settle(context.Background(), paidEvent(*pay.GatewayTransactionID))
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %v, want OutcomeSettled", outcome)
	}

	var entry models.PollEntry
	if errFind := conn.Where("poll_id = ? AND user_id = ?", poll.ID, user.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("reload entry: %v", errFind)
	}
	if entry.PaymentStatus != models.TicketStatusPaid {
		t.Fatalf("entry status = %s, want paid", entry.PaymentStatus)
	}
}
