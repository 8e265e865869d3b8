// Path: internal/services/transaction_service.go
package services

import (
	"atm-api/internal/models"
	"atm-api/pkg/utils"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fastCashOptions is the fixed fast cash menu in cents: $20, $40, $60, $80, $100, $200.
var fastCashOptions = [...]int64{2000, 4000, 6000, 8000, 10000, 20000}

// TransactionService executes terminal operations. Every call spends one Session.
type TransactionService interface {
	Withdraw(sess *Session, amount int64) (int64, error)
	FastCash(sess *Session, selection int) (int64, error)
	CheckBalance(sess *Session) (int64, error)
	ViewHistory(sess *Session) ([]models.Transaction, error)
	ChangePin(sess *Session, newPin, confirmPin string) error
	FastCashOptions() []int64
}

type transactionService struct {
	logger      *zap.Logger
	secretKey   string
	pinHashCost int
	now         func() time.Time
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(logger *zap.Logger, secretKey string, pinHashCost int, now func() time.Time) TransactionService {
	if pinHashCost < bcrypt.MinCost {
		pinHashCost = bcrypt.DefaultCost
	}
	if now == nil {
		now = defaultNow
	}
	return &transactionService{
		logger:      logger,
		secretKey:   secretKey,
		pinHashCost: pinHashCost,
		now:         now,
	}
}

// debit describes how one kind of cash withdrawal is recorded.
type debit struct {
	operation string
	okKind    models.TransactionKind
	okLabel   string
	failKind  models.TransactionKind
	failLabel string
}

var (
	withdrawalDebit = debit{
		operation: "withdraw",
		okKind:    models.KindWithdrawal,
		okLabel:   "Withdrawn: ",
		failKind:  models.KindWithdrawalFailed,
		failLabel: "Failed withdrawal attempt: ",
	}
	fastCashDebit = debit{
		operation: "fast_cash",
		okKind:    models.KindFastCash,
		okLabel:   "Fast cash withdrawn: ",
		failKind:  models.KindFastCashFailed,
		failLabel: "Failed fast cash attempt: ",
	}
)

// Withdraw debits amount cents and returns the new balance.
func (s *transactionService) Withdraw(sess *Session, amount int64) (int64, error) {
	acct, err := sess.open()
	if err != nil {
		return 0, err
	}
	defer acct.Unlock()

	if amount <= 0 {
		transactionsTotal.WithLabelValues(withdrawalDebit.operation, "invalid_amount").Inc()
		return 0, &AppError{Code: http.StatusBadRequest, Message: "Invalid withdrawal amount", Details: "Amount must be positive", Err: ErrInvalidAmount}
	}
	return s.debit(acct, amount, withdrawalDebit)
}

// FastCash withdraws the denomination at the 1-based menu selection.
func (s *transactionService) FastCash(sess *Session, selection int) (int64, error) {
	acct, err := sess.open()
	if err != nil {
		return 0, err
	}
	defer acct.Unlock()

	if selection < 1 || selection > len(fastCashOptions) {
		transactionsTotal.WithLabelValues(fastCashDebit.operation, "invalid_selection").Inc()
		return 0, &AppError{Code: http.StatusBadRequest, Message: "Invalid choice", Details: fmt.Sprintf("selection must be between 1 and %d", len(fastCashOptions)), Err: ErrInvalidSelection}
	}
	return s.debit(acct, fastCashOptions[selection-1], fastCashDebit)
}

// debit runs with the account lock held.
func (s *transactionService) debit(acct *models.Account, amount int64, d debit) (int64, error) {
	if err := verifyBalance(acct, s.secretKey); err != nil {
		transactionsTotal.WithLabelValues(d.operation, "integrity").Inc()
		s.logger.Error("balance integrity check failed", zap.String("card_id", acct.CardID))
		return 0, err
	}

	if amount > acct.Balance {
		s.record(acct, d.failKind, amount, d.failLabel+utils.FormatAmount(amount))
		transactionsTotal.WithLabelValues(d.operation, "insufficient_funds").Inc()
		return 0, &AppError{
			Code:    http.StatusUnprocessableEntity,
			Message: "Insufficient funds",
			Details: fmt.Sprintf("card_id: %s, balance: %s, requested: %s", acct.CardID, utils.FormatAmount(acct.Balance), utils.FormatAmount(amount)),
			Err:     ErrInsufficientFunds,
		}
	}

	setBalance(acct, acct.Balance-amount, s.secretKey)
	s.record(acct, d.okKind, amount, d.okLabel+utils.FormatAmount(amount))
	transactionsTotal.WithLabelValues(d.operation, "success").Inc()
	cashDispensed.Add(float64(amount))
	s.logger.Info("cash dispensed",
		zap.String("card_id", acct.CardID),
		zap.String("operation", d.operation),
		zap.Int64("amount", amount),
		zap.Int64("balance", acct.Balance),
	)
	return acct.Balance, nil
}

// CheckBalance returns the current balance and records the inquiry.
func (s *transactionService) CheckBalance(sess *Session) (int64, error) {
	acct, err := sess.open()
	if err != nil {
		return 0, err
	}
	defer acct.Unlock()

	if err := verifyBalance(acct, s.secretKey); err != nil {
		transactionsTotal.WithLabelValues("balance", "integrity").Inc()
		return 0, err
	}
	s.record(acct, models.KindBalanceInquiry, 0, "Balance checked")
	transactionsTotal.WithLabelValues("balance", "success").Inc()
	return acct.Balance, nil
}

// ViewHistory returns a copy of the account history, oldest first. An account without
// history yields an empty, non-nil slice.
func (s *transactionService) ViewHistory(sess *Session) ([]models.Transaction, error) {
	acct, err := sess.open()
	if err != nil {
		return nil, err
	}
	defer acct.Unlock()

	out := make([]models.Transaction, len(acct.History))
	copy(out, acct.History)
	transactionsTotal.WithLabelValues("history", "success").Inc()
	return out, nil
}

// ChangePin replaces the PIN after checking the confirmation and the format.
func (s *transactionService) ChangePin(sess *Session, newPin, confirmPin string) error {
	acct, err := sess.open()
	if err != nil {
		return err
	}
	defer acct.Unlock()

	if newPin != confirmPin {
		transactionsTotal.WithLabelValues("change_pin", "pin_mismatch").Inc()
		return &AppError{Code: http.StatusBadRequest, Message: "PIN change failed", Details: "PINs don't match", Err: ErrPinMismatch}
	}
	if !utils.IsValidPin(newPin) {
		transactionsTotal.WithLabelValues("change_pin", "invalid_format").Inc()
		return &AppError{Code: http.StatusBadRequest, Message: "PIN change failed", Details: fmt.Sprintf("PIN must be exactly %d digits", utils.PinLength), Err: ErrInvalidPinFormat}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPin), s.pinHashCost)
	if err != nil {
		return &AppError{Code: http.StatusInternalServerError, Message: "Failed to hash PIN", Details: err.Error(), Err: err}
	}

	acct.PinHash = string(hashed)
	s.record(acct, models.KindPinChange, 0, "PIN changed")
	transactionsTotal.WithLabelValues("change_pin", "success").Inc()
	s.logger.Info("PIN changed", zap.String("card_id", acct.CardID))
	return nil
}

// FastCashOptions returns the fast cash menu in cents.
func (s *transactionService) FastCashOptions() []int64 {
	out := make([]int64, len(fastCashOptions))
	copy(out, fastCashOptions[:])
	return out
}

// record appends to the history. Callers must hold the account lock.
func (s *transactionService) record(acct *models.Account, kind models.TransactionKind, amount int64, description string) {
	acct.History = append(acct.History, models.Transaction{
		ID:          utils.GenerateTransactionID(),
		Timestamp:   s.now().Truncate(time.Second),
		Kind:        kind,
		Amount:      amount,
		Description: description,
	})
}
