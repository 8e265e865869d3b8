// Path: internal/services/service.go
package services

import (
	"atm-api/internal/models"
	"atm-api/pkg/utils"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Domain errors. Services wrap them in *AppError; match them with errors.Is.
var (
	ErrCardNotFound      = errors.New("card not found")
	ErrWrongPin          = errors.New("incorrect PIN")
	ErrAccountLocked     = errors.New("account is locked")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSelection  = errors.New("invalid fast cash selection")
	ErrPinMismatch       = errors.New("PINs don't match")
	ErrInvalidPinFormat  = errors.New("PIN must be exactly 4 digits")
	ErrSessionInvalid    = errors.New("session is invalid or already used")
	ErrIntegrity         = errors.New("balance integrity check failed")
)

// AppError is a custom error type that includes an HTTP status code.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("AppError: %s (Code: %d, Details: %s)", e.Message, e.Code, e.Details)
}

func (e *AppError) Unwrap() error { return e.Err }

// Service bundles the three components the terminal talks to.
type Service struct {
	Accounts     AccountStore
	Auth         AuthService
	Transactions TransactionService
}

// NewService wires an AuthService and a TransactionService over the same store.
func NewService(store AccountStore, logger *zap.Logger, cfg AuthConfig, pinHashCost int) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		Accounts:     store,
		Auth:         NewAuthService(store, logger, cfg),
		Transactions: NewTransactionService(logger, cfg.Secret, pinHashCost, cfg.Now),
	}
}

// verifyBalance checks the balance against its HMAC. Callers must hold the account lock.
func verifyBalance(acct *models.Account, secretKey string) error {
	expected := utils.CalculateBalanceHash(acct.Balance, acct.CardID, secretKey)
	if acct.BalanceHash != expected {
		return &AppError{Code: http.StatusInternalServerError, Message: "Balance integrity check failed", Details: fmt.Sprintf("card_id: %s", acct.CardID), Err: ErrIntegrity}
	}
	return nil
}

// setBalance updates the balance and its hash together. Callers must hold the account lock.
func setBalance(acct *models.Account, balance int64, secretKey string) {
	acct.Balance = balance
	acct.BalanceHash = utils.CalculateBalanceHash(balance, acct.CardID, secretKey)
}

func sessionError(details string) error {
	return &AppError{Code: http.StatusUnauthorized, Message: "Invalid session", Details: details, Err: ErrSessionInvalid}
}

func defaultNow() time.Time { return time.Now() }
