// Path: internal/models/models.go
package models

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Карта клиента: здесь хранится PIN (хэш), баланс и счетчик неудачных попыток
type Account struct {
	sync.Mutex `json:"-"`

	CardID         string        `json:"card_id"`
	CardNumber     string        `json:"-"`
	PinHash        string        `json:"-"`
	Balance        int64         `json:"balance"`
	BalanceHash    string        `json:"-"`
	HolderName     string        `json:"holder_name"`
	BankName       string        `json:"bank_name"`
	FailedAttempts int           `json:"failed_attempts"`
	Locked         bool          `json:"locked"`
	LockedAt       time.Time     `json:"locked_at"`
	History        []Transaction `json:"-"`
}

// View copies the display fields. Callers must hold the account lock.
func (a *Account) View(maskedNumber string) AccountView {
	return AccountView{
		CardID:     a.CardID,
		CardNumber: maskedNumber,
		HolderName: a.HolderName,
		BankName:   a.BankName,
	}
}

// AccountView is what the terminal shows after a card is inserted.
type AccountView struct {
	CardID     string `json:"card_id"`
	CardNumber string `json:"card_number"`
	HolderName string `json:"holder_name"`
	BankName   string `json:"bank_name"`
}

type TransactionKind string

const (
	KindWithdrawal       TransactionKind = "withdrawal"
	KindWithdrawalFailed TransactionKind = "withdrawal_failed"
	KindFastCash         TransactionKind = "fast_cash"
	KindFastCashFailed   TransactionKind = "fast_cash_failed"
	KindBalanceInquiry   TransactionKind = "balance_inquiry"
	KindPinChange        TransactionKind = "pin_change"
)

// Записывает все операции по карте, включая отклоненные снятия
type Transaction struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Kind        TransactionKind `json:"kind"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
}

type SessionRequest struct {
	Pin string `json:"pin" validate:"required"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}

type FastCashRequest struct {
	Selection int `json:"selection"`
}

type ChangePinRequest struct {
	NewPin     string `json:"new_pin" validate:"required"`
	ConfirmPin string `json:"confirm_pin" validate:"required"`
}

// JWT сессии: одна операция на один токен
type Claims struct {
	CardID string `json:"card_id"`
	jwt.RegisteredClaims
}
