package services

import (
	"atm-api/internal/models"
	"atm-api/pkg/utils"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 500, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newAccount(t *testing.T, cardID, pin string, balance int64) *models.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Account{
		CardID:      cardID,
		CardNumber:  "1234-5678-9012-3456",
		PinHash:     string(hashed),
		Balance:     balance,
		BalanceHash: utils.CalculateBalanceHash(balance, cardID, testSecret),
		HolderName:  "Nayaj",
		BankName:    "SBI",
	}
}

func newTestService(t *testing.T, clock *fakeClock, accounts ...*models.Account) *Service {
	t.Helper()
	store, err := NewAccountStore(accounts...)
	require.NoError(t, err)
	return NewService(store, nopLogger(), AuthConfig{Secret: testSecret, Now: clock.Now}, bcrypt.MinCost)
}

func login(t *testing.T, svc *Service, cardID, pin string) *Session {
	t.Helper()
	sess, err := svc.Auth.Authenticate(cardID, pin)
	require.NoError(t, err)
	return sess
}

// usd converts whole dollars to cents.
func usd(dollars int64) int64 { return dollars * 100 }

func nopLogger() *zap.Logger { return zap.NewNop() }
