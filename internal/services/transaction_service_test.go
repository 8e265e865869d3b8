package services

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"atm-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdraw_InsufficientFundsIsLogged(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	_, err := svc.Transactions.Withdraw(login(t, svc, "k", "1234"), usd(60000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)

	assert.Equal(t, usd(50000), acct.Balance)
	require.Len(t, acct.History, 1)
	assert.Equal(t, models.KindWithdrawalFailed, acct.History[0].Kind)
	assert.Equal(t, usd(60000), acct.History[0].Amount)
	assert.Equal(t, "Failed withdrawal attempt: $60000", acct.History[0].Description)
}

func TestWithdraw_DebitsExactAmount(t *testing.T) {
	clock := newFakeClock()
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, clock, acct)

	balance, err := svc.Transactions.Withdraw(login(t, svc, "k", "1234"), usd(40))
	require.NoError(t, err)
	assert.Equal(t, usd(49960), balance)
	assert.Equal(t, usd(49960), acct.Balance)

	require.Len(t, acct.History, 1)
	entry := acct.History[0]
	assert.Equal(t, models.KindWithdrawal, entry.Kind)
	assert.Equal(t, "Withdrawn: $40", entry.Description)
	assert.Equal(t, clock.Now().Truncate(time.Second), entry.Timestamp)
	assert.NotEmpty(t, entry.ID)

	// the whole balance may be withdrawn, leaving exactly zero
	balance, err = svc.Transactions.Withdraw(login(t, svc, "k", "1234"), usd(49960))
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestWithdraw_InvalidAmount(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(100))
	svc := newTestService(t, newFakeClock(), acct)

	for _, amount := range []int64{0, -5} {
		_, err := svc.Transactions.Withdraw(login(t, svc, "k", "1234"), amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount=%d", amount)
	}
	assert.Equal(t, usd(100), acct.Balance)
	assert.Empty(t, acct.History)
}

func TestFastCash_Scenario(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	balance, err := svc.Transactions.FastCash(login(t, svc, "k", "1234"), 3)
	require.NoError(t, err)
	assert.Equal(t, usd(49940), balance)

	require.Len(t, acct.History, 1)
	assert.Equal(t, models.KindFastCash, acct.History[0].Kind)
	assert.Equal(t, usd(60), acct.History[0].Amount)
	assert.Equal(t, "Fast cash withdrawn: $60", acct.History[0].Description)
}

func TestFastCash_InvalidSelection(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	for _, selection := range []int{0, 7, -1} {
		_, err := svc.Transactions.FastCash(login(t, svc, "k", "1234"), selection)
		assert.ErrorIs(t, err, ErrInvalidSelection, "selection=%d", selection)
	}
	assert.Equal(t, usd(50000), acct.Balance)
	assert.Empty(t, acct.History)
}

func TestFastCash_InsufficientFunds(t *testing.T) {
	acct := newAccount(t, "n", "8912", usd(50))
	svc := newTestService(t, newFakeClock(), acct)

	_, err := svc.Transactions.FastCash(login(t, svc, "n", "8912"), 6)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, usd(50), acct.Balance)

	require.Len(t, acct.History, 1)
	assert.Equal(t, models.KindFastCashFailed, acct.History[0].Kind)
	assert.Equal(t, "Failed fast cash attempt: $200", acct.History[0].Description)
}

func TestFastCashOptions(t *testing.T) {
	svc := newTestService(t, newFakeClock(), newAccount(t, "k", "1234", 0))

	opts := svc.Transactions.FastCashOptions()
	assert.Equal(t, []int64{usd(20), usd(40), usd(60), usd(80), usd(100), usd(200)}, opts)

	opts[0] = 1
	assert.Equal(t, usd(20), svc.Transactions.FastCashOptions()[0])
}

func TestCheckBalance_RecordsInquiry(t *testing.T) {
	acct := newAccount(t, "s", "5678", usd(100000))
	svc := newTestService(t, newFakeClock(), acct)

	balance, err := svc.Transactions.CheckBalance(login(t, svc, "s", "5678"))
	require.NoError(t, err)
	assert.Equal(t, usd(100000), balance)

	require.Len(t, acct.History, 1)
	assert.Equal(t, models.KindBalanceInquiry, acct.History[0].Kind)
	assert.Equal(t, "Balance checked", acct.History[0].Description)
}

func TestViewHistory(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	history, err := svc.Transactions.ViewHistory(login(t, svc, "k", "1234"))
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	_, err = svc.Transactions.Withdraw(login(t, svc, "k", "1234"), usd(20))
	require.NoError(t, err)
	_, err = svc.Transactions.Withdraw(login(t, svc, "k", "1234"), usd(90000))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = svc.Transactions.CheckBalance(login(t, svc, "k", "1234"))
	require.NoError(t, err)

	history, err = svc.Transactions.ViewHistory(login(t, svc, "k", "1234"))
	require.NoError(t, err)
	kinds := make([]models.TransactionKind, 0, len(history))
	for _, tx := range history {
		kinds = append(kinds, tx.Kind)
	}
	assert.Equal(t, []models.TransactionKind{
		models.KindWithdrawal,
		models.KindWithdrawalFailed,
		models.KindBalanceInquiry,
	}, kinds)

	// viewing appends nothing and callers get a copy
	history[0].Description = "edited"
	assert.Len(t, acct.History, 3)
	assert.Equal(t, "Withdrawn: $20", acct.History[0].Description)
}

func TestChangePin(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	err := svc.Transactions.ChangePin(login(t, svc, "k", "1234"), "4321", "4322")
	assert.ErrorIs(t, err, ErrPinMismatch)

	for _, pin := range []string{"123", "12345", "12a4", ""} {
		err = svc.Transactions.ChangePin(login(t, svc, "k", "1234"), pin, pin)
		assert.ErrorIs(t, err, ErrInvalidPinFormat, "pin=%q", pin)
	}
	assert.Empty(t, acct.History)

	require.NoError(t, svc.Transactions.ChangePin(login(t, svc, "k", "1234"), "4321", "4321"))
	require.Len(t, acct.History, 1)
	assert.Equal(t, models.KindPinChange, acct.History[0].Kind)
	assert.Equal(t, "PIN changed", acct.History[0].Description)

	assert.ErrorIs(t, svc.Auth.ValidatePin(acct, "1234"), ErrWrongPin)
	assert.NoError(t, svc.Auth.ValidatePin(acct, "4321"))
}

func TestOperations_RequireFreshSession(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	_, err := svc.Transactions.Withdraw(nil, usd(20))
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = svc.Transactions.Withdraw(&Session{acct: acct}, usd(20))
	assert.ErrorIs(t, err, ErrSessionInvalid)

	sess := login(t, svc, "k", "1234")
	_, err = svc.Transactions.Withdraw(sess, usd(20))
	require.NoError(t, err)

	_, err = svc.Transactions.Withdraw(sess, usd(20))
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.ErrorIs(t, svc.Transactions.ChangePin(sess, "0000", "0000"), ErrSessionInvalid)

	assert.Equal(t, usd(49980), acct.Balance)
}

func TestWithdraw_DetectsTamperedBalance(t *testing.T) {
	acct := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct)

	acct.Balance = usd(1_000_000)

	_, err := svc.Transactions.Withdraw(login(t, svc, "k", "1234"), usd(20))
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = svc.Transactions.CheckBalance(login(t, svc, "k", "1234"))
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Empty(t, acct.History)
}

func TestWithdraw_ConcurrentNeverOverdraws(t *testing.T) {
	acct := newAccount(t, "n", "8912", usd(30000))
	other := newAccount(t, "k", "1234", usd(50000))
	svc := newTestService(t, newFakeClock(), acct, other)

	const workers = 50
	sessions := make([]*Session, workers)
	otherSessions := make([]*Session, workers)
	for i := range sessions {
		sessions[i] = login(t, svc, "n", "8912")
		otherSessions[i] = login(t, svc, "k", "1234")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	wg.Add(2 * workers)
	for i := 0; i < workers; i++ {
		go func(sess *Session) {
			defer wg.Done()
			if _, err := svc.Transactions.Withdraw(sess, usd(1000)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}(sessions[i])
		go func(sess *Session) {
			defer wg.Done()
			_, err := svc.Transactions.FastCash(sess, 1)
			assert.NoError(t, err)
		}(otherSessions[i])
	}
	wg.Wait()

	assert.Equal(t, 30, succeeded)
	assert.Zero(t, acct.Balance)
	assert.Len(t, acct.History, workers)
	assert.Equal(t, usd(50000)-workers*usd(20), other.Balance)
}

func TestSession_BoundToIssuingCard(t *testing.T) {
	k := newAccount(t, "k", "1234", usd(50000))
	s := newAccount(t, "s", "5678", usd(100000))
	svc := newTestService(t, newFakeClock(), k, s)

	sess := login(t, svc, "k", "1234")
	assert.Same(t, k, sess.Account())
	sess.acct = s

	_, err := svc.Transactions.Withdraw(sess, usd(50))
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, usd(100000), s.Balance)
	assert.Equal(t, usd(50000), k.Balance)
	assert.Empty(t, s.History)
}

func TestOperations_RefusedOnceAccountLocks(t *testing.T) {
	clock := newFakeClock()
	acct := newAccount(t, "k", "1234", usd(80))
	svc := newTestService(t, clock, acct)

	sess := login(t, svc, "k", "1234")
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		_ = svc.Auth.ValidatePin(acct, "0000")
	}
	require.True(t, acct.Locked)

	_, err := svc.Transactions.Withdraw(sess, usd(20))
	assert.ErrorIs(t, err, ErrAccountLocked)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusLocked, appErr.Code)
	assert.Equal(t, usd(80), acct.Balance)
	assert.Empty(t, acct.History)

	// once the lock lapses a fresh login works again
	clock.Advance(DefaultLockDuration)
	balance, err := svc.Transactions.CheckBalance(login(t, svc, "k", "1234"))
	require.NoError(t, err)
	assert.Equal(t, usd(80), balance)
}
