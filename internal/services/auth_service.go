// Path: internal/services/auth_service.go
package services

import (
	"atm-api/internal/models"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultMaxFailedAttempts = 3
	DefaultLockDuration      = 60 * time.Minute
	DefaultSessionTTL        = 2 * time.Minute
)

// AuthService gates every terminal operation behind a PIN check and the lockout policy.
type AuthService interface {
	ValidatePin(acct *models.Account, pin string) error
	Authenticate(cardID, pin string) (*Session, error)
	Authorize(token string) (*Session, error)
	LockStatus(acct *models.Account) (locked bool, until time.Time)
}

// AuthConfig holds the lockout policy and session signing settings.
type AuthConfig struct {
	Secret            string
	MaxFailedAttempts int
	LockDuration      time.Duration
	SessionTTL        time.Duration
	Now               func() time.Time
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if c.LockDuration <= 0 {
		c.LockDuration = DefaultLockDuration
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.Now == nil {
		c.Now = defaultNow
	}
	return c
}

// Session is the proof of one successful PIN entry. It authorizes exactly one operation
// on the account it was issued for.
type Session struct {
	Token     string
	ExpiresAt time.Time

	acct   *models.Account
	cardID string
	id     string
	auth   *authService
	used   atomic.Bool
}

// Account returns the account the session was issued for.
func (s *Session) Account() *models.Account {
	if s == nil {
		return nil
	}
	return s.acct
}

// open locks the session account and spends the session. On success the caller holds
// the account lock and must release it.
func (s *Session) open() (*models.Account, error) {
	if s == nil || s.acct == nil || s.auth == nil || s.id == "" {
		return nil, sessionError("no authenticated session")
	}
	acct := s.acct
	acct.Lock()
	if err := s.consume(); err != nil {
		acct.Unlock()
		return nil, err
	}
	return acct, nil
}

// consume spends the session. Callers must hold the account lock.
func (s *Session) consume() error {
	if s.acct.CardID != s.cardID {
		return sessionError("session was issued for another card")
	}
	if !s.used.CompareAndSwap(false, true) {
		return sessionError("session already used")
	}
	if err := s.auth.redeem(s.id, s.ExpiresAt); err != nil {
		return err
	}
	return s.auth.checkLock(s.acct)
}

type authService struct {
	store  AccountStore
	logger *zap.Logger
	cfg    AuthConfig

	mu       sync.Mutex
	redeemed map[string]time.Time // jti -> expiry
}

// NewAuthService creates a new AuthService.
func NewAuthService(store AccountStore, logger *zap.Logger, cfg AuthConfig) AuthService {
	return &authService{
		store:    store,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		redeemed: make(map[string]time.Time),
	}
}

// ValidatePin runs one step of the lockout state machine for acct.
// It returns nil on a match, ErrWrongPin on a mismatch and ErrAccountLocked while the
// account is locked. The attempt that reaches the limit matches both ErrWrongPin and
// ErrAccountLocked.
func (s *authService) ValidatePin(acct *models.Account, pin string) error {
	acct.Lock()
	defer acct.Unlock()

	if err := s.checkLock(acct); err != nil {
		authAttempts.WithLabelValues("locked").Inc()
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PinHash), []byte(pin)); err == nil {
		acct.FailedAttempts = 0
		authAttempts.WithLabelValues("success").Inc()
		return nil
	}

	acct.FailedAttempts++
	if acct.FailedAttempts >= s.cfg.MaxFailedAttempts {
		acct.FailedAttempts = s.cfg.MaxFailedAttempts
		acct.Locked = true
		acct.LockedAt = s.cfg.Now()
		accountLockouts.Inc()
		authAttempts.WithLabelValues("wrong_pin").Inc()
		s.logger.Warn("account locked after failed PIN attempts",
			zap.String("card_id", acct.CardID),
			zap.Int("failed_attempts", acct.FailedAttempts),
			zap.Duration("lock_duration", s.cfg.LockDuration),
		)
		return s.lockedError(acct, fmt.Errorf("%w: %w", ErrWrongPin, ErrAccountLocked))
	}

	authAttempts.WithLabelValues("wrong_pin").Inc()
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: "Incorrect PIN",
		Details: fmt.Sprintf("card_id: %s, attempts remaining: %d", acct.CardID, s.cfg.MaxFailedAttempts-acct.FailedAttempts),
		Err:     ErrWrongPin,
	}
}

// checkLock lifts an elapsed lock and rejects an account that is still locked.
// Callers must hold the account lock.
func (s *authService) checkLock(acct *models.Account) error {
	s.expireLock(acct, s.cfg.Now())
	if acct.Locked {
		return s.lockedError(acct, ErrAccountLocked)
	}
	return nil
}

// expireLock lifts a lock whose duration has elapsed. Callers must hold the account lock.
func (s *authService) expireLock(acct *models.Account, now time.Time) {
	if !acct.Locked || now.Sub(acct.LockedAt) < s.cfg.LockDuration {
		return
	}
	acct.Locked = false
	acct.LockedAt = time.Time{}
	acct.FailedAttempts = 0
	s.logger.Info("account lock expired", zap.String("card_id", acct.CardID))
}

func (s *authService) lockedError(acct *models.Account, err error) error {
	return &AppError{
		Code:    http.StatusLocked,
		Message: "Account is locked",
		Details: fmt.Sprintf("card_id: %s, retry after: %s", acct.CardID, acct.LockedAt.Add(s.cfg.LockDuration).Format(time.RFC3339)),
		Err:     err,
	}
}

// LockStatus reports whether acct is inside its lockout window and when it ends.
// It does not lift an elapsed lock; only ValidatePin does that.
func (s *authService) LockStatus(acct *models.Account) (bool, time.Time) {
	acct.Lock()
	defer acct.Unlock()
	if !acct.Locked {
		return false, time.Time{}
	}
	until := acct.LockedAt.Add(s.cfg.LockDuration)
	return s.cfg.Now().Before(until), until
}

// Authenticate resolves the card, validates the PIN and mints a single-use session.
func (s *authService) Authenticate(cardID, pin string) (*Session, error) {
	acct, err := s.store.Lookup(cardID)
	if err != nil {
		return nil, err
	}
	if err := s.ValidatePin(acct, pin); err != nil {
		s.logger.Info("PIN validation failed", zap.String("card_id", cardID), zap.Error(err))
		return nil, err
	}

	now := s.cfg.Now()
	claims := &models.Claims{
		CardID: cardID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "atm-api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, &AppError{Code: http.StatusInternalServerError, Message: "Failed to sign session", Details: err.Error(), Err: err}
	}

	return &Session{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		acct:      acct,
		cardID:    claims.CardID,
		id:        claims.ID,
		auth:      s,
	}, nil
}

// Authorize turns a session token back into a Session. The token is spent when the
// session is used by the TransactionService.
func (s *authService) Authorize(tokenString string) (*Session, error) {
	claims := &models.Claims{}
	// Expiry is checked against the service clock below.
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, sessionError(err.Error())
	}
	if !token.Valid || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, sessionError("token is not valid")
	}
	if !claims.VerifyExpiresAt(s.cfg.Now(), true) {
		return nil, sessionError("token expired")
	}
	if s.isRedeemed(claims.ID) {
		return nil, sessionError("token already used")
	}

	acct, err := s.store.Lookup(claims.CardID)
	if err != nil {
		return nil, sessionError(err.Error())
	}

	return &Session{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		acct:      acct,
		cardID:    claims.CardID,
		id:        claims.ID,
		auth:      s,
	}, nil
}

func (s *authService) isRedeemed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.redeemed[id]
	return ok
}

// redeem marks a token id as spent. Expired ids are dropped on the way.
func (s *authService) redeem(id string, expiresAt time.Time) error {
	now := s.cfg.Now()
	if !now.Before(expiresAt) {
		return sessionError("session expired")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, exp := range s.redeemed {
		if !now.Before(exp) {
			delete(s.redeemed, k)
		}
	}
	if _, ok := s.redeemed[id]; ok {
		return sessionError("session already used")
	}
	s.redeemed[id] = expiresAt
	return nil
}
