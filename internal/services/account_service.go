// Path: internal/services/account_service.go
package services

import (
	"atm-api/internal/models"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// AccountStore resolves inserted cards to their accounts.
type AccountStore interface {
	Lookup(cardID string) (*models.Account, error)
	CardIDs() []string
}

type accountStore struct {
	accounts map[string]*models.Account
	cardIDs  []string
}

// NewAccountStore creates a store over a fixed set of accounts. The set never changes afterwards,
// so lookups need no locking; each account carries its own mutex.
func NewAccountStore(accounts ...*models.Account) (AccountStore, error) {
	s := &accountStore{accounts: make(map[string]*models.Account, len(accounts))}
	for _, acc := range accounts {
		if acc == nil || acc.CardID == "" {
			return nil, errors.New("account without card id")
		}
		if _, ok := s.accounts[acc.CardID]; ok {
			return nil, fmt.Errorf("duplicate card id %q", acc.CardID)
		}
		s.accounts[acc.CardID] = acc
		s.cardIDs = append(s.cardIDs, acc.CardID)
	}
	sort.Strings(s.cardIDs)
	return s, nil
}

// Lookup returns the account behind a card.
func (s *accountStore) Lookup(cardID string) (*models.Account, error) {
	acc, ok := s.accounts[cardID]
	if !ok {
		return nil, &AppError{Code: http.StatusNotFound, Message: "Invalid card", Details: fmt.Sprintf("card_id: %s", cardID), Err: ErrCardNotFound}
	}
	return acc, nil
}

// CardIDs lists the cards that can be inserted, sorted.
func (s *accountStore) CardIDs() []string {
	out := make([]string, len(s.cardIDs))
	copy(out, s.cardIDs)
	return out
}
