// Path: pkg/database/database.go
package database

import (
	"atm-api/internal/models"
	"atm-api/internal/services"
	"atm-api/pkg/utils"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SeedAccount is one card of the fixed account set loaded at startup.
type SeedAccount struct {
	CardID     string
	CardNumber string
	Pin        string
	Balance    int64 // cents
	BankName   string
	HolderName string
}

// DefaultAccounts is the card set the terminal ships with.
var DefaultAccounts = []SeedAccount{
	{CardID: "k", CardNumber: "1234-5678-9012-3456", Pin: "1234", Balance: 50_000_00, BankName: "SBI", HolderName: "Nayaj"},
	{CardID: "s", CardNumber: "2345-6789-0123-4567", Pin: "5678", Balance: 100_000_00, BankName: "HDFC", HolderName: "Nayaj"},
	{CardID: "l", CardNumber: "3456-7890-1234-5678", Pin: "9123", Balance: 600_000_00, BankName: "ICICI", HolderName: "Nayaj"},
	{CardID: "i", CardNumber: "4567-8901-2345-6789", Pin: "4567", Balance: 900_000_00, BankName: "AXIS", HolderName: "Nayaj"},
	{CardID: "n", CardNumber: "5678-9012-3456-7890", Pin: "8912", Balance: 30_000_00, BankName: "PNB", HolderName: "Nayaj"},
}

// Config holds what is needed to turn seeds into accounts.
type Config struct {
	SecretKey   string
	PinHashCost int
}

// InitStore hashes the seed PINs, signs the balances and builds the account store.
func InitStore(cfg Config, seeds []SeedAccount) (services.AccountStore, error) {
	accounts, err := createAccounts(cfg, seeds)
	if err != nil {
		return nil, err
	}
	return services.NewAccountStore(accounts...)
}

// createAccounts validates every seed before building any account.
func createAccounts(cfg Config, seeds []SeedAccount) ([]*models.Account, error) {
	cost := cfg.PinHashCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}

	accounts := make([]*models.Account, 0, len(seeds))
	for _, seed := range seeds {
		if !utils.IsValidPin(seed.Pin) {
			return nil, fmt.Errorf("seed %q: PIN must be %d digits", seed.CardID, utils.PinLength)
		}
		if seed.Balance < 0 {
			return nil, fmt.Errorf("seed %q: negative balance", seed.CardID)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(seed.Pin), cost)
		if err != nil {
			return nil, fmt.Errorf("seed %q: failed to hash PIN: %w", seed.CardID, err)
		}

		accounts = append(accounts, &models.Account{
			CardID:      seed.CardID,
			CardNumber:  seed.CardNumber,
			PinHash:     string(hashed),
			Balance:     seed.Balance,
			BalanceHash: utils.CalculateBalanceHash(seed.Balance, seed.CardID, cfg.SecretKey),
			HolderName:  seed.HolderName,
			BankName:    seed.BankName,
		})
	}
	return accounts, nil
}
