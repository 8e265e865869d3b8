// Path: pkg/utils/utils.go
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PinLength is the only accepted PIN length.
const PinLength = 4

// CreateHMAC creates an HMAC-SHA256 hash of the given data.
func CreateHMAC(data string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// CalculateBalanceHash binds a balance to the card it belongs to.
func CalculateBalanceHash(balance int64, cardID string, secretKey string) string {
	return CreateHMAC(fmt.Sprintf("%d:%s", balance, cardID), []byte(secretKey))
}

// GenerateTransactionID generates a unique transaction ID.
func GenerateTransactionID() string {
	return uuid.NewString()
}

// FormatAmount renders minor units as a dollar string. Whole dollars print without
// a fraction: 4000 -> "$40", 4050 -> "$40.50".
func FormatAmount(cents int64) string {
	amount := decimal.New(cents, -2)
	if cents%100 == 0 {
		return "$" + amount.StringFixed(0)
	}
	return "$" + amount.StringFixed(2)
}

// MaskCardNumber keeps the last four digits: XXXX-XXXX-XXXX-3456.
func MaskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	visible := number[len(number)-4:]
	var b strings.Builder
	for _, r := range number[:len(number)-4] {
		if r == '-' || r == ' ' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('X')
	}
	b.WriteString(visible)
	return b.String()
}

// IsValidPin reports whether pin is exactly four ASCII digits.
func IsValidPin(pin string) bool {
	if len(pin) != PinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
