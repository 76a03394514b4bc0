package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"voyago/backend/internal/models"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive number")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidEmail        = errors.New("a valid PayPal email is required")
	ErrPaymentNotCaptured  = errors.New("payment was not captured")
)

// CaptureCompleted is the status a checkout reports for a settled payment.
const CaptureCompleted = "COMPLETED"

var validate = validator.New()

// CaptureAmount extracts the captured amount, rounded to cents. The
// capture must be COMPLETED and carry a positive amount in its first
// purchase unit.
func CaptureAmount(c models.PaymentCapture) (float64, error) {
	if !strings.EqualFold(c.Status, CaptureCompleted) {
		return 0, fmt.Errorf("%w: status %q", ErrPaymentNotCaptured, c.Status)
	}
	if len(c.PurchaseUnits) == 0 {
		return 0, fmt.Errorf("%w: no purchase units", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.PurchaseUnits[0].Amount.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return amount.InexactFloat64(), nil
}

// Withdrawal checks a payout request against the current balance.
func Withdrawal(amount, balance float64, paypalEmail string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ValidateEmail(paypalEmail); err != nil {
		return err
	}
	if decimal.NewFromFloat(amount).GreaterThan(decimal.NewFromFloat(balance)) {
		return ErrInsufficientBalance
	}
	return nil
}

// ValidateEmail checks that a payout address is a syntactically valid email.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// RoundCents rounds a currency amount to two decimal places.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
