package calculator

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mmynk/pocketledger/internal/models"
)

// MaxDescriptionLength is the longest description accepted from user input.
const MaxDescriptionLength = 100

// MaxAmount is the sanity upper bound for any user-entered amount.
var MaxAmount = decimal.New(99999999, -2)

var (
	ErrAmountNotPositive   = errors.New("amount must be greater than 0")
	ErrAmountTooLarge      = errors.New("amount must not exceed 999999.99")
	ErrDescriptionRequired = errors.New("description is required")
	ErrDescriptionTooLong  = errors.New("description must be at most 100 characters")
	ErrInvalidType         = errors.New("type must be income or expense")
)

// ValidateTransactionDetail checks a single line item and returns the first failing rule.
// Amount rules are evaluated before description rules.
func ValidateTransactionDetail(item models.DetailItem) error {
	if err := validateAmount(item.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(item.Description) == "" {
		return ErrDescriptionRequired
	}
	if utf8.RuneCountInString(item.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateTransaction checks a user-entered transaction before it is written.
// The description is optional here, but bounded.
func ValidateTransaction(txType models.TransactionType, amount decimal.Decimal, description string) error {
	if !txType.Valid() {
		return ErrInvalidType
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// IsValidationError reports whether err came from one of the validators in this package.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrAmountNotPositive) ||
		errors.Is(err, ErrAmountTooLarge) ||
		errors.Is(err, ErrDescriptionRequired) ||
		errors.Is(err, ErrDescriptionTooLong) ||
		errors.Is(err, ErrInvalidType)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}
