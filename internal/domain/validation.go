package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxIdentifierLength  = 128
	MaxDescriptionLength = 500
	MaxReferenceLength   = 255
	MaxTransactionAmount = "1000000000000" // 1 trillion
	MaxPageSize          = 1000
	DefaultPageSize      = 50
)

// Minor units per ISO 4217 currency.
var currencyScales = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "JPY": 0,
	"CNY": 2, "AUD": 2, "CAD": 2, "CHF": 2,
	"SEK": 2, "NZD": 2, "KRW": 0, "SGD": 2,
	"NOK": 2, "MXN": 2, "INR": 2, "BRL": 2,
	"ZAR": 2, "HKD": 2,
}

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	if _, ok := currencyScales[NormalizeCurrency(currency)]; !ok {
		return fmt.Errorf("%w: %s is not a supported ISO 4217 currency code", ErrInvalidRequest, currency)
	}
	return nil
}

// CurrencyScale returns the number of minor-unit digits for currency (2 if unknown).
func CurrencyScale(currency string) int32 {
	if scale, ok := currencyScales[NormalizeCurrency(currency)]; ok {
		return scale
	}
	return 2
}

// ValidateIdentifier validates matter, client and firm account identifiers.
func ValidateIdentifier(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidRequest, field, MaxIdentifierLength)
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("%w: %s contains forbidden characters", ErrInvalidRequest, field)
	}
	return nil
}

// ValidateAmount checks that amount is strictly positive, representable in the
// currency's minor units and below maxAmount. A zero maxAmount disables the ceiling.
func ValidateAmount(amount Money, currency string, maxAmount Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}

	if scale := CurrencyScale(currency); amount.Scale() > scale {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrInvalidAmount, NormalizeCurrency(currency), scale)
	}

	if !maxAmount.IsZero() && amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, maxAmount)
	}

	return nil
}

// ValidateDescription validates the human-readable description of an entry.
func ValidateDescription(description string) error {
	description = strings.TrimSpace(description)

	if description == "" {
		return fmt.Errorf("%w: description cannot be empty", ErrInvalidRequest)
	}

	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRequest, MaxDescriptionLength)
	}

	return nil
}

// ValidateReference validates the optional external reference (e.g. check number).
func ValidateReference(reference string) error {
	if utf8.RuneCountInString(reference) > MaxReferenceLength {
		return fmt.Errorf("%w: reference exceeds %d characters", ErrInvalidRequest, MaxReferenceLength)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}

	if limit > MaxPageSize {
		return MaxPageSize
	}

	return limit
}
