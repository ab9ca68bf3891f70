// Package domain holds the records shared by the parser, the aggregator and the store.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is whether a transaction decreases (debit) or increases (credit) the balance.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Transaction source tags. Informational only.
const (
	SourceSMS    = "sms"
	SourceManual = "manual"
)

// AmountScale is the number of decimal places money is stored with.
const AmountScale = 2

// MaxAmount is the largest magnitude the ledger stores, for amounts and balances alike.
var MaxAmount = decimal.RequireFromString("999999999999.99")

var (
	ErrInvalidDirection = errors.New("transaction type must be 'debit' or 'credit'")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrAmountPrecision  = errors.New("amount must have at most two decimal places")
	ErrAmountOutOfRange = errors.New("amount is too large")
	ErrInvalidCategory  = errors.New("unknown category")
)

// IsValidationError reports whether err comes from Transaction.Validate.
// Retrying such a transaction can never succeed.
func IsValidationError(err error) bool {
	for _, target := range []error{ErrInvalidDirection, ErrInvalidAmount, ErrAmountPrecision, ErrAmountOutOfRange, ErrInvalidCategory} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseDirection accepts "debit" or "credit" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Debit:
		return Debit, nil
	case Credit:
		return Credit, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidDirection, s)
}

// Transaction is an append-only ledger record. It is never updated once stored.
type Transaction struct {
	ID              int64               `json:"id"`
	Amount          decimal.Decimal     `json:"amount"`
	Direction       Direction           `json:"transaction_type"`
	Description     *string             `json:"description"`
	Merchant        *string             `json:"merchant"`
	Category        Category            `json:"category"`
	BalanceAfter    decimal.NullDecimal `json:"balance_after"`
	Source          string              `json:"source"`
	SourceHash      *string             `json:"-"`
	TransactionDate time.Time           `json:"transaction_date"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Validate checks the invariants every persisted transaction must hold.
func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Amount.Equal(t.Amount.Round(AmountScale)) {
		return ErrAmountPrecision
	}
	if t.Amount.GreaterThan(MaxAmount) {
		return ErrAmountOutOfRange
	}
	if t.BalanceAfter.Valid && t.BalanceAfter.Decimal.Abs().GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: balance %s", ErrAmountOutOfRange, t.BalanceAfter.Decimal)
	}
	if t.Direction != Debit && t.Direction != Credit {
		return fmt.Errorf("%w: got %q", ErrInvalidDirection, t.Direction)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidCategory, t.Category)
	}
	return nil
}

// HasBalance reports whether the source message reported a resulting balance.
func (t Transaction) HasBalance() bool {
	return t.BalanceAfter.Valid
}
