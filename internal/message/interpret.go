// Package message turns bank and UPI notification text into transaction records.
//
// Every function here is pure and safe for concurrent use. Nothing in this
// package deduplicates: interpreting the same text twice yields two identical
// results, and idempotency is left to whoever stores them.
package message

import (
	"time"

	"github.com/shopspring/decimal"

	"sms-ledger/internal/domain"
)

// ReasonNoAmount is reported when no debit or credit verb with an amount is found.
const ReasonNoAmount = "no amount/direction found"

// ParseFailure means the text did not yield the mandatory amount and direction.
type ParseFailure struct {
	Reason string
}

func (e *ParseFailure) Error() string {
	return "could not parse transaction from message: " + e.Reason
}

// ParsedTransaction is the structured reading of one message.
type ParsedTransaction struct {
	Amount      decimal.Decimal     `json:"amount"`
	Direction   domain.Direction    `json:"type"`
	Description string              `json:"description"`
	Merchant    *string             `json:"merchant"`
	Category    domain.Category     `json:"category"`
	Balance     decimal.NullDecimal `json:"balance"`
}

// Interpret extracts amount, direction, balance, merchant and category from raw.
// The description is always raw itself, unmodified.
func Interpret(raw string) (ParsedTransaction, error) {
	amt, ok := ExtractAmountAndDirection(raw)
	if !ok {
		return ParsedTransaction{}, &ParseFailure{Reason: ReasonNoAmount}
	}

	p := ParsedTransaction{
		Amount:      amt.Value,
		Direction:   amt.Direction,
		Description: raw,
	}
	if bal, ok := ExtractBalance(raw); ok {
		p.Balance = decimal.NullDecimal{Decimal: bal, Valid: true}
	}
	merchant, ok := ExtractMerchant(raw)
	if ok {
		p.Merchant = &merchant
	}
	p.Category = Categorize(raw, merchant)
	return p, nil
}

// Transaction converts p into a record ready for the store.
func (p ParsedTransaction) Transaction(source string, at time.Time) domain.Transaction {
	desc := p.Description
	return domain.Transaction{
		Amount:          p.Amount,
		Direction:       p.Direction,
		Description:     &desc,
		Merchant:        p.Merchant,
		Category:        p.Category,
		BalanceAfter:    p.Balance,
		Source:          source,
		TransactionDate: at,
	}
}
