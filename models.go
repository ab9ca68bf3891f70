package main

import (
	"time"

	"github.com/shopspring/decimal"

	"sms-ledger/internal/domain"
	"sms-ledger/internal/message"
)

// manualTransactionRequest is a transaction typed in by the user. It never
// goes through the message parser.
type manualTransactionRequest struct {
	Amount          decimal.Decimal     `json:"amount"`
	TransactionType string              `json:"transaction_type"`
	Description     *string             `json:"description"`
	Merchant        *string             `json:"merchant"`
	Category        string              `json:"category"`
	BalanceAfter    decimal.NullDecimal `json:"balance_after"`
	TransactionDate *time.Time          `json:"transaction_date"`
}

// messageRequest carries one raw notification. Sender and timestamp are
// optional.
type messageRequest struct {
	Message   string     `json:"message"`
	Sender    string     `json:"sender"`
	Timestamp *time.Time `json:"timestamp"`
}

type classifyResponse struct {
	IsTransactionMessage bool `json:"is_transaction_message"`
	IsBankMessage        bool `json:"is_bank_message"`
}

type transactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

type transactionResponse struct {
	Transaction domain.Transaction `json:"transaction"`
}

type parseMessageResponse struct {
	Transaction domain.Transaction        `json:"transaction"`
	Parsed      message.ParsedTransaction `json:"parsed"`
}

// ingestResponse reports what happened to a message sent to /api/ingest.
type ingestResponse struct {
	Status      string              `json:"status"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}

type settingsResponse struct {
	Settings domain.Settings `json:"settings"`
}

// categoryResponse is one entry of the closed category catalog.
type categoryResponse struct {
	Name     domain.Category `json:"name"`
	Keywords []string        `json:"keywords"`
}
