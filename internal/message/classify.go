package message

import (
	"regexp"
	"strings"
)

// bankKeywords is the bank/payment vocabulary, matched as lower-case substrings.
var bankKeywords = []string{
	"debited", "credited", "upi", "bank", "account", "balance", "payment",
	"transaction", "spent", "received", "transfer", "withdraw", "deposit",
}

// providerIndicator names banks, UPI and wallet apps.
var providerIndicator = regexp.MustCompile(`(?i)bank|upi|paytm|gpay|googlepay|google pay|phonepe|bhim|amazon pay`)

// IsTransactionMessage reports whether text looks like a financial transaction
// notification: it uses the bank vocabulary and carries a currency amount.
func IsTransactionMessage(text string) bool {
	return hasBankKeyword(text) && currencyAmount.MatchString(text)
}

// IsBankMessage is the stricter gate used for automatic ingestion. On top of
// IsTransactionMessage it needs a bank or payment provider named in the text or
// in the sender id (e.g. "HDFC-BANK").
func IsBankMessage(text, sender string) bool {
	if !IsTransactionMessage(text) {
		return false
	}
	return providerIndicator.MatchString(text) || providerIndicator.MatchString(sender)
}

func hasBankKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range bankKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
