package message

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"sms-ledger/internal/domain"
)

const (
	// currencyMarker is a currency code or symbol written in front of an amount.
	currencyMarker = `(?:\b(?:rs\.?|inr|usd|eur|gbp|aed|sgd)|[₹$€£])`
	// number allows western (4,500.00) and Indian (1,00,000.00) digit grouping.
	number = `\d+(?:,\d{2,3})*(?:\.\d+)?`

	// maxClause bounds how far past a keyword an amount is searched for.
	maxClause = 160
	// maxLookBehind bounds how far before a verb a currency-marked amount may start.
	maxLookBehind = 48
)

var (
	currencyAmount = regexp.MustCompile(`(?i)` + currencyMarker + `\s*\d`)
	amountToken    = regexp.MustCompile(`(?i)(` + currencyMarker + `)?\s*(` + number + `)`)
	// amountBeforeVerb matches "Rs.500.00 " or "INR 500 has been " at the end of a prefix.
	amountBeforeVerb = regexp.MustCompile(`(?i)` + currencyMarker + `\s*(` + number + `)\s*(?:has\s+been\s+|is\s+|was\s+)?$`)
	clauseBreak      = regexp.MustCompile(`[;\n]|\.\s`)
)

// abbreviations end in a period without ending the clause ("Rs. 250", "A/c no. 12").
var abbreviations = []string{"rs", "inr", "no", "avl", "bal", "a/c", "acct"}

// parseAmount strips digit grouping and rounds to cents. Amounts that round
// to zero or exceed domain.MaxAmount are rejected.
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	d = d.Round(domain.AmountScale)
	if !d.IsPositive() || d.GreaterThan(domain.MaxAmount) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// firstAmount returns the first amount in s. A bare number glued to letters, like the
// tail of a masked account "XXXX1234", is not an amount.
func firstAmount(s string) (decimal.Decimal, bool) {
	for _, m := range amountToken.FindAllStringSubmatchIndex(s, -1) {
		start := m[4]
		if m[2] < 0 && start > 0 && isAlnum(s[start-1]) {
			continue
		}
		if d, ok := parseAmount(s[start:m[5]]); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// amountBefore returns a currency-marked amount that ends s. Only the last
// maxLookBehind bytes of s are examined.
func amountBefore(s string) (decimal.Decimal, bool) {
	if len(s) > maxLookBehind {
		s = s[len(s)-maxLookBehind:]
	}
	m := amountBeforeVerb.FindStringSubmatch(s)
	if m == nil {
		return decimal.Decimal{}, false
	}
	return parseAmount(m[1])
}

// clauseAt returns s[from:] cut at the first clause boundary and at most
// maxClause bytes long. s must already be lower case.
func clauseAt(s string, from int) string {
	rest := s[from:]
	if len(rest) > maxClause {
		// drop a number cut in half by the limit
		rest = strings.TrimRight(rest[:maxClause], "0123456789,.")
	}
	for off := 0; off < len(rest); {
		loc := clauseBreak.FindStringIndex(rest[off:])
		if loc == nil {
			break
		}
		at := off + loc[0]
		if rest[at] == '.' && endsWithAbbreviation(s[:from+at]) {
			off += loc[1]
			continue
		}
		return rest[:at]
	}
	return rest
}

// endsWithAbbreviation reports whether the lower-case s ends in one of the
// abbreviations as a whole word.
func endsWithAbbreviation(s string) bool {
	for _, a := range abbreviations {
		if !strings.HasSuffix(s, a) {
			continue
		}
		if i := len(s) - len(a); i == 0 || !isLetter(s[i-1]) {
			return true
		}
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isAlnum(b byte) bool {
	return isLetter(b) || (b >= '0' && b <= '9')
}
