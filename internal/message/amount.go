package message

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"sms-ledger/internal/domain"
)

// Amount is a transaction magnitude with its direction.
type Amount struct {
	Value     decimal.Decimal
	Direction domain.Direction
}

type directionPattern struct {
	direction domain.Direction
	verb      *regexp.Regexp
}

// directionPatterns is tried top to bottom and the first hit wins. Every debit
// pattern precedes every credit pattern, so a message using both vocabularies
// resolves to a debit.
var directionPatterns = []directionPattern{
	{domain.Debit, regexp.MustCompile(`\bdebited\b`)},
	{domain.Debit, regexp.MustCompile(`\bspent\b`)},
	{domain.Debit, regexp.MustCompile(`\bpaid\b`)},
	{domain.Debit, regexp.MustCompile(`\bwithdrawn\b`)},
	{domain.Debit, regexp.MustCompile(`\bpurchase`)},
	{domain.Debit, regexp.MustCompile(`\bpayment\s+of\s+[^;\n]{0,30}?\b(?:made|done|sent)\b`)},
	{domain.Credit, regexp.MustCompile(`\bcredited\b`)},
	{domain.Credit, regexp.MustCompile(`\breceived\b`)},
	{domain.Credit, regexp.MustCompile(`\bdeposited\b`)},
	{domain.Credit, regexp.MustCompile(`\bsalary\b`)},
	{domain.Credit, regexp.MustCompile(`\brefund`)},
}

// ExtractAmountAndDirection finds the amount attached to the first matching
// debit or credit verb. The amount is either currency-marked and written right
// before the verb ("Rs.500 debited") or the first number after the verb within
// the same clause ("spent Rs 250 at ...").
func ExtractAmountAndDirection(text string) (Amount, bool) {
	lower := strings.ToLower(text)
	for _, p := range directionPatterns {
		for _, loc := range p.verb.FindAllStringIndex(lower, -1) {
			if v, ok := amountNear(lower, loc); ok {
				return Amount{Value: v, Direction: p.direction}, true
			}
		}
	}
	return Amount{}, false
}

func amountNear(lower string, loc []int) (decimal.Decimal, bool) {
	if v, ok := amountBefore(lower[:loc[0]]); ok {
		return v, true
	}
	return firstAmount(clauseAt(lower, loc[0]))
}
