package message

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var balancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bbalance\b`),
	regexp.MustCompile(`\bavailable\b`),
	regexp.MustCompile(`\bbal\b`),
}

// ExtractBalance returns the account balance the message reports, taken from
// the first number following a balance keyword in the same clause.
func ExtractBalance(text string) (decimal.Decimal, bool) {
	lower := strings.ToLower(text)
	for _, p := range balancePatterns {
		for _, loc := range p.FindAllStringIndex(lower, -1) {
			if v, ok := firstAmount(clauseAt(lower, loc[1])); ok {
				return v, true
			}
		}
	}
	return decimal.Decimal{}, false
}
