package message

import (
	"strings"

	"sms-ledger/internal/domain"
)

var categoryRules = domain.CategoryRules()

// Categorize returns the first catalog category with a keyword found in the
// message text or the merchant, ignoring case. It falls back to Other.
func Categorize(text, merchant string) domain.Category {
	text = strings.ToLower(text)
	merchant = strings.ToLower(merchant)
	for _, rule := range categoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) || (merchant != "" && strings.Contains(merchant, kw)) {
				return rule.Category
			}
		}
	}
	return domain.CategoryOther
}
