package domain

import "strings"

// Category is a spending category from the closed catalog.
type Category string

// Category constants, in catalog order. Other is the fallback and carries no keywords.
const (
	CategoryFood           Category = "Food"
	CategoryTransportation Category = "Transportation"
	CategoryEntertainment  Category = "Entertainment"
	CategoryShopping       Category = "Shopping"
	CategoryBills          Category = "Bills"
	CategoryHealthcare     Category = "Healthcare"
	CategoryIncome         Category = "Income"
	CategoryOther          Category = "Other"
)

// CategoryRule pairs a category with the lower-case keywords that select it.
type CategoryRule struct {
	Category Category `json:"name"`
	Keywords []string `json:"keywords"`
}

// catalog is evaluated top to bottom; the first rule with a matching keyword wins.
var catalog = []CategoryRule{
	{CategoryFood, []string{"restaurant", "cafe", "food", "grocery", "supermarket", "starbucks", "mcdonald", "pizza", "zomato", "swiggy"}},
	{CategoryTransportation, []string{"gas", "fuel", "uber", "taxi", "metro", "bus", "parking"}},
	{CategoryEntertainment, []string{"movie", "cinema", "netflix", "spotify", "game", "entertainment"}},
	{CategoryShopping, []string{"amazon", "store", "mall", "shop", "retail"}},
	{CategoryBills, []string{"electric", "water", "internet", "phone", "utility", "bill"}},
	{CategoryHealthcare, []string{"hospital", "pharmacy", "doctor", "medical", "health"}},
	{CategoryIncome, []string{"salary", "wage", "payment", "refund", "cashback"}},
}

// CategoryRules returns a copy of the keyword catalog in evaluation order.
func CategoryRules() []CategoryRule {
	out := make([]CategoryRule, len(catalog))
	for i, r := range catalog {
		out[i] = CategoryRule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Categories lists every category, including Other as the last entry.
func Categories() []Category {
	out := make([]Category, 0, len(catalog)+1)
	for _, r := range catalog {
		out = append(out, r.Category)
	}
	return append(out, CategoryOther)
}

// ParseCategory matches s against the catalog, ignoring case and surrounding space.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c belongs to the catalog.
func (c Category) Valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}
