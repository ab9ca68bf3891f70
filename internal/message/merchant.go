package message

import (
	"regexp"
	"strings"
)

// wordRun is a run of whole words. The last word must be followed by
// whitespace, clause punctuation or the end of the text, so "A/c" or
// "XX1234" never yields a name.
const wordRun = `([A-Za-z]+(?:[ \t]+[A-Za-z]+)*)(?:[\s.,;:!)]|$)`

// merchantPatterns are tried in order: "at X", then "from X", then "to X".
var merchantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bat\s+` + wordRun),
	regexp.MustCompile(`(?i)\bfrom\s+` + wordRun),
	regexp.MustCompile(`(?i)\bto\s+` + wordRun),
}

// merchantStopWords end a merchant name ("STARBUCKS on 28-Sep", "John Doe via GooglePay").
var merchantStopWords = map[string]bool{
	"on": true, "via": true, "for": true, "using": true, "with": true, "ref": true,
	"dated": true, "is": true, "was": true, "has": true, "and": true, "in": true,
	"of": true, "by": true, "towards": true, "through": true, "thru": true,
	"at": true, "from": true, "to": true, "upi": true, "txn": true, "info": true,
}

// ownerWords mark the account holder's side ("from your account"), never a merchant.
var ownerWords = map[string]bool{"your": true, "you": true, "my": true, "our": true}

// ExtractMerchant returns the counterparty named after "at", "from" or "to",
// keeping the casing of the original text.
func ExtractMerchant(text string) (string, bool) {
	for _, p := range merchantPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if name := merchantName(m[1]); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

func merchantName(run string) string {
	words := strings.Fields(run)
	if len(words) == 0 || ownerWords[strings.ToLower(words[0])] {
		return ""
	}
	n := 0
	for n < len(words) && !merchantStopWords[strings.ToLower(words[n])] {
		n++
	}
	return strings.Join(words[:n], " ")
}
