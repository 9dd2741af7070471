package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ItemCandidate is a receipt line that looks like a purchasable item:
// a name followed by a trailing price.
type ItemCandidate struct {
	Name   string
	Amount int
}

var (
	trailingPriceRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*|\d+)\s*원?$`)

	// Header, footer and summary lines that end in a number but are not
	// items (business registration, card approval, totals, tax...).
	ignoreLineRe = regexp.MustCompile(`(?i)사업자|대표|전화|TEL|주소|카드|승인|부가세|VAT|매장|포인트|영수증|거래일|주문|No\.?|단말|가맹|합계|총액|과세|면세`)
)

// ParseItems pulls name/amount item candidates out of receipt lines
// using the trailing-price heuristic. It is a suggestion source only;
// the extracted grand total is authoritative for the round.
func ParseItems(lines []string) []ItemCandidate {
	var out []ItemCandidate
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || ignoreLineRe.MatchString(line) {
			continue
		}

		m := trailingPriceRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		amount, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || amount <= 0 {
			continue
		}

		name := strings.TrimSpace(strings.TrimSuffix(line, m[0]))
		if utf8.RuneCountInString(name) < 2 {
			continue
		}
		out = append(out, ItemCandidate{Name: name, Amount: amount})
	}
	return out
}
