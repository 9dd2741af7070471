package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Keyword weights, in priority order. The first matching pattern decides
// a line's weight; later patterns are not consulted for that line.
const (
	weightGrandTotal  = 260 // 합계/합계금액
	weightApproved    = 250 // 승인금액
	weightTransaction = 240 // 거래금액/결제금액
	weightCardLine    = 150 // 카드 결제 라인에 총액이 같이 붙는 경우
	weightTotal       = 200 // 총액/총계
)

// Scoring constants for candidate lines.
const (
	sameLineBonus   = 25.0 // later-in-document bonus when the amount is on the keyword line
	neighborBonus   = 20.0 // same, when the amount is on a nearby line
	sameLinePenalty = 60.0 // bad-context penalty on the keyword line itself
	neighborPenalty = 40.0 // bad-context penalty on the probed neighbor
	distancePenalty = 5.0  // per line of distance to the probed neighbor
	minMoneyValue   = 1
	maxMoneyValue   = 200_000_000
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// OCR-mangled thousands separators: "136.00021" -> "136.000" (the
	// 1-2 trailing digits are stray noise).
	dotNoiseRe   = regexp.MustCompile(`\b(\d{1,3})\.(\d{3})(\d{1,2})\b`)
	commaNoiseRe = regexp.MustCompile(`\b(\d{1,3}),(\d{3})(\d{1,2})\b`)

	// A dot used as a thousands separator, "48.000" -> "48,000". RE2 has
	// no lookahead, so the following non-digit (or end) is captured and
	// re-emitted; applied to a fixed point for multi-group numerals.
	dotThousandRe = regexp.MustCompile(`(\d)\.(\d{3})([^0-9]|$)`)

	// Money token: optional leading currency mark, grouped numeral or
	// bare digit run, optional trailing currency unit.
	moneyRe     = regexp.MustCompile(`(?:₩\s*)?([0-9]{1,3}(?:[,.][0-9]{3})+|[0-9]+)\s*원?`)
	separatorRe = regexp.MustCompile(`[,.]`)

	// Hyphen-connected digit groups (phone, approval and business
	// numbers, dates). The digits count as one ungrouped run: if it is
	// long enough to be rejected as a number-like run, none of its
	// pieces are money either.
	hyphenRunRe = regexp.MustCompile(`[0-9]+(?:-[0-9]+)+`)

	keywordPatterns = []struct {
		re     *regexp.Regexp
		weight int
	}{
		{regexp.MustCompile(`(?i)합\s*계\s*금\s*액|합계\s*금액|합\s*계|합계`), weightGrandTotal},
		{regexp.MustCompile(`(?i)승인\s*금액|승인금액`), weightApproved},
		{regexp.MustCompile(`(?i)거래\s*금액|거래금액|결제\s*금액|결제금액|금액\s*결제|금액결제`), weightTransaction},
		{regexp.MustCompile(`(?i)신용\s*카드|체크\s*카드|카드\s*결제|카드결제`), weightCardLine},
		{regexp.MustCompile(`(?i)총\s*액|총액|총\s*계|총계`), weightTotal},
	}

	// Lines about tax, discounts, points or balances carry amounts that
	// are not the grand total.
	badContextRe = regexp.MustCompile(`(?i)부가세|세액|공급가액|과세물품가액|가액|면세|할인|포인트|잔액`)
)

// neighborOffsets is the probe order when a keyword line carries no
// amount itself ("승인 금액:" with the value on the next line).
var neighborOffsets = [...]int{1, 2, -1, -2}

var koreanGrouping = message.NewPrinter(language.Korean)

// Total is the extracted grand-total guess and the line cited for it. A
// zero Total means no money token existed anywhere; callers treat that
// as absence of signal, not an error.
type Total struct {
	Amount   int
	Evidence string
}

// ExtractTotal scores the reconstructed receipt lines against the
// keyword table and returns the best-guess grand total together with the
// line that justifies it. If no keyword line yields a candidate it falls
// back to the largest money token anywhere in the document.
func ExtractTotal(lines []string) Total {
	trimmed := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			trimmed = append(trimmed, t)
		}
	}

	n := len(trimmed)
	posDen := float64(n - 1)
	if posDen < 1 {
		posDen = 1
	}

	bestScore := -1.0
	var best Total

	for i, raw := range trimmed {
		line := normalizeLine(raw)
		if line == "" {
			continue
		}

		weight := -1
		for _, k := range keywordPatterns {
			if k.re.MatchString(line) {
				weight = k.weight
				break
			}
		}
		if weight < 0 {
			continue
		}

		if tokens := moneyTokens(line); len(tokens) > 0 {
			total := tokens[len(tokens)-1]
			penalty := 0.0
			if badContextRe.MatchString(line) {
				penalty = sameLinePenalty
			}
			score := float64(weight) + float64(i)/posDen*sameLineBonus - penalty
			if score > bestScore {
				bestScore = score
				best = Total{Amount: total, Evidence: line}
			}
			continue
		}

		for _, d := range neighborOffsets {
			j := i + d
			if j < 0 || j >= n {
				continue
			}
			near := normalizeLine(trimmed[j])
			tokens := moneyTokens(near)
			if len(tokens) == 0 {
				continue
			}
			total := tokens[len(tokens)-1]
			penalty := 0.0
			if badContextRe.MatchString(near) {
				penalty = neighborPenalty
			}
			dist := d
			if dist < 0 {
				dist = -dist
			}
			score := float64(weight) + float64(i)/posDen*neighborBonus - penalty - float64(dist)*distancePenalty
			if score > bestScore {
				bestScore = score
				best = Total{
					Amount:   total,
					Evidence: line + " " + koreanGrouping.Sprintf("%d", total) + "원",
				}
			}
			break
		}
	}

	if bestScore < 0 {
		var max int
		var evidence string
		for _, raw := range trimmed {
			line := normalizeLine(raw)
			for _, v := range moneyTokens(line) {
				if v > max {
					max = v
					evidence = line
				}
			}
		}
		return Total{Amount: max, Evidence: evidence}
	}
	return best
}

// normalizeLine collapses whitespace runs and repairs OCR-mangled
// thousands separators before any token matching.
func normalizeLine(s string) string {
	x := strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	x = dotNoiseRe.ReplaceAllString(x, "$1.$2")
	x = commaNoiseRe.ReplaceAllString(x, "$1,$2")
	for {
		y := dotThousandRe.ReplaceAllString(x, "$1,$2$3")
		if y == x {
			break
		}
		x = y
	}
	return x
}

// moneyTokens returns the monetary values found in a normalized line, in
// left-to-right order. Without a separator or currency mark: short digit
// runs look like quantities, 1900-2099 like years, 19/20-prefixed
// 8-digit runs like dates, and 8+ digit runs like approval or phone
// numbers; all are rejected, as are values outside the plausible range.
func moneyTokens(line string) []int {
	line = hyphenRunRe.ReplaceAllStringFunc(line, func(run string) string {
		digits := len(run) - strings.Count(run, "-")
		if digits >= 8 {
			return " "
		}
		return run
	})

	var out []int
	for _, m := range moneyRe.FindAllStringSubmatch(line, -1) {
		token, raw := m[0], m[1]
		digits := separatorRe.ReplaceAllString(raw, "")
		num, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}

		hasSep := separatorRe.MatchString(raw)
		hasCurrency := strings.Contains(token, "₩") || strings.Contains(token, "원")
		if !hasSep && !hasCurrency {
			if len(digits) <= 3 {
				continue
			}
			if num >= 1900 && num <= 2099 {
				continue
			}
			if len(digits) == 8 && (strings.HasPrefix(digits, "19") || strings.HasPrefix(digits, "20")) {
				continue
			}
			if len(digits) >= 8 {
				continue
			}
		}

		if num < minMoneyValue || num > maxMoneyValue {
			continue
		}
		out = append(out, num)
	}
	return out
}
