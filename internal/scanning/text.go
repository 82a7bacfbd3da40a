package scanning

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	datePattern  = regexp.MustCompile(`\b(\d{4}[-/]\d{2}[-/]\d{2}|\d{2}/\d{2}/\d{2,4}|\d{2}-\d{2}-\d{4})\b`)
	totalPattern = regexp.MustCompile(`(?i)^\s*(?:grand\s+)?total\b[^\d-]*(\d+[.,]\d{2})\s*$`)
	itemPattern  = regexp.MustCompile(`^\s*(?:(\d+)\s*[x@]\s+)?(.*?[A-Za-z].*?)\s+\$?(\d+[.,]\d{2})\s*$`)
	skipPattern  = regexp.MustCompile(`(?i)\b(subtotal|sub-total|tax|change|cash|visa|mastercard|amex|debit|credit|balance|tip)\b`)
)

// ParseReceiptText extracts what it can from OCR text of a receipt. The first
// line with letters and no amount is taken as the store. Lines ending in an
// amount become items, with "N x" prefixes read as a quantity of the line total.
func ParseReceiptText(text string) *ReceiptData {
	data := &ReceiptData{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if data.Date == "" {
			if m := datePattern.FindString(line); m != "" {
				if d := normalizeDate(m); d != "" {
					data.Date = d
					continue
				}
			}
		}

		if m := totalPattern.FindStringSubmatch(line); m != nil {
			data.Total = parseAmount(m[1])
			continue
		}
		if skipPattern.MatchString(line) {
			continue
		}

		if m := itemPattern.FindStringSubmatch(line); m != nil {
			qty := 1
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				qty = n
			}
			data.Items = append(data.Items, ItemData{
				Name:     strings.TrimSpace(m[2]),
				Price:    parseAmount(m[3]) / float64(qty),
				Quantity: qty,
			})
			continue
		}

		if data.Store == "" && strings.IndexFunc(line, isLetter) >= 0 {
			data.Store = line
		}
	}
	data.normalize()
	return data
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
