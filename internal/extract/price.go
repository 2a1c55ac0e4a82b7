package extract

import (
	"strconv"
	"strings"
	"unicode"
)

var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"₹":   "INR",
	"R$":  "BRL",
	"kr":  "SEK",
	"zł":  "PLN",
}

var currencyCodes = []string{"USD", "EUR", "GBP", "JPY", "BRL", "INR", "SEK", "PLN"}

// ParsePrice extracts a numeric amount and a currency code from a raw
// price string. It handles both US ("1,299.90") and European
// ("1.299,90") digit grouping. The returned currency is empty when the
// text carries no recognizable marker.
func ParsePrice(text string) (float64, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	currency := ""
	for _, code := range currencyCodes {
		if strings.Contains(strings.ToUpper(text), code) {
			currency = code
			break
		}
	}
	if currency == "" {
		// Longer symbols first so "R$" is not read as "$".
		for _, sym := range []string{"R$", "US$", "zł", "kr", "$", "€", "£", "¥", "₹"} {
			if strings.Contains(text, sym) {
				currency = currencySymbols[sym]
				break
			}
		}
	}

	digits := extractNumber(text)
	if digits == "" {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil || value <= 0 {
		return 0, "", false
	}
	return value, currency, true
}

// extractNumber pulls the first number-looking run out of text and
// normalizes it to a dot decimal separator.
func extractNumber(text string) string {
	start := -1
	end := -1
	for i, r := range text {
		if unicode.IsDigit(r) {
			if start == -1 {
				start = i
			}
			end = i + 1
		} else if start != -1 && (r == '.' || r == ',' || r == ' ') {
			continue
		} else if start != -1 {
			break
		}
	}
	if start == -1 {
		return ""
	}
	raw := strings.TrimRight(text[start:end], ". ,")
	raw = strings.ReplaceAll(raw, " ", "")

	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	switch {
	case lastDot == -1 && lastComma == -1:
		return raw
	case lastDot > lastComma:
		// Dot is decimal unless it groups thousands ("1.299" with
		// exactly three trailing digits and no comma is ambiguous;
		// treat a lone dot with three digits after it and more than
		// three before first group as grouping).
		raw = strings.ReplaceAll(raw, ",", "")
		if strings.Count(raw, ".") > 1 {
			idx := strings.LastIndex(raw, ".")
			raw = strings.ReplaceAll(raw[:idx], ".", "") + raw[idx:]
		}
		return raw
	default:
		// Comma is the decimal separator, dots group thousands.
		raw = strings.ReplaceAll(raw, ".", "")
		if strings.Count(raw, ",") > 1 {
			idx := strings.LastIndex(raw, ",")
			raw = strings.ReplaceAll(raw[:idx], ",", "") + raw[idx:]
		}
		// A comma followed by exactly three digits is grouping, not
		// decimals ("1,299" means twelve ninety-nine nowhere).
		if idx := strings.LastIndex(raw, ","); idx != -1 && len(raw)-idx-1 == 3 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.ReplaceAll(raw, ",", ".")
		}
		return raw
	}
}
