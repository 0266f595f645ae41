package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonDigitRe      = regexp.MustCompile(`\D`)
	isoDateRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dmyDateRe       = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})$`)
	ymdDateRe       = regexp.MustCompile(`^(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})$`)
	currencySymRe   = regexp.MustCompile(`(?i)[R$US€£¥\s]`)
	quantityValueRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(` + unitAlternation + `)?`)
	decimalCleanRe  = regexp.MustCompile(`[^\d,.-]`)
)

const unitAlternation = `kg|g|ton|toneladas?|un|unid(?:ade)?s?|pç|peça|pc|l|lt|litros?|ml|m|metros?|cx|caixa|saco|sc|fardo`

var unitMap = map[string]string{
	"kg": "KG", "g": "G", "ton": "TON", "tonelada": "TON", "toneladas": "TON",
	"un": "UN", "unid": "UN", "unids": "UN", "unidade": "UN", "unidades": "UN",
	"pç": "PC", "peça": "PC", "pc": "PC",
	"l": "L", "lt": "L", "litro": "L", "litros": "L", "ml": "ML",
	"m": "M", "metro": "M", "metros": "M",
	"cx": "CX", "caixa": "CX", "saco": "SC", "sc": "SC", "fardo": "FD",
}

// Locale selects the decimal separator convention of a number.
type Locale string

const (
	LocalePtBR Locale = "pt-BR"
	LocaleEnUS Locale = "en-US"
)

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// NormalizeCNPJ returns the 14 digits of a CNPJ, or "" when it is not one.
func NormalizeCNPJ(cnpj string) string {
	d := DigitsOnly(cnpj)
	if len(d) != 14 {
		return ""
	}
	return d
}

// NormalizeCEP returns the 8 digits of a postal code, or "".
func NormalizeCEP(cep string) string {
	d := DigitsOnly(cep)
	if len(d) != 8 {
		return ""
	}
	return d
}

// NormalizePhone keeps digits and '+'; fewer than 10 characters is not a phone.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 10 {
		return ""
	}
	return b.String()
}

// NormalizeDate converts DD/MM/YYYY, YYYY/MM/DD and ISO dates to YYYY-MM-DD.
// Unrecognised or impossible dates return "".
func NormalizeDate(s string) string {
	if s == "" {
		return ""
	}
	if isoDateRe.MatchString(s) {
		return s
	}
	s = strings.TrimSpace(s)
	if m := dmyDateRe.FindStringSubmatch(s); m != nil {
		if iso, ok := isoDate(m[3], m[2], m[1]); ok {
			return iso
		}
	}
	if m := ymdDateRe.FindStringSubmatch(s); m != nil {
		if iso, ok := isoDate(m[1], m[2], m[3]); ok {
			return iso
		}
	}
	return ""
}

func isoDate(year, month, day string) (string, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	iso := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	if _, err := time.Parse(time.DateOnly, iso); err != nil {
		return "", false
	}
	return iso, true
}

// NormalizeMonetaryValue parses "R$ 1.234,56" (pt-BR) or "1,234.56" (en-US).
func NormalizeMonetaryValue(s string, locale Locale) (float64, bool) {
	if s == "" {
		return 0, false
	}
	cleaned := currencySymRe.ReplaceAllString(s, "")
	return parseLocaleNumber(cleaned, locale)
}

func parseLocaleNumber(s string, locale Locale) (float64, bool) {
	if locale == LocalePtBR {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeQuantity splits "3000 KG" or "0,5 ton" into value and unit code.
// The unit is "" when the text has none.
func NormalizeQuantity(s string) (float64, string, bool) {
	if s == "" {
		return 0, "", false
	}
	m := quantityValueRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	qty, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, "", false
	}
	return qty, NormalizeUnit(m[2]), true
}

// NormalizeUnit maps unit spellings to short codes; unknown units are upper-cased.
func NormalizeUnit(unit string) string {
	if unit == "" {
		return ""
	}
	if code, ok := unitMap[strings.ToLower(unit)]; ok {
		return code
	}
	return strings.ToUpper(unit)
}

// ParseDecimal reads numbers printed in either convention. A comma means
// pt-BR: dots are thousands separators and the comma is the decimal point.
func ParseDecimal(s string) (float64, bool) {
	cleaned := decimalCleanRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// InferCurrency guesses the ISO currency from free text.
func InferCurrency(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "r$") || strings.Contains(lower, "real") || strings.Contains(lower, "brl"):
		return "BRL"
	case strings.Contains(lower, "us$") || strings.Contains(lower, "usd") ||
		strings.Contains(lower, "dolar") || strings.Contains(lower, "dólar"):
		return "USD"
	case strings.Contains(lower, "eur") || strings.Contains(text, "€"):
		return "EUR"
	}
	return ""
}
