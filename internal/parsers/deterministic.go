// Package parsers extracts structured values (tax ids, dates, money,
// quantities, payment terms) from raw purchase-order text with regular
// expressions. Nothing here calls out to a model.
package parsers

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	cnpjRe  = regexp.MustCompile(`\b(\d{2}[.\s]?\d{3}[.\s]?\d{3}[/\s]?\d{4}[-\s]?\d{2})\b`)
	ieRe    = regexp.MustCompile(`(?i)\b(?:I\.?E\.?|INSCR(?:IÇÃO)?\.?\s*ESTADUAL|IE)\s*[:\s]*(\d{2,3}[.\s]?\d{3}[.\s]?\d{3}[.\s]?\d{0,4}[-.\s]?\d{0,2})\b`)
	emailRe = regexp.MustCompile(`(?i)\b([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})\b`)
	phoneRe = regexp.MustCompile(`\b((?:\+?55\s?)?(?:\(?\d{2}\)?[\s.-]?)?\d{4,5}[-.\s]?\d{4})\b`)

	dmyRe     = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})\b`)
	ymdRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	writtenRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(?:de\s+)?(janeiro|fevereiro|março|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s+(?:de\s+)?(\d{4})\b`)

	quantityRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(` + unitAlternation + `)\b`)
	cepRe      = regexp.MustCompile(`\b(\d{5}[-.\s]?\d{3})\b`)
	ufRe       = regexp.MustCompile(`\b(AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MT|MS|MG|PA|PB|PR|PE|PI|RJ|RN|RS|RO|RR|SC|SP|SE|TO)\b`)

	orderNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:pedido|ordem|order|po|p\.o\.|purchase\s*order)\s*(?:n[°º]?\.?|#|:)?\s*([A-Z0-9-]+)`),
		regexp.MustCompile(`(?i)(?:n[°º]?\.?\s*(?:do\s*)?pedido|order\s*(?:no?\.?|#))\s*:?\s*([A-Z0-9-]+)`),
	}

	paymentTermsRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:condi[cç][oõ]es?\s*(?:de\s*)?pagamento|cond\.?\s*p(?:a)?g(?:to)?\.?)\s*[:\s]*(\d{2,3})\s*(?:dias?)?\s*(?:[\d,]+%)?`),
		regexp.MustCompile(`(?i)prazo\s*(?:de\s*pagamento)?\s*[:\s]*(\d{2,3})\s*(?:dias?|DDL|DDFF)`),
		regexp.MustCompile(`(?i)\b(\d{2,3})\s*(?:DDL|DDFF|dias?\s*(?:da\s*)?(?:data\s*)?(?:de\s*)?(?:fatura|emiss[aã]o|vencimento)?)`),
	}
	paymentDaysRe  = regexp.MustCompile(`(?i)dias?\s*(?:de\s*)?(?:pagamento|pgto\.?)?\s*[:\s]*(\d{1,2})[-,\s]*(?:e\s*|ou\s*)?(\d{1,2})`)
	bankTransferRe = regexp.MustCompile(`(?i)dep[oó]sito\s*banc[aá]rio\??\s*[:\s]*(SIM|N[AÃ]O)`)
)

var monthNumbers = map[string]int{
	"janeiro": 1, "fevereiro": 2, "março": 3, "marco": 3,
	"abril": 4, "maio": 5, "junho": 6, "julho": 7,
	"agosto": 8, "setembro": 9, "outubro": 10,
	"novembro": 11, "dezembro": 12,
}

type moneyPattern struct {
	re       *regexp.Regexp
	currency string
	locale   Locale
}

var moneyPatterns = []moneyPattern{
	{regexp.MustCompile(`(?i)R\$\s*([\d.,]+(?:\d{2})?)`), "BRL", LocalePtBR},
	{regexp.MustCompile(`(?i)(?:US\$|USD)\s*([\d.,]+)`), "USD", LocaleEnUS},
	{regexp.MustCompile(`\$\s*([\d.,]+)`), "USD", LocaleEnUS},
	{regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3})*,\d{2})\b`), "", LocalePtBR},
	{regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})*\.\d{2})\b`), "", LocaleEnUS},
}

// DateMatch is a date found in text together with its ISO form.
type DateMatch struct {
	Original string `json:"original"`
	ISO      string `json:"iso"`
}

// MonetaryValue is an amount found in text. Currency is "" when only the
// number format was recognised.
type MonetaryValue struct {
	Original string  `json:"original"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

type Quantity struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Original string  `json:"original"`
}

// PaymentTerms summarises the payment clauses of an order.
type PaymentTerms struct {
	Days           *int   `json:"days"`
	PaymentDays    []int  `json:"payment_days"`
	BankTransfer   *bool  `json:"bank_transfer"`
	Original       string `json:"original,omitempty"`
	Interpretation string `json:"interpretation,omitempty"`
}

// Extraction is the consolidated output of every extractor.
type Extraction struct {
	CNPJs          []string        `json:"cnpjs"`
	IEs            []string        `json:"ies"`
	Emails         []string        `json:"emails"`
	Phones         []string        `json:"phones"`
	Dates          []DateMatch     `json:"dates"`
	MonetaryValues []MonetaryValue `json:"monetary_values"`
	Quantities     []Quantity      `json:"quantities"`
	OrderNumbers   []string        `json:"order_numbers"`
	CEPs           []string        `json:"ceps"`
	UFs            []string        `json:"ufs"`
	PaymentTerms   PaymentTerms    `json:"payment_terms"`
	RawText        string          `json:"-"`
}

// ParseAll runs every extractor over text.
func ParseAll(text string) Extraction {
	return Extraction{
		CNPJs:          ExtractCNPJs(text),
		IEs:            ExtractIEs(text),
		Emails:         ExtractEmails(text),
		Phones:         ExtractPhones(text),
		Dates:          ExtractDates(text),
		MonetaryValues: ExtractMonetaryValues(text),
		Quantities:     ExtractQuantities(text),
		OrderNumbers:   ExtractOrderNumbers(text),
		CEPs:           ExtractCEPs(text),
		UFs:            ExtractUFs(text),
		PaymentTerms:   ExtractPaymentTerms(text),
		RawText:        text,
	}
}

func ExtractCNPJs(text string) []string {
	return collect(cnpjRe, text, NormalizeCNPJ)
}

// ExtractIEs returns state registration numbers with at least 8 digits.
func ExtractIEs(text string) []string {
	return collect(ieRe, text, func(s string) string {
		d := DigitsOnly(s)
		if len(d) < 8 {
			return ""
		}
		return d
	})
}

func ExtractEmails(text string) []string {
	return collect(emailRe, text, strings.ToLower)
}

func ExtractPhones(text string) []string {
	return collect(phoneRe, text, NormalizePhone)
}

func ExtractCEPs(text string) []string {
	return collect(cepRe, text, DigitsOnly)
}

func ExtractUFs(text string) []string {
	return collect(ufRe, text, nil)
}

// ExtractOrderNumbers returns candidate order or PO numbers.
func ExtractOrderNumbers(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, re := range orderNumberRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			out = append(out, m[1])
		}
	}
	return out
}

// ExtractDates finds numeric and written Portuguese dates, deduplicated by ISO value.
func ExtractDates(text string) []DateMatch {
	var found []DateMatch
	for _, m := range dmyRe.FindAllStringSubmatch(text, -1) {
		if iso, ok := isoDate(m[3], m[2], m[1]); ok {
			found = append(found, DateMatch{Original: m[0], ISO: iso})
		}
	}
	for _, m := range ymdRe.FindAllStringSubmatch(text, -1) {
		if iso, ok := isoDate(m[1], m[2], m[3]); ok {
			found = append(found, DateMatch{Original: m[0], ISO: iso})
		}
	}
	for _, m := range writtenRe.FindAllStringSubmatch(text, -1) {
		month := monthNumbers[strings.ToLower(m[2])]
		if month == 0 {
			continue
		}
		if iso, ok := isoDate(m[3], strconv.Itoa(month), m[1]); ok {
			found = append(found, DateMatch{Original: m[0], ISO: iso})
		}
	}

	seen := map[string]struct{}{}
	out := make([]DateMatch, 0, len(found))
	for _, d := range found {
		if _, ok := seen[d.ISO]; ok {
			continue
		}
		seen[d.ISO] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ExtractMonetaryValues returns every amount matched by any money pattern.
// Overlapping patterns may report the same amount more than once.
func ExtractMonetaryValues(text string) []MonetaryValue {
	var out []MonetaryValue
	for _, p := range moneyPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, ok := parseLocaleNumber(m[1], p.locale)
			if !ok {
				continue
			}
			out = append(out, MonetaryValue{Original: m[1], Value: v, Currency: p.currency})
		}
	}
	return out
}

func ExtractQuantities(text string) []Quantity {
	var out []Quantity
	for _, m := range quantityRe.FindAllStringSubmatch(text, -1) {
		qty, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			continue
		}
		out = append(out, Quantity{Quantity: qty, Unit: NormalizeUnit(m[2]), Original: m[1] + " " + m[2]})
	}
	return out
}

// ExtractPaymentTerms reads the term in days, fixed payment days of the
// month and whether payment goes by bank deposit.
func ExtractPaymentTerms(text string) PaymentTerms {
	pt := PaymentTerms{PaymentDays: []int{}}
	for _, re := range paymentTermsRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if days, err := strconv.Atoi(m[1]); err == nil {
			pt.Days = &days
			pt.Original = strings.TrimSpace(m[0])
			break
		}
	}
	if m := paymentDaysRe.FindStringSubmatch(text); m != nil {
		if d1, err := strconv.Atoi(m[1]); err == nil {
			pt.PaymentDays = append(pt.PaymentDays, d1)
		}
		if d2, err := strconv.Atoi(m[2]); err == nil && d2 != 0 {
			pt.PaymentDays = append(pt.PaymentDays, d2)
		}
	}
	if m := bankTransferRe.FindStringSubmatch(text); m != nil {
		yes := strings.ToUpper(m[1]) == "SIM"
		pt.BankTransfer = &yes
	}
	if pt.Days != nil && *pt.Days != 0 {
		parts := []string{strconv.Itoa(*pt.Days) + " dias após fatura"}
		if len(pt.PaymentDays) > 0 {
			days := make([]string, len(pt.PaymentDays))
			for i, d := range pt.PaymentDays {
				days[i] = strconv.Itoa(d)
			}
			parts = append(parts, "pagamento nos dias "+strings.Join(days, " ou "))
		}
		if pt.BankTransfer != nil && *pt.BankTransfer {
			parts = append(parts, "via depósito bancário")
		}
		pt.Interpretation = strings.Join(parts, ", ")
	}
	return pt
}

// collect runs re over text, maps the first group (the whole match when re
// has none) through norm and returns unique non-empty results in order of
// appearance.
func collect(re *regexp.Regexp, text string, norm func(string) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := m[0]
		if len(m) > 1 {
			v = m[1]
		}
		if norm != nil {
			v = norm(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
