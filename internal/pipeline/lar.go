package pipeline

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/llm"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
	"github.com/joseph-ayodele/order-parser/internal/utils"
	"github.com/joseph-ayodele/order-parser/internal/workflow"
)

// LARDefaultCustomer is used when the document names no customer.
const LARDefaultCustomer = "LAR COOPERATIVA AGROINDUSTRIAL"

var (
	larOrderNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Numero do Pedido / Ordem de Compra:\s*([0-9]+)`),
		regexp.MustCompile(`(?i)Nr\.?Ordem de Compra:\s*([0-9]+)`),
		regexp.MustCompile(`(?i)Ordem de Compra:\s*([0-9]+)`),
	}
	larIssueDateRe    = regexp.MustCompile(`(?i)Data Emissao:\s*([0-9/.-]{6,10})`)
	larDeliveryDateRe = regexp.MustCompile(`(?i)Data de Entrega\.?:\s*([0-9/.-]{6,10})`)
	larCurrencyRe     = regexp.MustCompile(`(?i)Moeda:\s*([A-ZÇÃÕÉÍÓÚ ]+)`)
	larFreightRe      = regexp.MustCompile(`(?i)Frete:\s*([A-Z]{2,4})`)
	larTermsRe        = regexp.MustCompile(`(?i)Condicoes de Pagamento:\s*([0-9]{2,3})`)
	larCNPJRe         = regexp.MustCompile(`(?i)CNPJ:\s*([0-9./-]{14,18})`)
	larHeaderNameRe   = regexp.MustCompile(`(?i)ORDEM DE COMPRA\s*-\s*(.+?)\s*Nr\.pagina`)
	larDateRe         = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{2,4})$`)
	larCEPRe          = regexp.MustCompile(`(\d{5}[-.\s]?\d{3})`)
	larEmailRe        = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	larPhoneRe        = regexp.MustCompile(`[0-9()\s.-]{8,}`)
	larUnitRe         = regexp.MustCompile(`^[A-Za-z]+$`)
	larDeliveryRe     = regexp.MustCompile(`(?i)(?:^|\s)-?\s*QUANTIDADE\s+DE\s+([\d.,]+)\s*([A-Z]+)?\s*(?:P/|PARA)\s*ENTREGA\s*EM\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
)

// LARParser reads the fixed-layout purchase orders issued by LAR. Item rows
// are positional; "QUANTIDADE DE n P/ ENTREGA EM dd/mm/yy" sub-lines split an
// item into one line per delivery. Documents with no recognisable item rows
// go through Fallback.
type LARParser struct {
	Fallback Parser
	Version  string
}

func (p *LARParser) Parse(ctx context.Context, pctx *Context) (ParseOutput, error) {
	var warnings []string
	res := parseLAR(pctx, &warnings)

	if len(res.Lines) == 0 {
		if p.Fallback == nil {
			return ParseOutput{}, fmt.Errorf("lar parser: no item lines and no fallback")
		}
		out, err := p.Fallback.Parse(ctx, pctx)
		if err != nil {
			return out, err
		}
		withModel(&out.Metadata, "lar")
		return out, nil
	}

	if res.Order.SellTo.CNPJ == nil {
		warnings = append(warnings, workflow.WarnNoCustomerCNPJ)
	}
	splits, multi := workflow.SplitOrdersByDeliveryDate(res)
	md := baseMetadata(pctx, orDefault(p.Version, "lar"))
	withModel(&md, "lar")
	return ParseOutput{
		Legacy: entity.LegacyOutput{
			Result:           res,
			Warnings:         nonNilStrings(warnings),
			DocumentType:     constants.DocTypePurchaseOrder,
			SplitOrders:      splits,
			HasMultipleDates: multi,
		},
		Metadata: md,
	}, nil
}

func parseLAR(pctx *Context, warnings *[]string) *entity.ParseResult {
	text := pctx.RawText
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	terms := llm.DeterministicPaymentTermsCode(pctx.Deterministic.PaymentTerms)
	if terms == nil {
		terms = utils.StrPtr(matchFirst(text, larTermsRe))
	}
	var method *string
	if bt := pctx.Deterministic.PaymentTerms.BankTransfer; bt != nil && *bt {
		method = utils.StrPtr(llm.PaymentMethodBankTransfer)
	}

	cnpj := ""
	if len(pctx.CustomerCNPJs) > 0 {
		cnpj = pctx.CustomerCNPJs[0]
	} else {
		cnpj = matchFirst(text, larCNPJRe)
	}

	name := larCustomerName(text, lines)
	if name == "" {
		name = LARDefaultCustomer
	}

	addr := larAddress(lines)
	deliveryDate := normalizeLARDate(matchFirst(text, larDeliveryDateRe))
	items := larItems(lines, deliveryDate)
	if len(items) == 0 {
		*warnings = append(*warnings, workflow.WarnNoLines)
	}

	address := func() entity.Address {
		return entity.Address{
			Address:  addr.line1,
			District: addr.district,
			City:     addr.city,
			State:    addr.state,
			Zip:      addr.zip,
			Country:  utils.StrPtr("BR"),
		}
	}

	res := entity.EmptyParseResult()
	res.Order = entity.Order{
		CustomerOrderNumber:   utils.StrPtr(matchFirst(text, larOrderNumberRes...)),
		OrderDate:             normalizeLARDate(matchFirst(text, larIssueDateRe)),
		RequestedDeliveryDate: deliveryDate,
		CurrencyCode:          utils.StrPtr(matchFirst(text, larCurrencyRe)),
		PaymentTermsCode:      terms,
		PaymentMethodCode:     method,
		ShippingMethodCode:    utils.StrPtr(matchFirst(text, larFreightRe)),
		SellTo: entity.Party{
			Name:  &name,
			CNPJ:  utils.StrPtr(cnpj),
			Email: addr.email,
			Phone: addr.phone,
		},
		BillTo: address(),
		ShipTo: address(),
	}
	res.Lines = items
	return res
}

func matchFirst(text string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// normalizeLARDate turns dd/mm/yy[yy] into ISO. Two-digit years below 50
// are 20xx. Other values are returned trimmed.
func normalizeLARDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	m := larDateRe.FindStringSubmatch(s)
	if m == nil {
		return &s
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	return &iso
}

func larCustomerName(text string, lines []string) string {
	if m := larHeaderNameRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, l := range lines {
		if !strings.HasPrefix(strings.ToLower(l), "local:") {
			continue
		}
		_, value, _ := strings.Cut(l, ":")
		value = strings.TrimSpace(value)
		if before, _, ok := strings.Cut(value, " - "); ok {
			return strings.TrimSpace(before)
		}
		return value
	}
	return ""
}

type larAddr struct {
	line1, district, city, state, zip, email, phone *string
}

func larAddress(lines []string) larAddr {
	var a larAddr
	start := -1
	for i, l := range lines {
		if strings.Contains(strings.ToUpper(l), "ENDERECO DE ENTREGA") {
			start = i
			break
		}
	}
	if start < 0 {
		return a
	}

	var section []string
	for _, l := range lines[start+1:] {
		upper := strings.ToUpper(l)
		if strings.HasPrefix(upper, "ORDEM DE COMPRA") || strings.HasPrefix(upper, "***") || strings.HasPrefix(upper, "---") {
			break
		}
		section = append(section, l)
		if strings.Contains(upper, "DATA DE ENTREGA") {
			break
		}
	}

	afterColon := func(l string) *string {
		if _, v, ok := strings.Cut(l, ":"); ok {
			return utils.StrPtr(v)
		}
		return utils.StrPtr(l)
	}
	for _, l := range section {
		upper := strings.ToUpper(l)
		switch {
		case strings.HasPrefix(upper, "ENDERECO"):
			a.line1 = afterColon(l)
		case strings.HasPrefix(upper, "BAIRRO"):
			a.district = afterColon(l)
		case strings.HasPrefix(upper, "CIDADE"):
			value := utils.StrOrEmpty(afterColon(l))
			if i := strings.LastIndex(value, " "); i > 0 && len(value)-i-1 == 2 {
				a.city, a.state = utils.StrPtr(value[:i]), utils.StrPtr(value[i+1:])
			} else {
				a.city = utils.StrPtr(value)
			}
		case strings.Contains(upper, "CEP"):
			if m := larCEPRe.FindStringSubmatch(l); m != nil {
				a.zip = utils.StrPtr(m[1])
			}
		case strings.Contains(upper, "E-MAIL") || strings.Contains(upper, "EMAIL"):
			a.email = utils.StrPtr(larEmailRe.FindString(l))
		case strings.HasPrefix(upper, "TELEFONE"):
			a.phone = utils.StrPtr(larPhoneRe.FindString(l))
		}
	}
	return a
}

func larItems(lines []string, defaultDelivery *string) []entity.Line {
	items := []entity.Line{}
	for i := 0; i < len(lines); {
		base, ok := larItemLine(lines[i])
		if !ok {
			i++
			continue
		}

		var deliveries []entity.Line
		j := i + 1
		for ; j < len(lines); j++ {
			next := lines[j]
			if _, isItem := larItemLine(next); isItem {
				break
			}
			if strings.HasPrefix(strings.ToUpper(next), "ORDEM DE COMPRA") {
				break
			}
			qty, unit, date, ok := larDeliveryLine(next)
			if !ok {
				continue
			}
			item := base
			item.Quantity = qty
			if unit != "" {
				item.UnitOfMeasure = utils.StrPtr(unit)
			}
			item.DeliveryDate = date
			item.Total = lineTotal(item.Quantity, item.UnitPriceExclVAT)
			deliveries = append(deliveries, item)
		}

		if len(deliveries) == 0 {
			if base.DeliveryDate == nil {
				base.DeliveryDate = defaultDelivery
			}
			if base.Total == nil {
				base.Total = lineTotal(base.Quantity, base.UnitPriceExclVAT)
			}
			deliveries = []entity.Line{base}
		}
		for _, item := range deliveries {
			item.CustomerOrderItemNo = utils.StrPtr(strconv.Itoa(len(items) + 1))
			items = append(items, item)
		}
		i = j
	}
	return items
}

// larItemLine reads "<code> <description...> <qty> x <unit> x <price> x x x <total> x x x".
// Positions are counted from the end because descriptions vary in length.
func larItemLine(line string) (entity.Line, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 12 || !isDigits(tokens[0]) {
		return entity.Line{}, false
	}
	n := len(tokens)
	unit := tokens[n-10]
	if !larUnitRe.MatchString(unit) {
		return entity.Line{}, false
	}
	desc := strings.TrimRight(strings.TrimSpace(strings.Join(tokens[1:n-12], " ")), ".")
	return entity.Line{
		ItemReferenceNo:  utils.StrPtr(tokens[0]),
		Description:      utils.StrPtr(desc),
		Quantity:         decimalPtr(tokens[n-12]),
		UnitOfMeasure:    utils.StrPtr(strings.ToUpper(unit)),
		UnitPriceExclVAT: decimalPtr(tokens[n-8]),
		Total:            decimalPtr(tokens[n-4]),
	}, true
}

func larDeliveryLine(line string) (*float64, string, *string, bool) {
	m := larDeliveryRe.FindStringSubmatch(line)
	if m == nil {
		return nil, "", nil, false
	}
	return decimalPtr(m[1]), strings.ToUpper(m[2]), normalizeLARDate(m[3]), true
}

func lineTotal(qty, price *float64) *float64 {
	if qty == nil || price == nil {
		return nil
	}
	v := math.Round(*qty**price*1e6) / 1e6
	return &v
}

func decimalPtr(s string) *float64 {
	v, ok := parsers.ParseDecimal(s)
	if !ok {
		return nil
	}
	return &v
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nonNilStrings(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
