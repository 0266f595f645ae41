package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// PaymentMethodBankTransfer is the Business Central code for bank deposits.
const PaymentMethodBankTransfer = "BANK_TRANSFER"

// ToOrderResult maps a model extraction into the Business Central order shape.
// Codes are derived from the extraction first and from the regex pass second.
func ToOrderResult(ext ExtractedOrder, det *parsers.Extraction, m *mappings.Config) *entity.ParseResult {
	if m == nil {
		m = mappings.Default()
	}
	o := ext.Order

	res := entity.EmptyParseResult()
	res.Order = entity.Order{
		CustomerOrderNumber:   clean(o.CustomerOrderNumber),
		OrderDate:             clean(o.OrderDate),
		RequestedDeliveryDate: clean(o.RequestedDeliveryDate),
		PromisedDeliveryDate:  clean(o.PromisedDeliveryDate),
		BillingDate:           clean(o.BillingDate),
		CurrencyCode:          currencyCode(o.CurrencyCode, m),
		PaymentTermsCode:      paymentTermsCode(o, det, m),
		PaymentMethodCode:     paymentMethodCode(o.PaymentMethod, det),
		ShippingMethodCode:    shippingMethodCode(o.ShippingMethod, m),
		SellTo: entity.Party{
			Name:    clean(o.CustomerName),
			CNPJ:    clean(o.CustomerCNPJ),
			IE:      clean(o.CustomerIE),
			Phone:   clean(o.CustomerPhone),
			Email:   clean(o.CustomerEmail),
			Contact: clean(o.CustomerContact),
		},
		BillTo: entity.Address{
			Address:    clean(o.BillAddress),
			Number:     clean(o.BillNumber),
			Complement: clean(o.BillComplement),
			District:   clean(o.BillDistrict),
			City:       clean(o.BillCity),
			State:      clean(o.BillState),
			Zip:        clean(o.BillZip),
			Country:    clean(o.BillCountry),
		},
		ShipTo: entity.Address{
			Address:    clean(o.ShipAddress),
			Number:     clean(o.ShipNumber),
			Complement: clean(o.ShipComplement),
			District:   clean(o.ShipDistrict),
			City:       clean(o.ShipCity),
			State:      clean(o.ShipState),
			Zip:        clean(o.ShipZip),
			Country:    clean(o.ShipCountry),
		},
		Notes: clean(o.Notes),
	}

	for _, l := range ext.Lines {
		line := entity.Line{
			CustomerOrderItemNo: clean(l.CustomerOrderItemNo),
			ItemReferenceNo:     clean(l.ItemReferenceNo),
			Description:         clean(l.Description),
			Quantity:            l.Quantity,
			UnitOfMeasure:       clean(l.UnitOfMeasure),
			UnitPriceExclVAT:    l.UnitPriceExclVAT,
		}
		if d := parsers.NormalizeDate(utils.StrOrEmpty(l.DeliveryDate)); d != "" {
			line.DeliveryDate = &d
		}
		res.Lines = append(res.Lines, line)
	}
	return res
}

func paymentTermsCode(o OrderHeader, det *parsers.Extraction, m *mappings.Config) *string {
	switch {
	case o.PaymentTermsDays != nil && *o.PaymentTermsDays > 0:
		code := strconv.Itoa(*o.PaymentTermsDays) + "D"
		if dom := strings.TrimSpace(utils.StrOrEmpty(o.PaymentDaysOfMonth)); dom != "" {
			code += "-" + dom
		}
		return &code
	case !utils.IsBlank(o.PaymentTerms):
		if code, ok := m.MapPaymentTerms(*o.PaymentTerms); ok {
			return &code
		}
	}
	if det == nil {
		return nil
	}
	return DeterministicPaymentTermsCode(det.PaymentTerms)
}

// DeterministicPaymentTermsCode renders regex-detected terms as "60D" or
// "60D-05-20".
func DeterministicPaymentTermsCode(pt parsers.PaymentTerms) *string {
	if pt.Days == nil || *pt.Days == 0 {
		return nil
	}
	code := strconv.Itoa(*pt.Days) + "D"
	if len(pt.PaymentDays) > 0 {
		days := make([]string, len(pt.PaymentDays))
		for i, d := range pt.PaymentDays {
			days[i] = zeroPad(d)
		}
		code += "-" + strings.Join(days, "-")
	}
	return &code
}

func paymentMethodCode(method *string, det *parsers.Extraction) *string {
	if !utils.IsBlank(method) {
		lower := strings.ToLower(*method)
		for _, hint := range []string{"bank", "depósito", "deposito", "transfer"} {
			if strings.Contains(lower, hint) {
				return utils.StrPtr(PaymentMethodBankTransfer)
			}
		}
	}
	if det != nil && det.PaymentTerms.BankTransfer != nil && *det.PaymentTerms.BankTransfer {
		return utils.StrPtr(PaymentMethodBankTransfer)
	}
	return clean(method)
}

func shippingMethodCode(method *string, m *mappings.Config) *string {
	if utils.IsBlank(method) {
		return nil
	}
	if code, ok := m.MapShippingMethod(*method); ok {
		return &code
	}
	return nil
}

func currencyCode(currency *string, m *mappings.Config) *string {
	if utils.IsBlank(currency) {
		return nil
	}
	if code, ok := m.MapCurrency(*currency); ok {
		return &code
	}
	return clean(currency)
}

func clean(p *string) *string {
	if p == nil {
		return nil
	}
	return utils.StrPtr(*p)
}

func zeroPad(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
