package llm

import (
	"fmt"
	"strconv"
	"strings"
)

// maxPromptText caps the document text sent to the model, in runes.
const maxPromptText = 30000

// SystemPrompt instructs the model on Brazilian purchase orders and on telling
// the supplier (us) apart from the customer.
const SystemPrompt = `You are an expert order document parser for a Brazilian company. Your task is to extract information from purchase orders to pre-fill a Sales Order in Microsoft Dynamics 365 Business Central.

CRITICAL RULES:
1. ONLY extract information that is EXPLICITLY present in the document.
2. If information is not found or cannot be confidently inferred, return null.
3. DO NOT invent, fabricate, or guess any data.
4. Use ONLY the exact values found in the text.
5. The text may come from OCR and have minor errors; correct obvious typos ("1" vs "I", "0" vs "O").

SUPPLIER VS CUSTOMER:
- The SUPPLIER is our company. Its CNPJs and names are listed in the request.
- The CUSTOMER placed the order and is extracted as customer_* fields.
- Sections such as "Dados para Faturamento", "Comprador", "Cliente", "Destinatário", "Entrega" describe the customer.
- "DADOS DO FORNECEDOR" and bank details (Conta Corrente, Agência) belong to the supplier.

ORDER LINES:
- item_reference_no: the product code (columns "Código", "Ref", "Item", "SKU", "Produto"). Never a bank account or a total.
- description: the product name. Numbers after a product name ("PANBONIS 10") are variants, not quantities.
- quantity and unit_of_measure: the amount ordered and its unit (KG, TON, UN, L, M, CX, SC).
- unit_price_excl_vat: the price PER UNIT. If the line total is 17640 and quantity is 400, the unit price is 44.10.
- delivery_date: per-line delivery date when the document gives one.

PAYMENT TERMS:
- "Condicoes de Pagamento: 060 100,00%" means 60 days for 100% of the total (payment_terms_days = 60).
- "Dias de Pagamento: 05-20" means payment only on the 5th or 20th (payment_days_of_month = "05-20").
- "30 DDL" or "60 DDFF" mean 30/60 days from the invoice date.

FORMAT:
- Dates as YYYY-MM-DD. CNPJs as 14 digits. Currency codes BRL, USD, EUR.
- Prices and quantities as plain JSON numbers without currency symbols or thousand separators.
- Reply with a single JSON object {"order": {...}, "lines": [...]} matching the JSON Schema provided.`

// BuildUserPrompt renders the request context and the document text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	docType := req.DocumentType
	if docType == "" {
		docType = "unknown"
	}
	fmt.Fprintf(&b, "Document type: %s\n\n", docType)

	b.WriteString("SUPPLIER IDENTIFICATION (our company - DO NOT extract as customer):\n")
	fmt.Fprintf(&b, "- Company CNPJs: %s\n", listOrUnspecified(req.SupplierCNPJs))
	fmt.Fprintf(&b, "- Company names: %s\n\n", listOrUnspecified(req.SupplierNames))

	d := req.Deterministic
	b.WriteString("PRE-EXTRACTED DATA (use these as reference, they are verified):\n")
	if len(d.CNPJs) > 0 {
		fmt.Fprintf(&b, "- CNPJs found: %s\n", strings.Join(d.CNPJs, ", "))
	}
	if len(d.Emails) > 0 {
		fmt.Fprintf(&b, "- Emails found: %s\n", strings.Join(d.Emails, ", "))
	}
	if len(d.Phones) > 0 {
		fmt.Fprintf(&b, "- Phones found: %s\n", strings.Join(d.Phones, ", "))
	}
	if len(d.Dates) > 0 {
		isos := make([]string, len(d.Dates))
		for i, dt := range d.Dates {
			isos[i] = dt.ISO
		}
		fmt.Fprintf(&b, "- Dates found: %s\n", strings.Join(isos, ", "))
	}
	if len(d.OrderNumbers) > 0 {
		fmt.Fprintf(&b, "- Order numbers found: %s\n", strings.Join(d.OrderNumbers, ", "))
	}

	pt := d.PaymentTerms
	if pt.Days != nil || len(pt.PaymentDays) > 0 {
		b.WriteString("\nPAYMENT TERMS DETECTED (confirmed by regex):\n")
		if pt.Days != nil {
			fmt.Fprintf(&b, "- Days: %d\n", *pt.Days)
		}
		if len(pt.PaymentDays) > 0 {
			days := make([]string, len(pt.PaymentDays))
			for i, v := range pt.PaymentDays {
				days[i] = strconv.Itoa(v)
			}
			fmt.Fprintf(&b, "- Payment days of month: %s\n", strings.Join(days, ", "))
		}
		if pt.BankTransfer != nil {
			yes := "No"
			if *pt.BankTransfer {
				yes = "Yes"
			}
			fmt.Fprintf(&b, "- Bank transfer: %s\n", yes)
		}
		if pt.Interpretation != "" {
			fmt.Fprintf(&b, "- Interpretation: %s\n", pt.Interpretation)
		}
	}

	b.WriteString("\n---\n\nDOCUMENT TEXT TO ANALYZE:\n\n")
	text := req.Text
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText]) + "\n...(truncated)"
	}
	b.WriteString(text)
	b.WriteString(`

---

Extract all order information from this document. Remember:
1. The CUSTOMER is the buyer (the one placing the order)
2. Do NOT confuse the supplier with the customer (DADOS DO FORNECEDOR = supplier = us)
3. Return null for any field not found
4. Extract ALL order line items if present
5. Pay close attention to PAYMENT TERMS: days, specific payment dates and method
`)
	return b.String()
}

func listOrUnspecified(xs []string) string {
	if len(xs) == 0 {
		return "Not specified"
	}
	return strings.Join(xs, ", ")
}
