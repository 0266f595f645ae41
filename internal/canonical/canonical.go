// Package canonical converts workflow and model-parser output into the
// versioned canonical document stored and served by the API.
package canonical

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// RequiredFields are reported in parsing.missing_fields when empty, in this order.
var RequiredFields = []string{
	"customer.name",
	"customer.tax_id",
	"order.order_number",
	"order.issue_date",
	"items",
}

// Options describe where the document came from and which model parsed it.
type Options struct {
	InputType     string
	RawInput      []byte
	SourceName    *string
	HashSHA256    *string
	IngestedAt    string
	DocumentID    string
	ModelName     string
	DetectedBy    string
	Confidence    *float64
	ParserVersion *string
	Mapping       *entity.MappingConfig
	Mappings      *mappings.Config
	Logger        *slog.Logger
	Now           func() time.Time
}

// Normalize builds a canonical document from legacy output. The status is
// failed when the output carries no result, partial when there are warnings
// or missing required fields, success otherwise.
func Normalize(out entity.LegacyOutput, opts Options) *entity.CanonicalDocument {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	m := opts.Mappings
	if m == nil {
		m = mappings.Default()
	}

	res := out.Result
	if res == nil {
		res = entity.EmptyParseResult()
	}
	o := res.Order

	docType := out.DocumentType
	if docType == "" {
		docType = constants.DocTypeUnknown
	}
	hash := opts.HashSHA256
	if hash == nil && opts.RawInput != nil {
		h := utils.SHA256Hex(opts.RawInput)
		hash = &h
	}
	ingestedAt := opts.IngestedAt
	if ingestedAt == "" {
		ingestedAt = utils.FormatISO(now())
	}
	id := opts.DocumentID
	if id == "" {
		id = uuid.NewString()
	}
	modelName := opts.ModelName
	if modelName == "" {
		modelName = "unknown"
	}
	var confidence float64
	if opts.Confidence != nil {
		confidence = *opts.Confidence
	}

	items := buildItems(res.Lines)
	doc := &entity.CanonicalDocument{
		SchemaVersion: entity.CanonicalSchemaVersion,
		Document: entity.DocumentInfo{
			ID:      id,
			Type:    constants.ToCanonicalDocType(docType),
			Subtype: docType,
			Source: entity.DocumentSource{
				Filename:   opts.SourceName,
				MimeType:   constants.MimeTypeFor(opts.InputType),
				FileType:   opts.InputType,
				HashSHA256: hash,
				IngestedAt: ingestedAt,
			},
			Model: entity.ModelInfo{
				Name:       modelName,
				DetectedBy: constants.ParseDetectedBy(opts.DetectedBy),
				Confidence: confidence,
			},
		},
		Customer: buildCustomer(o.SellTo),
		Order: entity.OrderInfo{
			OrderNumber:    o.CustomerOrderNumber,
			IssueDate:      normalizeDate(o.OrderDate),
			DeliveryDate:   normalizeDate(utils.FirstNonBlank(o.RequestedDeliveryDate, o.PromisedDeliveryDate)),
			Currency:       mapCurrency(o.CurrencyCode, m),
			CurrencyRaw:    o.CurrencyCode,
			PaymentTerms:   o.PaymentTermsCode,
			PaymentMethod:  o.PaymentMethodCode,
			ShippingMethod: o.ShippingMethodCode,
			Notes:          o.Notes,
		},
		Addresses: entity.Addresses{
			Billing:  buildAddress(o.BillTo),
			Shipping: buildAddress(o.ShipTo),
		},
		Items:       items,
		Totals:      buildTotals(items),
		Attachments: []entity.Attachment{},
		Parsing: entity.ParsingMetadata{
			Status:        constants.ParsingStatusPartial,
			Warnings:      nonNil(out.Warnings),
			ParsedAt:      utils.FormatISO(now()),
			ParserVersion: opts.ParserVersion,
			Confidence:    opts.Confidence,
		},
	}

	if opts.Mapping != nil && !opts.Mapping.IsZero() {
		ApplyMapping(doc, res, *opts.Mapping, opts.Logger)
	}

	doc.Parsing.MissingFields = MissingFields(doc)
	doc.Parsing.Status = deriveStatus(out.Result, doc.Parsing.Warnings, doc.Parsing.MissingFields)
	return doc
}

// Failed builds the document persisted when a parse could not complete.
func Failed(opts Options, warnings ...string) *entity.CanonicalDocument {
	doc := Normalize(entity.LegacyOutput{Warnings: warnings, DocumentType: constants.DocTypeUnknown}, opts)
	doc.Parsing.Status = constants.ParsingStatusFailed
	return doc
}

// MissingFields lists the required fields that are still empty.
func MissingFields(doc *entity.CanonicalDocument) []string {
	empty := map[string]bool{
		"customer.name":      utils.IsBlank(doc.Customer.Name),
		"customer.tax_id":    utils.IsBlank(doc.Customer.TaxID),
		"order.order_number": utils.IsBlank(doc.Order.OrderNumber),
		"order.issue_date":   utils.IsBlank(doc.Order.IssueDate),
		"items":              len(doc.Items) == 0,
	}
	missing := []string{}
	for _, f := range RequiredFields {
		if empty[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func deriveStatus(res *entity.ParseResult, warnings, missing []string) constants.ParsingStatus {
	switch {
	case res == nil || (res.Order == entity.Order{} && len(res.Lines) == 0):
		return constants.ParsingStatusFailed
	case len(warnings) > 0 || len(missing) > 0:
		return constants.ParsingStatusPartial
	}
	return constants.ParsingStatusSuccess
}

func buildCustomer(p entity.Party) entity.CustomerInfo {
	contacts := []entity.Contact{}
	for _, c := range []struct {
		kind  string
		value *string
	}{
		{"email", p.Email},
		{"phone", p.Phone},
		{"person", p.Contact},
	} {
		if !utils.IsBlank(c.value) {
			contacts = append(contacts, entity.Contact{Type: c.kind, Value: *c.value})
		}
	}
	return entity.CustomerInfo{
		Name:     p.Name,
		TaxID:    normalizeWith(p.CNPJ, parsers.NormalizeCNPJ),
		Contacts: contacts,
	}
}

func buildAddress(a entity.Address) entity.CanonicalAddress {
	return entity.CanonicalAddress{
		Line1:      a.Address,
		Number:     a.Number,
		Complement: a.Complement,
		District:   a.District,
		City:       a.City,
		State:      a.State,
		Zip:        normalizeWith(a.Zip, parsers.NormalizeCEP),
		Country:    a.Country,
	}
}

func buildItems(lines []entity.Line) []entity.Item {
	items := make([]entity.Item, 0, len(lines))
	for i, l := range lines {
		lineNo := i + 1
		if n, err := strconv.Atoi(strings.TrimSpace(utils.StrOrEmpty(l.CustomerOrderItemNo))); err == nil {
			lineNo = n
		}
		total := l.Total
		if total == nil && l.Quantity != nil && l.UnitPriceExclVAT != nil {
			total = utils.Float64Ptr(round6(*l.Quantity * *l.UnitPriceExclVAT))
		}
		items = append(items, entity.Item{
			LineNumber:   lineNo,
			SKU:          l.ItemReferenceNo,
			Description:  l.Description,
			Quantity:     l.Quantity,
			Unit:         l.UnitOfMeasure,
			UnitPrice:    l.UnitPriceExclVAT,
			Discount:     l.Discount,
			Tax:          l.Tax,
			Total:        total,
			DeliveryDate: normalizeDate(l.DeliveryDate),
			Raw:          rawLine(l),
		})
	}
	return items
}

func buildTotals(items []entity.Item) entity.Totals {
	var sum float64
	var found bool
	for _, it := range items {
		if it.Total != nil {
			sum += *it.Total
			found = true
		}
	}
	if !found {
		return entity.Totals{}
	}
	subtotal := round6(sum)
	return entity.Totals{Subtotal: &subtotal, Total: utils.Float64Ptr(subtotal)}
}

// mapCurrency resolves through the business mapping first, then the raw code.
func mapCurrency(raw *string, m *mappings.Config) constants.CurrencyCode {
	if utils.IsBlank(raw) {
		return constants.CurrencyUnknown
	}
	if mapped, ok := m.MapCurrency(*raw); ok {
		return constants.ToCurrencyCode(mapped)
	}
	return constants.ToCurrencyCode(*raw)
}

func rawLine(l entity.Line) map[string]any {
	b, err := json.Marshal(l)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func normalizeDate(p *string) *string {
	return normalizeWith(p, parsers.NormalizeDate)
}

func normalizeWith(p *string, norm func(string) string) *string {
	if utils.IsBlank(p) {
		return nil
	}
	return utils.StrPtr(norm(strings.TrimSpace(*p)))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
