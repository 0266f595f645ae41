package canonical

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

// Transforms accepted in a field mapping.
const (
	TransformUpper   = "upper"
	TransformLower   = "lower"
	TransformDate    = "date"
	TransformDateISO = "date_iso"
	TransformNumber  = "number"
	TransformDecimal = "decimal"
)

type docField struct {
	str func(*entity.CanonicalDocument) **string
	num func(*entity.CanonicalDocument) **float64
}

type itemField struct {
	str func(*entity.Item) **string
	num func(*entity.Item) **float64
}

func addressFields(prefix string, addr func(*entity.CanonicalDocument) *entity.CanonicalAddress) map[string]docField {
	return map[string]docField{
		prefix + ".line1":      {str: func(d *entity.CanonicalDocument) **string { return &addr(d).Line1 }},
		prefix + ".number":     {str: func(d *entity.CanonicalDocument) **string { return &addr(d).Number }},
		prefix + ".complement": {str: func(d *entity.CanonicalDocument) **string { return &addr(d).Complement }},
		prefix + ".district":   {str: func(d *entity.CanonicalDocument) **string { return &addr(d).District }},
		prefix + ".city":       {str: func(d *entity.CanonicalDocument) **string { return &addr(d).City }},
		prefix + ".state":      {str: func(d *entity.CanonicalDocument) **string { return &addr(d).State }},
		prefix + ".zip":        {str: func(d *entity.CanonicalDocument) **string { return &addr(d).Zip }},
		prefix + ".country":    {str: func(d *entity.CanonicalDocument) **string { return &addr(d).Country }},
	}
}

var docFields = func() map[string]docField {
	f := map[string]docField{
		"customer.name":         {str: func(d *entity.CanonicalDocument) **string { return &d.Customer.Name }},
		"customer.tax_id":       {str: func(d *entity.CanonicalDocument) **string { return &d.Customer.TaxID }},
		"customer.code":         {str: func(d *entity.CanonicalDocument) **string { return &d.Customer.Code }},
		"order.order_number":    {str: func(d *entity.CanonicalDocument) **string { return &d.Order.OrderNumber }},
		"order.issue_date":      {str: func(d *entity.CanonicalDocument) **string { return &d.Order.IssueDate }},
		"order.delivery_date":   {str: func(d *entity.CanonicalDocument) **string { return &d.Order.DeliveryDate }},
		"order.valid_until":     {str: func(d *entity.CanonicalDocument) **string { return &d.Order.ValidUntil }},
		"order.currency_raw":    {str: func(d *entity.CanonicalDocument) **string { return &d.Order.CurrencyRaw }},
		"order.payment_terms":   {str: func(d *entity.CanonicalDocument) **string { return &d.Order.PaymentTerms }},
		"order.payment_method":  {str: func(d *entity.CanonicalDocument) **string { return &d.Order.PaymentMethod }},
		"order.shipping_method": {str: func(d *entity.CanonicalDocument) **string { return &d.Order.ShippingMethod }},
		"order.notes":           {str: func(d *entity.CanonicalDocument) **string { return &d.Order.Notes }},
		"totals.subtotal":       {num: func(d *entity.CanonicalDocument) **float64 { return &d.Totals.Subtotal }},
		"totals.discounts":      {num: func(d *entity.CanonicalDocument) **float64 { return &d.Totals.Discounts }},
		"totals.freight":        {num: func(d *entity.CanonicalDocument) **float64 { return &d.Totals.Freight }},
		"totals.taxes":          {num: func(d *entity.CanonicalDocument) **float64 { return &d.Totals.Taxes }},
		"totals.total":          {num: func(d *entity.CanonicalDocument) **float64 { return &d.Totals.Total }},
	}
	for k, v := range addressFields("addresses.billing", func(d *entity.CanonicalDocument) *entity.CanonicalAddress { return &d.Addresses.Billing }) {
		f[k] = v
	}
	for k, v := range addressFields("addresses.shipping", func(d *entity.CanonicalDocument) *entity.CanonicalAddress { return &d.Addresses.Shipping }) {
		f[k] = v
	}
	return f
}()

var itemFields = map[string]itemField{
	"sku":           {str: func(i *entity.Item) **string { return &i.SKU }},
	"description":   {str: func(i *entity.Item) **string { return &i.Description }},
	"unit":          {str: func(i *entity.Item) **string { return &i.Unit }},
	"delivery_date": {str: func(i *entity.Item) **string { return &i.DeliveryDate }},
	"quantity":      {num: func(i *entity.Item) **float64 { return &i.Quantity }},
	"unit_price":    {num: func(i *entity.Item) **float64 { return &i.UnitPrice }},
	"discount":      {num: func(i *entity.Item) **float64 { return &i.Discount }},
	"tax":           {num: func(i *entity.Item) **float64 { return &i.Tax }},
	"total":         {num: func(i *entity.Item) **float64 { return &i.Total }},
}

// ApplyMapping copies values from the legacy result into doc as the model's
// mapping config describes. A target is only written while it is empty, so
// parser output always wins over configuration.
func ApplyMapping(doc *entity.CanonicalDocument, res *entity.ParseResult, cfg entity.MappingConfig, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	root := toGeneric(res)

	for _, fm := range cfg.Fields {
		if fm.Source == "" || fm.Target == "" {
			continue
		}
		field, ok := docFields[strings.TrimPrefix(fm.Target, ".")]
		if !ok {
			logger.Debug("canonical.mapping.unknown_target", "target", fm.Target)
			continue
		}
		value := applyTransform(valueAt(root, fm.Source), fm.Transform)
		if value == nil {
			continue
		}
		setIfEmpty(field.str, field.num, doc, value)
	}

	for _, fm := range cfg.ItemFields {
		if fm.Source == "" || !strings.Contains(fm.Target, "items[]") {
			continue
		}
		name := fm.Target[strings.Index(fm.Target, "items[]")+len("items[]"):]
		field, ok := itemFields[strings.TrimPrefix(name, ".")]
		if !ok {
			logger.Debug("canonical.mapping.unknown_target", "target", fm.Target)
			continue
		}
		values := listAt(root, fm.Source)
		for i := range doc.Items {
			if i >= len(values) {
				break
			}
			value := applyTransform(values[i], fm.Transform)
			if value == nil {
				continue
			}
			setIfEmpty(field.str, field.num, &doc.Items[i], value)
		}
	}
}

func setIfEmpty[T any](str func(T) **string, num func(T) **float64, target T, value any) {
	switch {
	case str != nil:
		p := str(target)
		if *p != nil && strings.TrimSpace(**p) != "" {
			return
		}
		if s, ok := asString(value); ok {
			*p = &s
		}
	case num != nil:
		p := num(target)
		if *p != nil {
			return
		}
		if f, ok := toDecimal(value); ok {
			*p = &f
		}
	}
}

func toGeneric(res *entity.ParseResult) any {
	if res == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// valueAt resolves a dotted path. A path with "[]" yields its first element.
func valueAt(data any, path string) any {
	path = strings.TrimPrefix(path, "result.")
	if path == "" {
		return nil
	}
	if strings.Contains(path, "[]") {
		if vs := listAt(data, path); len(vs) > 0 {
			return vs[0]
		}
		return nil
	}
	cur := data
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur = obj[part]; cur == nil {
			return nil
		}
	}
	return cur
}

// listAt resolves "lines[].field" to one value per list element.
func listAt(data any, path string) []any {
	path = strings.TrimPrefix(path, "result.")
	if path == "" {
		return nil
	}
	listPath, rest, found := strings.Cut(path, "[]")
	if !found {
		if v := valueAt(data, path); v != nil {
			return []any{v}
		}
		return nil
	}
	coll, ok := valueAt(data, strings.TrimSuffix(listPath, ".")).([]any)
	if !ok {
		return nil
	}
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return coll
	}
	out := make([]any, len(coll))
	for i, item := range coll {
		if _, isObj := item.(map[string]any); isObj {
			out[i] = valueAt(item, rest)
		}
	}
	return out
}

func applyTransform(value any, transform string) any {
	if value == nil || transform == "" {
		return value
	}
	s, isStr := value.(string)
	switch strings.ToLower(transform) {
	case TransformUpper:
		if isStr {
			return strings.ToUpper(s)
		}
	case TransformLower:
		if isStr {
			return strings.ToLower(s)
		}
	case TransformDate, TransformDateISO:
		if isStr {
			if d := parsers.NormalizeDate(s); d != "" {
				return d
			}
			return nil
		}
	case TransformNumber, TransformDecimal:
		if f, ok := toDecimal(value); ok {
			return f
		}
		return nil
	}
	return value
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

var hasDigitRe = regexp.MustCompile(`\d`)

// toDecimal reads JSON numbers and numeric strings. A comma in the string
// selects the pt-BR convention.
func toDecimal(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || !hasDigitRe.MatchString(s) {
			return 0, false
		}
		locale := parsers.LocaleEnUS
		if strings.Contains(s, ",") {
			locale = parsers.LocalePtBR
		}
		return parsers.NormalizeMonetaryValue(s, locale)
	}
	return 0, false
}
