package entity

import "github.com/joseph-ayodele/order-parser/constants"

// CanonicalSchemaVersion is bumped on breaking changes to CanonicalDocument.
const CanonicalSchemaVersion = "1.0"

type DocumentSource struct {
	Filename   *string `json:"filename"`
	MimeType   string  `json:"mime_type"`
	FileType   string  `json:"file_type"`
	HashSHA256 *string `json:"hash_sha256"`
	IngestedAt string  `json:"ingested_at"`
}

type ModelInfo struct {
	Name       string               `json:"name"`
	DetectedBy constants.DetectedBy `json:"detected_by"`
	Confidence float64              `json:"confidence"`
}

type DocumentInfo struct {
	ID      string                     `json:"id"`
	Type    constants.CanonicalDocType `json:"type"`
	Subtype string                     `json:"subtype"`
	Source  DocumentSource             `json:"source"`
	Model   ModelInfo                  `json:"model"`
}

type Contact struct {
	Type  string `json:"type"` // email | phone | person
	Value string `json:"value"`
}

type CustomerInfo struct {
	Name     *string   `json:"name"`
	TaxID    *string   `json:"tax_id"`
	Code     *string   `json:"code"`
	Contacts []Contact `json:"contacts"`
}

type OrderInfo struct {
	OrderNumber    *string                `json:"order_number"`
	IssueDate      *string                `json:"issue_date"`
	DeliveryDate   *string                `json:"delivery_date"`
	ValidUntil     *string                `json:"valid_until"`
	Currency       constants.CurrencyCode `json:"currency"`
	CurrencyRaw    *string                `json:"currency_raw"`
	PaymentTerms   *string                `json:"payment_terms"`
	PaymentMethod  *string                `json:"payment_method"`
	ShippingMethod *string                `json:"shipping_method"`
	Notes          *string                `json:"notes"`
}

type CanonicalAddress struct {
	Line1      *string `json:"line1"`
	Number     *string `json:"number"`
	Complement *string `json:"complement"`
	District   *string `json:"district"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	Zip        *string `json:"zip"`
	Country    *string `json:"country"`
}

type Addresses struct {
	Billing  CanonicalAddress `json:"billing"`
	Shipping CanonicalAddress `json:"shipping"`
}

type Item struct {
	LineNumber   int            `json:"line_number"`
	SKU          *string        `json:"sku"`
	Description  *string        `json:"description"`
	Quantity     *float64       `json:"quantity"`
	Unit         *string        `json:"unit"`
	UnitPrice    *float64       `json:"unit_price"`
	Discount     *float64       `json:"discount"`
	Tax          *float64       `json:"tax"`
	Total        *float64       `json:"total"`
	DeliveryDate *string        `json:"delivery_date"`
	Raw          map[string]any `json:"raw"`
}

type Totals struct {
	Subtotal  *float64 `json:"subtotal"`
	Discounts *float64 `json:"discounts"`
	Freight   *float64 `json:"freight"`
	Taxes     *float64 `json:"taxes"`
	Total     *float64 `json:"total"`
}

type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

type ParsingMetadata struct {
	Status        constants.ParsingStatus `json:"status"`
	Warnings      []string                `json:"warnings"`
	MissingFields []string                `json:"missing_fields"`
	ParsedAt      string                  `json:"parsed_at"`
	ParserVersion *string                 `json:"parser_version"`
	Confidence    *float64                `json:"confidence"`
}

// CanonicalDocument is the versioned, model-independent parse result.
type CanonicalDocument struct {
	SchemaVersion string          `json:"schema_version"`
	Document      DocumentInfo    `json:"document"`
	Customer      CustomerInfo    `json:"customer"`
	Order         OrderInfo       `json:"order"`
	Addresses     Addresses       `json:"addresses"`
	Items         []Item          `json:"items"`
	Totals        Totals          `json:"totals"`
	Attachments   []Attachment    `json:"attachments"`
	Parsing       ParsingMetadata `json:"parsing"`
}
