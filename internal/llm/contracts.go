package llm

import (
	"context"

	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

// ExtractRequest carries the document text plus everything the regex pass
// already knows, so the model can anchor on verified values.
type ExtractRequest struct {
	Text          string
	DocumentType  string
	SupplierNames []string // our own company, never the customer
	SupplierCNPJs []string
	Deterministic parsers.Extraction
}

// OrderHeader is the flat header shape we ask the model for. Every field is
// optional; absent data comes back as null.
type OrderHeader struct {
	CustomerOrderNumber   *string `json:"customer_order_number"`
	OrderDate             *string `json:"order_date"`
	RequestedDeliveryDate *string `json:"requested_delivery_date"`
	PromisedDeliveryDate  *string `json:"promised_delivery_date"`
	BillingDate           *string `json:"billing_date"`
	CurrencyCode          *string `json:"currency_code"`
	PaymentTerms          *string `json:"payment_terms"`
	PaymentTermsDays      *int    `json:"payment_terms_days"`
	PaymentDaysOfMonth    *string `json:"payment_days_of_month"`
	PaymentMethod         *string `json:"payment_method"`
	ShippingMethod        *string `json:"shipping_method"`
	Notes                 *string `json:"notes"`

	CustomerName    *string `json:"customer_name"`
	CustomerCNPJ    *string `json:"customer_cnpj"`
	CustomerIE      *string `json:"customer_ie"`
	CustomerPhone   *string `json:"customer_phone"`
	CustomerEmail   *string `json:"customer_email"`
	CustomerContact *string `json:"customer_contact"`

	BillAddress    *string `json:"bill_address"`
	BillNumber     *string `json:"bill_number"`
	BillComplement *string `json:"bill_complement"`
	BillDistrict   *string `json:"bill_district"`
	BillCity       *string `json:"bill_city"`
	BillState      *string `json:"bill_state"`
	BillZip        *string `json:"bill_zip"`
	BillCountry    *string `json:"bill_country"`

	ShipAddress    *string `json:"ship_address"`
	ShipNumber     *string `json:"ship_number"`
	ShipComplement *string `json:"ship_complement"`
	ShipDistrict   *string `json:"ship_district"`
	ShipCity       *string `json:"ship_city"`
	ShipState      *string `json:"ship_state"`
	ShipZip        *string `json:"ship_zip"`
	ShipCountry    *string `json:"ship_country"`
}

type ExtractedLine struct {
	CustomerOrderItemNo *string  `json:"customer_order_item_no"`
	ItemReferenceNo     *string  `json:"item_reference_no"`
	Description         *string  `json:"description"`
	Quantity            *float64 `json:"quantity"`
	UnitOfMeasure       *string  `json:"unit_of_measure"`
	UnitPriceExclVAT    *float64 `json:"unit_price_excl_vat"`
	DeliveryDate        *string  `json:"delivery_date"`
}

// ExtractedOrder is the validated model output.
type ExtractedOrder struct {
	Order OrderHeader     `json:"order"`
	Lines []ExtractedLine `json:"lines"`
}

// OrderExtractor is the interface the workflow depends on.
type OrderExtractor interface {
	ExtractOrder(ctx context.Context, req ExtractRequest) (ExtractedOrder, []byte /*rawJSON*/, error)
}
