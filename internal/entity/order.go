package entity

// Party is the customer ("sell-to") block of a Business Central order.
type Party struct {
	Name    *string `json:"name"`
	CNPJ    *string `json:"cnpj"`
	IE      *string `json:"ie"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Contact *string `json:"contact"`
}

// Address is a bill-to or ship-to address.
type Address struct {
	Address    *string `json:"address"`
	Number     *string `json:"number"`
	Complement *string `json:"complement"`
	District   *string `json:"district"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	Zip        *string `json:"zip"`
	Country    *string `json:"country"`
}

// Order is the header of a Business Central sales order.
type Order struct {
	CustomerOrderNumber    *string `json:"customer_order_number"`
	OrderDate              *string `json:"order_date"`
	RequestedDeliveryDate  *string `json:"requested_delivery_date"`
	PromisedDeliveryDate   *string `json:"promised_delivery_date"`
	BillingDate            *string `json:"billing_date"`
	CurrencyCode           *string `json:"currency_code"`
	PaymentTermsCode       *string `json:"payment_terms_code"`
	PaymentMethodCode      *string `json:"payment_method_code"`
	CompanyBankAccountCode *string `json:"company_bank_account_code"`
	ShippingMethodCode     *string `json:"shipping_method_code"`
	SellTo                 Party   `json:"sell_to"`
	BillTo                 Address `json:"bill_to"`
	ShipTo                 Address `json:"ship_to"`
	Notes                  *string `json:"notes"`
}

// Line is one order line. Amounts are plain decimals.
type Line struct {
	CustomerOrderItemNo *string  `json:"customer_order_item_no"`
	ItemReferenceNo     *string  `json:"item_reference_no"`
	Description         *string  `json:"description"`
	Quantity            *float64 `json:"quantity"`
	UnitOfMeasure       *string  `json:"unit_of_measure"`
	UnitPriceExclVAT    *float64 `json:"unit_price_excl_vat"`
	Discount            *float64 `json:"discount,omitempty"`
	Tax                 *float64 `json:"tax,omitempty"`
	Total               *float64 `json:"total,omitempty"`
	DeliveryDate        *string  `json:"delivery_date,omitempty"`
}

// ParseResult is the Business Central payload: one order and its lines.
type ParseResult struct {
	Order Order  `json:"order"`
	Lines []Line `json:"lines"`
}

// EmptyParseResult returns a result with every key present and no values.
func EmptyParseResult() *ParseResult {
	return &ParseResult{Lines: []Line{}}
}

// SplitOrder is the subset of an order that shares one delivery date.
type SplitOrder struct {
	DeliveryDate *string `json:"delivery_date"`
	Order        Order   `json:"order"`
	Lines        []Line  `json:"lines"`
}

// LegacyOutput is what the five-stage workflow (and the model parsers) return.
type LegacyOutput struct {
	Result           *ParseResult `json:"result"`
	Warnings         []string     `json:"warnings"`
	DocumentType     string       `json:"document_type"`
	SplitOrders      []SplitOrder `json:"split_orders"`
	HasMultipleDates bool         `json:"has_multiple_dates"`
}
