package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/constants"
)

// SalesOrder is a parsed order submitted for approval.
type SalesOrder struct {
	ID                  uuid.UUID                  `json:"id"`
	DocumentID          *string                    `json:"document_id"`
	CustomerName        *string                    `json:"customer_name"`
	CustomerTaxID       *string                    `json:"customer_tax_id"`
	CustomerOrderNumber *string                    `json:"customer_order_number"`
	OrderDate           *string                    `json:"order_date"`
	DeliveryDate        *string                    `json:"delivery_date"`
	CurrencyCode        *string                    `json:"currency_code"`
	PaymentTermsCode    *string                    `json:"payment_terms_code"`
	Total               *float64                   `json:"total"`
	Status              constants.SalesOrderStatus `json:"status"`
	CreatedBy           *string                    `json:"created_by"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
	Lines               []SalesOrderLine           `json:"lines"`
	Events              []SalesOrderEvent          `json:"events,omitempty"`
}

type SalesOrderLine struct {
	LineNumber    int      `json:"line_number"`
	SKU           *string  `json:"sku"`
	Description   *string  `json:"description"`
	Quantity      *float64 `json:"quantity"`
	UnitOfMeasure *string  `json:"unit_of_measure"`
	UnitPrice     *float64 `json:"unit_price"`
	Total         *float64 `json:"total"`
	DeliveryDate  *string  `json:"delivery_date"`
}

// SalesOrderEvent is one status transition in a sales order's history.
type SalesOrderEvent struct {
	FromStatus constants.SalesOrderStatus `json:"from_status"`
	ToStatus   constants.SalesOrderStatus `json:"to_status"`
	Actor      *string                    `json:"actor"`
	Note       *string                    `json:"note"`
	At         time.Time                  `json:"at"`
}
