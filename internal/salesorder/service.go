// Package salesorder turns parsed documents into sales orders and moves them
// through review.
package salesorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// DocumentSource loads the stored output of a parse.
type DocumentSource interface {
	Get(ctx context.Context, documentID string) (*entity.ParsedDocument, error)
}

// Service handles sales order business logic.
type Service struct {
	orders repository.SalesOrderRepository
	docs   DocumentSource
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new sales order service.
func NewService(orders repository.SalesOrderRepository, docs DocumentSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, docs: docs, logger: logger, now: time.Now}
}

// CreateFromDocument builds a DRAFT order from a parsed document.
func (s *Service) CreateFromDocument(ctx context.Context, documentID string, actor *string) (*entity.SalesOrder, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, common.InvalidInput("document_id is required")
	}
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if utils.StrOrEmpty(doc.Status) == string(constants.ParsingStatusFailed) {
		return nil, common.InvalidInput("Parsed document failed; nothing to order")
	}

	order, err := fromParsedDocument(doc)
	if err != nil {
		s.logger.Error("salesorder.create.document_failed", "document_id", documentID, "error", err)
		return nil, common.NewAppError("INVALID_DOCUMENT", "Parsed document cannot be read", common.ErrValidation)
	}
	now := s.now().UTC()
	order.ID = uuid.New()
	order.Status = constants.SalesOrderDraft
	order.CreatedBy = actor
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create sales order: %w", err)
	}
	s.logger.Info("salesorder.create.ok", "sales_order_id", order.ID, "document_id", documentID, "lines", len(order.Lines))
	return order, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.SalesOrder, error) {
	return s.orders.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter repository.SalesOrderFilter) ([]entity.SalesOrder, error) {
	if filter.Status != "" {
		filter.Status = strings.ToUpper(filter.Status)
		if !constants.IsValidSalesOrderStatus(filter.Status) {
			return nil, common.InvalidInput("unknown status: " + filter.Status)
		}
	}
	return s.orders.List(ctx, filter)
}

func (s *Service) Submit(ctx context.Context, id uuid.UUID, actor *string) (*entity.SalesOrder, error) {
	return s.transition(ctx, id, constants.SalesOrderSubmitted, actor, nil)
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor *string) (*entity.SalesOrder, error) {
	return s.transition(ctx, id, constants.SalesOrderApproved, actor, nil)
}

// Reject requires a reason, stored as the event note.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor *string, reason string) (*entity.SalesOrder, error) {
	note := utils.StrPtr(reason)
	if note == nil {
		return nil, common.InvalidInput("reason is required to reject")
	}
	return s.transition(ctx, id, constants.SalesOrderRejected, actor, note)
}

func (s *Service) Reopen(ctx context.Context, id uuid.UUID, actor *string) (*entity.SalesOrder, error) {
	return s.transition(ctx, id, constants.SalesOrderDraft, actor, nil)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to constants.SalesOrderStatus, actor, note *string) (*entity.SalesOrder, error) {
	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if !constants.CanTransition(from, to) {
		return nil, common.NewAppError("INVALID_TRANSITION",
			fmt.Sprintf("cannot move sales order from %s to %s", from, to), common.ErrInvalidTransition)
	}

	ev := entity.SalesOrderEvent{FromStatus: from, ToStatus: to, Actor: actor, Note: note, At: s.now().UTC()}
	if err := s.orders.UpdateStatus(ctx, id, from, to, ev); err != nil {
		return nil, err
	}
	s.logger.Info("salesorder.transition.ok", "sales_order_id", id, "from", from, "to", to, "actor", utils.StrOrEmpty(actor))
	return s.orders.Get(ctx, id)
}

// fromParsedDocument reads either a canonical document or, for models on
// the pass-through normalizer, a legacy parse result.
func fromParsedDocument(doc *entity.ParsedDocument) (*entity.SalesOrder, error) {
	if len(doc.Canonical) == 0 {
		return nil, fmt.Errorf("document %s has no payload", doc.DocumentID)
	}
	var probe struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(doc.Canonical, &probe); err != nil {
		return nil, err
	}

	documentID := doc.DocumentID
	if probe.SchemaVersion == "" {
		var res entity.ParseResult
		if err := json.Unmarshal(doc.Canonical, &res); err != nil {
			return nil, err
		}
		o := fromParseResult(&res)
		o.DocumentID = &documentID
		return o, nil
	}

	var c entity.CanonicalDocument
	if err := json.Unmarshal(doc.Canonical, &c); err != nil {
		return nil, err
	}
	o := fromCanonical(&c)
	o.DocumentID = &documentID
	return o, nil
}

func fromCanonical(c *entity.CanonicalDocument) *entity.SalesOrder {
	o := &entity.SalesOrder{
		CustomerName:        c.Customer.Name,
		CustomerTaxID:       c.Customer.TaxID,
		CustomerOrderNumber: c.Order.OrderNumber,
		OrderDate:           c.Order.IssueDate,
		DeliveryDate:        c.Order.DeliveryDate,
		CurrencyCode:        utils.StrPtr(string(c.Order.Currency)),
		PaymentTermsCode:    c.Order.PaymentTerms,
		Lines:               make([]entity.SalesOrderLine, 0, len(c.Items)),
	}
	for i, it := range c.Items {
		n := it.LineNumber
		if n <= 0 {
			n = i + 1
		}
		o.Lines = append(o.Lines, entity.SalesOrderLine{
			LineNumber:    n,
			SKU:           it.SKU,
			Description:   it.Description,
			Quantity:      it.Quantity,
			UnitOfMeasure: it.Unit,
			UnitPrice:     it.UnitPrice,
			Total:         lineTotal(it.Total, it.Quantity, it.UnitPrice),
			DeliveryDate:  it.DeliveryDate,
		})
	}
	o.Total = c.Totals.Total
	if o.Total == nil {
		o.Total = sumLines(o.Lines)
	}
	return o
}

func fromParseResult(res *entity.ParseResult) *entity.SalesOrder {
	h := res.Order
	o := &entity.SalesOrder{
		CustomerName:        h.SellTo.Name,
		CustomerTaxID:       h.SellTo.CNPJ,
		CustomerOrderNumber: h.CustomerOrderNumber,
		OrderDate:           h.OrderDate,
		DeliveryDate:        h.RequestedDeliveryDate,
		CurrencyCode:        h.CurrencyCode,
		PaymentTermsCode:    h.PaymentTermsCode,
		Lines:               make([]entity.SalesOrderLine, 0, len(res.Lines)),
	}
	for i, l := range res.Lines {
		o.Lines = append(o.Lines, entity.SalesOrderLine{
			LineNumber:    i + 1,
			SKU:           l.ItemReferenceNo,
			Description:   l.Description,
			Quantity:      l.Quantity,
			UnitOfMeasure: l.UnitOfMeasure,
			UnitPrice:     l.UnitPriceExclVAT,
			Total:         lineTotal(l.Total, l.Quantity, l.UnitPriceExclVAT),
			DeliveryDate:  l.DeliveryDate,
		})
	}
	o.Total = sumLines(o.Lines)
	return o
}

func lineTotal(total, qty, price *float64) *float64 {
	if total != nil {
		return total
	}
	if qty == nil || price == nil {
		return nil
	}
	v := math.Round(*qty**price*1e6) / 1e6
	return &v
}

// sumLines is nil when no line has a total.
func sumLines(lines []entity.SalesOrderLine) *float64 {
	var (
		sum   float64
		found bool
	)
	for _, l := range lines {
		if l.Total != nil {
			sum += *l.Total
			found = true
		}
	}
	if !found {
		return nil
	}
	sum = math.Round(sum*1e6) / 1e6
	return &sum
}
