package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

type SalesOrderFilter struct {
	Status string
	Limit  int
	Offset int
}

type SalesOrderRepository interface {
	Create(ctx context.Context, order *entity.SalesOrder) error
	Get(ctx context.Context, id uuid.UUID) (*entity.SalesOrder, error)
	List(ctx context.Context, filter SalesOrderFilter) ([]entity.SalesOrder, error)
	// UpdateStatus moves the order from one status to another and records
	// the event. It fails with ErrInvalidTransition when the stored status is
	// no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to constants.SalesOrderStatus, ev entity.SalesOrderEvent) error
}

type salesOrderRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSalesOrderRepository(db *DB, logger *slog.Logger) SalesOrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &salesOrderRepository{db: db, logger: logger}
}

func (r *salesOrderRepository) Create(ctx context.Context, o *entity.SalesOrder) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := r.db.exec(ctx, tx,
			`INSERT INTO sales_orders (
			   id, document_id, customer_name, customer_tax_id, customer_order_number, order_date,
			   delivery_date, currency_code, payment_terms_code, total, status, created_by,
			   created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID.String(), o.DocumentID, o.CustomerName, o.CustomerTaxID, o.CustomerOrderNumber, o.OrderDate,
			o.DeliveryDate, o.CurrencyCode, o.PaymentTermsCode, o.Total, string(o.Status), o.CreatedBy,
			formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert sales order: %w", err)
		}
		for _, l := range o.Lines {
			_, err := r.db.exec(ctx, tx,
				`INSERT INTO sales_order_lines (
				   sales_order_id, line_number, sku, description, quantity, unit_of_measure,
				   unit_price, total, delivery_date
				 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				o.ID.String(), l.LineNumber, l.SKU, l.Description, l.Quantity, l.UnitOfMeasure,
				l.UnitPrice, l.Total, l.DeliveryDate,
			)
			if err != nil {
				return fmt.Errorf("insert sales order line %d: %w", l.LineNumber, err)
			}
		}
		for _, ev := range o.Events {
			if err := r.insertEvent(ctx, tx, o.ID, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("repository.sales_order.create.failed", "sales_order_id", o.ID, "error", err)
		return err
	}
	return nil
}

const selectSalesOrder = `
SELECT id, document_id, customer_name, customer_tax_id, customer_order_number, order_date,
       delivery_date, currency_code, payment_terms_code, total, status, created_by,
       created_at, updated_at
FROM sales_orders`

// Get returns the order with its lines and event history.
func (r *salesOrderRepository) Get(ctx context.Context, id uuid.UUID) (*entity.SalesOrder, error) {
	o, err := scanSalesOrder(r.db.queryRow(ctx, r.db.sql, selectSalesOrder+` WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("Sales order not found")
	}
	if err != nil {
		r.logger.Error("repository.sales_order.get.failed", "sales_order_id", id, "error", err)
		return nil, err
	}

	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	events, err := r.events(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Events = events
	return o, nil
}

// List returns order headers newest first, without lines.
func (r *salesOrderRepository) List(ctx context.Context, f SalesOrderFilter) ([]entity.SalesOrder, error) {
	q := selectSalesOrder
	var args []any
	if f.Status != "" {
		q += " WHERE status = ?"
		args = append(args, f.Status)
	}
	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := r.db.query(ctx, r.db.sql, q, args...)
	if err != nil {
		r.logger.Error("repository.sales_order.list.failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.SalesOrder{}
	for rows.Next() {
		o, err := scanSalesOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *salesOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to constants.SalesOrderStatus, ev entity.SalesOrderEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.FromStatus, ev.ToStatus = from, to

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := r.db.exec(ctx, tx,
			`UPDATE sales_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), formatTime(ev.At), id.String(), string(from),
		)
		if err != nil {
			return fmt.Errorf("update sales order status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var count int
			if err := r.db.queryRow(ctx, tx, `SELECT COUNT(*) FROM sales_orders WHERE id = ?`, id.String()).Scan(&count); err != nil {
				return err
			}
			if count == 0 {
				return common.NotFound("Sales order not found")
			}
			return common.NewAppError("INVALID_TRANSITION",
				fmt.Sprintf("sales order is no longer %s", from), common.ErrInvalidTransition)
		}
		return r.insertEvent(ctx, tx, id, ev)
	})
	if err != nil && !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrInvalidTransition) {
		r.logger.Error("repository.sales_order.update_status.failed", "sales_order_id", id, "error", err)
	}
	return err
}

func (r *salesOrderRepository) insertEvent(ctx context.Context, q querier, id uuid.UUID, ev entity.SalesOrderEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	_, err := r.db.exec(ctx, q,
		`INSERT INTO sales_order_events (sales_order_id, from_status, to_status, actor, note, at) VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), string(ev.FromStatus), string(ev.ToStatus), ev.Actor, ev.Note, formatTime(ev.At),
	)
	if err != nil {
		return fmt.Errorf("insert sales order event: %w", err)
	}
	return nil
}

func (r *salesOrderRepository) lines(ctx context.Context, id uuid.UUID) ([]entity.SalesOrderLine, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT line_number, sku, description, quantity, unit_of_measure, unit_price, total, delivery_date
		 FROM sales_order_lines WHERE sales_order_id = ? ORDER BY line_number`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list sales order lines: %w", err)
	}
	defer rows.Close()

	out := []entity.SalesOrderLine{}
	for rows.Next() {
		var l entity.SalesOrderLine
		if err := rows.Scan(&l.LineNumber, &l.SKU, &l.Description, &l.Quantity, &l.UnitOfMeasure,
			&l.UnitPrice, &l.Total, &l.DeliveryDate); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *salesOrderRepository) events(ctx context.Context, id uuid.UUID) ([]entity.SalesOrderEvent, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT from_status, to_status, actor, note, at
		 FROM sales_order_events WHERE sales_order_id = ? ORDER BY id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list sales order events: %w", err)
	}
	defer rows.Close()

	out := []entity.SalesOrderEvent{}
	for rows.Next() {
		var (
			ev       entity.SalesOrderEvent
			from, to string
			at       string
		)
		if err := rows.Scan(&from, &to, &ev.Actor, &ev.Note, &at); err != nil {
			return nil, err
		}
		ev.FromStatus = constants.SalesOrderStatus(from)
		ev.ToStatus = constants.SalesOrderStatus(to)
		ev.At = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanSalesOrder(row rowScanner) (*entity.SalesOrder, error) {
	var (
		o                    entity.SalesOrder
		id, status           string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&id, &o.DocumentID, &o.CustomerName, &o.CustomerTaxID, &o.CustomerOrderNumber, &o.OrderDate,
		&o.DeliveryDate, &o.CurrencyCode, &o.PaymentTermsCode, &o.Total, &status, &o.CreatedBy,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse sales order id: %w", err)
	}
	o.ID = parsed
	o.Status = constants.SalesOrderStatus(status)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	o.Lines = []entity.SalesOrderLine{}
	return &o, nil
}
