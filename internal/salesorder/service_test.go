package salesorder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
)

func sp(s string) *string    { return &s }
func fp(f float64) *float64 { return &f }

type fixture struct {
	svc  *Service
	docs repository.ParsedDocumentRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{SQLitePath: filepath.Join(t.TempDir(), "orders.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	docs := repository.NewParsedDocumentRepository(db, logger)
	return &fixture{
		svc:  NewService(repository.NewSalesOrderRepository(db, logger), docs, logger),
		docs: docs,
	}
}

func (f *fixture) storeCanonical(t *testing.T, id string, status constants.ParsingStatus) {
	t.Helper()
	doc := entity.CanonicalDocument{
		SchemaVersion: entity.CanonicalSchemaVersion,
		Customer:      entity.CustomerInfo{Name: sp("Frigorifico Exemplo"), TaxID: sp("12345678000190")},
		Order: entity.OrderInfo{
			OrderNumber: sp("4500123"),
			IssueDate:   sp("2024-01-15"),
			Currency:    constants.CurrencyBRL,
		},
		Items: []entity.Item{
			{LineNumber: 1, SKU: sp("133510"), Quantity: fp(10), UnitPrice: fp(12.5)},
			{LineNumber: 2, SKU: sp("200100"), Quantity: fp(2), UnitPrice: fp(30), Total: fp(60)},
		},
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	s := string(status)
	require.NoError(t, f.docs.Upsert(context.Background(), &entity.ParsedDocument{DocumentID: id, Status: &s, Canonical: b}))
}

func TestCreateFromDocument_Canonical(t *testing.T) {
	f := newFixture(t)
	f.storeCanonical(t, "doc-1", constants.ParsingStatusSuccess)

	o, err := f.svc.CreateFromDocument(context.Background(), "doc-1", sp("ana"))
	require.NoError(t, err)

	assert.Equal(t, constants.SalesOrderDraft, o.Status)
	assert.Equal(t, "doc-1", *o.DocumentID)
	assert.Equal(t, "Frigorifico Exemplo", *o.CustomerName)
	assert.Equal(t, "BRL", *o.CurrencyCode)
	require.Len(t, o.Lines, 2)
	assert.InDelta(t, 125.0, *o.Lines[0].Total, 1e-9)
	assert.InDelta(t, 185.0, *o.Total, 1e-9)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
}

func TestCreateFromDocument_LegacyPayload(t *testing.T) {
	f := newFixture(t)
	res := entity.ParseResult{
		Order: entity.Order{CustomerOrderNumber: sp("77"), SellTo: entity.Party{Name: sp("BRF S.A.")}},
		Lines: []entity.Line{{ItemReferenceNo: sp("1"), Quantity: fp(3), UnitPriceExclVAT: fp(2)}},
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.NoError(t, f.docs.Upsert(context.Background(), &entity.ParsedDocument{DocumentID: "doc-legacy", Status: sp("success"), Canonical: b}))

	o, err := f.svc.CreateFromDocument(context.Background(), "doc-legacy", nil)
	require.NoError(t, err)
	assert.Equal(t, "77", *o.CustomerOrderNumber)
	assert.Equal(t, "BRF S.A.", *o.CustomerName)
	assert.InDelta(t, 6.0, *o.Total, 1e-9)
}

func TestCreateFromDocument_Errors(t *testing.T) {
	f := newFixture(t)
	f.storeCanonical(t, "doc-failed", constants.ParsingStatusFailed)

	_, err := f.svc.CreateFromDocument(context.Background(), "", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = f.svc.CreateFromDocument(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.svc.CreateFromDocument(context.Background(), "doc-failed", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.storeCanonical(t, "doc-1", constants.ParsingStatusSuccess)
	o, err := f.svc.CreateFromDocument(ctx, "doc-1", nil)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, o.ID, sp("ana"))
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "draft cannot be approved")

	o, err = f.svc.Submit(ctx, o.ID, sp("ana"))
	require.NoError(t, err)
	assert.Equal(t, constants.SalesOrderSubmitted, o.Status)

	_, err = f.svc.Reject(ctx, o.ID, sp("bia"), "  ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	o, err = f.svc.Reject(ctx, o.ID, sp("bia"), "preco errado")
	require.NoError(t, err)
	assert.Equal(t, constants.SalesOrderRejected, o.Status)

	o, err = f.svc.Reopen(ctx, o.ID, sp("ana"))
	require.NoError(t, err)
	assert.Equal(t, constants.SalesOrderDraft, o.Status)

	o, err = f.svc.Submit(ctx, o.ID, nil)
	require.NoError(t, err)
	o, err = f.svc.Approve(ctx, o.ID, sp("bia"))
	require.NoError(t, err)
	assert.Equal(t, constants.SalesOrderApproved, o.Status)

	_, err = f.svc.Reopen(ctx, o.ID, nil)
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "approved is final")

	require.Len(t, o.Events, 5)
	assert.Equal(t, "preco errado", *o.Events[1].Note)
	assert.Equal(t, constants.SalesOrderRejected, o.Events[1].ToStatus)

	_, err = f.svc.Submit(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_ValidatesStatus(t *testing.T) {
	f := newFixture(t)
	f.storeCanonical(t, "doc-1", constants.ParsingStatusSuccess)
	_, err := f.svc.CreateFromDocument(context.Background(), "doc-1", nil)
	require.NoError(t, err)

	drafts, err := f.svc.List(context.Background(), repository.SalesOrderFilter{Status: "draft"})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	_, err = f.svc.List(context.Background(), repository.SalesOrderFilter{Status: "shipped"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestServiceLogsDottedEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	db, err := repository.Open(context.Background(), repository.Config{SQLitePath: filepath.Join(t.TempDir(), "orders.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	docs := repository.NewParsedDocumentRepository(db, logger)
	f := &fixture{svc: NewService(repository.NewSalesOrderRepository(db, logger), docs, logger), docs: docs}
	f.storeCanonical(t, "doc-log", constants.ParsingStatusSuccess)

	o, err := f.svc.CreateFromDocument(context.Background(), "doc-log", sp("ana"))
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), o.ID, sp("ana"))
	require.NoError(t, err)

	var msgs []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec struct {
			Msg string `json:"msg"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		assert.NotContains(t, rec.Msg, " ", "log message %q is not an event name", rec.Msg)
		msgs = append(msgs, rec.Msg)
	}
	assert.Contains(t, msgs, "salesorder.create.ok")
	assert.Contains(t, msgs, "salesorder.transition.ok")
	assert.Contains(t, msgs, "repository.db.connect.ok")
}
