package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/export"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
	"github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/salesorder"
	"github.com/joseph-ayodele/order-parser/internal/services/models"
)

func init() { gin.SetMode(gin.TestMode) }

func sp(s string) *string    { return &s }
func fp(f float64) *float64 { return &f }

type fakeRunner struct {
	last pipeline.Input
	out  pipeline.Output
	err  error
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.Input) (pipeline.Output, error) {
	f.last = in
	return f.out, f.err
}

func (f *fakeRunner) Detect(_ context.Context, in pipeline.Input) (pipeline.Detection, *pipeline.Context, error) {
	f.last = in
	return f.out.Detection, &pipeline.Context{Input: in}, f.err
}

func (f *fakeRunner) Preview(_ context.Context, in pipeline.Input) (pipeline.Preview, error) {
	f.last = in
	return pipeline.Preview{Detection: f.out.Detection, NeedsConfiguration: f.out.Detection.Confidence < 0.6}, f.err
}

type fixture struct {
	router *gin.Engine
	runner *fakeRunner
	logs   repository.ProcessingLogRepository
	docs   repository.ParsedDocumentRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{SQLitePath: filepath.Join(t.TempDir(), "api.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	logs := repository.NewProcessingLogRepository(db, logger)
	docs := repository.NewParsedDocumentRepository(db, logger)
	runner := &fakeRunner{out: pipeline.Output{
		Legacy: entity.LegacyOutput{Result: &entity.ParseResult{
			Order: entity.Order{CustomerOrderNumber: sp("4500123")},
			Lines: []entity.Line{{Description: sp("Caixa"), Quantity: fp(2)}},
		}},
		Warnings:     []string{"w1"},
		DocumentType: "purchase_order",
		ModelID:      "generic",
		DocumentID:   "doc-1",
		Detection:    pipeline.Detection{ModelID: "generic", Confidence: 0.4, Reasons: []string{"no_match"}},
	}}

	router := NewRouter(Deps{
		Runner:      runner,
		Models:      models.NewService(repository.NewParserModelRepository(db, logger), logger),
		Logs:        logs,
		Documents:   docs,
		SalesOrders: salesorder.NewService(repository.NewSalesOrderRepository(db, logger), docs, logger),
		Export:      export.NewService(logs, docs, logger),
		Logger:      logger,
	})
	return &fixture{router: router, runner: runner, logs: logs, docs: docs}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

func TestHealthAndMiddleware(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/parse", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	pre := httptest.NewRecorder()
	f.router.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "http://localhost:3000", pre.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseText(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/parse/text", gin.H{"text": "PEDIDO 4500123", "model": "lar"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "4500123", resp["order"].(map[string]any)["customer_order_number"])
	assert.Len(t, resp["lines"], 1)
	assert.Equal(t, []any{"w1"}, resp["warnings"])
	assert.Equal(t, "purchase_order", resp["document_type"])
	assert.Equal(t, []any{}, resp["split_orders"])
	assert.Equal(t, false, resp["has_multiple_dates"])
	assert.Equal(t, "doc-1", resp["document_id"])
	assert.Equal(t, "generic", resp["model_name"])
	assert.InDelta(t, 0.4, resp["model_confidence"], 1e-9)

	assert.Equal(t, constants.InputText, f.runner.last.InputType)
	assert.Equal(t, "lar", f.runner.last.ModelOverride)
	assert.Equal(t, constants.TriggeredByAPI, f.runner.last.TriggeredBy)
}

func TestParseValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/parse/text", gin.H{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Text content is required", decodeDetail(t, w))

	w = f.do(t, http.MethodPost, "/parse", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Either a PDF file or text must be provided", decodeDetail(t, w))

	body, ct := multipartBody(t, nil, "pedido.docx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/parse", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only PDF files are supported", decodeDetail(t, w))
}

func TestParsePDFUpload(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, map[string]string{"model": "brf"}, "Pedido.PDF", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/parse", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, constants.InputPDF, f.runner.last.InputType)
	assert.Equal(t, []byte("%PDF-1.4"), f.runner.last.Data)
	assert.Equal(t, "Pedido.PDF", *f.runner.last.SourceName)
	assert.Equal(t, "brf", f.runner.last.ModelOverride)
}

func TestParseFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("llm unavailable")
	w := f.do(t, http.MethodPost, "/parse", gin.H{"text": "pedido"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error processing order: llm unavailable", decodeDetail(t, w))
}

func TestModelsCRUD(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/models", gin.H{
		"name":            "acme",
		"display_name":    "Acme Ltda",
		"detection_rules": gin.H{"keywords": []string{"ordem de compra"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/models", gin.H{"name": "acme"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Model already exists", decodeDetail(t, w))

	w = f.do(t, http.MethodGet, "/models/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Model not found", decodeDetail(t, w))

	w = f.do(t, http.MethodPut, "/models/acme", gin.H{"detection_rules": gin.H{"keywords": []string{"pedido"}}})
	require.Equal(t, http.StatusOK, w.Code)
	var m entity.ParserModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "v2", m.CurrentVersion.Version)

	w = f.do(t, http.MethodPost, "/models/acme/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.False(t, m.Active)

	w = f.do(t, http.MethodPost, "/models/acme/activate", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.True(t, m.Active)

	w = f.do(t, http.MethodGet, "/models", nil)
	var list []entity.ParserModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestDetectAndPreview(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/models/detect/text", gin.H{"text": "ordem de compra"})
	require.Equal(t, http.StatusOK, w.Code)
	var det pipeline.Detection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &det))
	assert.Equal(t, "generic", det.ModelID)

	body, ct := multipartBody(t, map[string]string{"text_form": "ordem de compra"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/models/detect", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ordem de compra", string(f.runner.last.Data))

	w = f.do(t, http.MethodPost, "/models/preview/text", gin.H{"text": "ordem de compra"})
	require.Equal(t, http.StatusOK, w.Code)
	var p map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, true, p["needs_configuration"])

	w = f.do(t, http.MethodPost, "/models/preview/text", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogsEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"lar_pedido.pdf", "brf_pedido.pdf"} {
		st := started.Add(time.Duration(i) * time.Hour)
		require.NoError(t, f.logs.Create(ctx, &entity.ProcessingLog{
			ID: name, Filename: sp(name), Status: sp("success"), StartedAt: &st,
		}))
	}

	w := f.do(t, http.MethodGet, "/logs?filename=lar&date_from=2024-03-10&date_to=2024-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []entity.ProcessingLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "lar_pedido.pdf", logs[0].ID)

	w = f.do(t, http.MethodGet, "/logs?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/logs?date_from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/logs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Log not found", decodeDetail(t, w))

	w = f.do(t, http.MethodGet, "/logs/brf_pedido.pdf", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/logs/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "processing_logs.xlsx")
	x, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("Processing Logs")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func storeDocument(t *testing.T, f *fixture, id string, status constants.ParsingStatus) {
	t.Helper()
	canon, err := json.Marshal(entity.CanonicalDocument{
		SchemaVersion: entity.CanonicalSchemaVersion,
		Customer:      entity.CustomerInfo{Name: sp("Frigorifico Exemplo")},
		Order:         entity.OrderInfo{OrderNumber: sp("4500123")},
		Items:         []entity.Item{{LineNumber: 1, Description: sp("Caixa"), Quantity: fp(2), UnitPrice: fp(10)}},
		Parsing:       entity.ParsingMetadata{Status: status},
	})
	require.NoError(t, err)
	require.NoError(t, f.docs.Upsert(context.Background(), &entity.ParsedDocument{
		DocumentID:    id,
		SchemaVersion: sp(entity.CanonicalSchemaVersion),
		Status:        sp(string(status)),
		Canonical:     canon,
	}))
}

func TestDocumentsEndpoints(t *testing.T) {
	f := newFixture(t)
	storeDocument(t, f, "doc-1", constants.ParsingStatusSuccess)

	w := f.do(t, http.MethodGet, "/documents/doc-1/parsed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var c entity.CanonicalDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, "4500123", *c.Order.OrderNumber)

	w = f.do(t, http.MethodGet, "/documents/doc-1/parsed/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=doc-1.json", w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "\n  \"schema_version\"")

	w = f.do(t, http.MethodGet, "/documents/missing/parsed", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Parsed document not found", decodeDetail(t, w))

	w = f.do(t, http.MethodGet, "/documents/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	w = f.do(t, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var docs []entity.ParsedDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	assert.Len(t, docs, 1)
}

func TestSalesOrderWorkflow(t *testing.T) {
	f := newFixture(t)
	storeDocument(t, f, "doc-1", constants.ParsingStatusSuccess)

	w := f.do(t, http.MethodPost, "/sales-orders", gin.H{"document_id": "doc-1", "actor": "ana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var so entity.SalesOrder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &so))
	assert.Equal(t, constants.SalesOrderDraft, so.Status)
	id := so.ID.String()

	w = f.do(t, http.MethodPost, "/sales-orders/"+id+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/sales-orders/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/sales-orders/"+id+"/reject", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/sales-orders/"+id+"/reject", gin.H{"reason": "wrong price", "actor": "bruno"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &so))
	assert.Equal(t, constants.SalesOrderRejected, so.Status)

	w = f.do(t, http.MethodPost, "/sales-orders/"+id+"/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/sales-orders/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &so))
	assert.Equal(t, constants.SalesOrderDraft, so.Status)
	assert.Len(t, so.Events, 3)

	w = f.do(t, http.MethodGet, "/sales-orders?status=draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []entity.SalesOrder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = f.do(t, http.MethodGet, "/sales-orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/sales-orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/sales-orders", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
