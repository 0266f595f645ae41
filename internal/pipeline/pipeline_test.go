package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
	"github.com/joseph-ayodele/order-parser/internal/workflow"
)

func sp(s string) *string    { return &s }
func fp(f float64) *float64 { return &f }

type fakeWorkflow struct {
	out   entity.LegacyOutput
	err   error
	calls int
	last  workflow.Input
}

func (f *fakeWorkflow) Parse(_ context.Context, in workflow.Input) (entity.LegacyOutput, error) {
	f.calls++
	f.last = in
	return f.out, f.err
}

func sampleOutput() entity.LegacyOutput {
	res := entity.EmptyParseResult()
	res.Order.CustomerOrderNumber = sp("4500123")
	res.Order.OrderDate = sp("2024-01-15")
	res.Order.SellTo = entity.Party{Name: sp("Frigorifico Exemplo Ltda"), CNPJ: sp("12345678000190")}
	res.Lines = []entity.Line{{
		ItemReferenceNo:  sp("133510"),
		Description:      sp("FILE PEITO"),
		Quantity:         fp(10),
		UnitOfMeasure:    sp("KG"),
		UnitPriceExclVAT: fp(12.5),
	}}
	return entity.LegacyOutput{
		Result:       res,
		Warnings:     []string{},
		DocumentType: constants.DocTypePurchaseOrder,
	}
}

func testMappings() *mappings.Config {
	m := mappings.Default()
	m.MyCompany.CNPJs = []string{"11111111000111"}
	return m
}

func newContext(text string) *Context {
	det := parsers.ParseAll(text)
	m := testMappings()
	pctx := &Context{Input: TextInput(text), RawText: text, Deterministic: det}
	for _, c := range det.CNPJs {
		if !m.IsMyCompanyCNPJ(c) {
			pctx.CustomerCNPJs = append(pctx.CustomerCNPJs, c)
		}
	}
	return pctx
}

func acmeModel() ModelDefinition {
	return ModelDefinition{
		ID:            "acme",
		Label:         "Acme",
		ParserKey:     constants.ParserLegacyWorkflow,
		NormalizerKey: constants.NormalizerCanonicalV1,
		Version:       "v1",
		Status:        StatusActive,
		Enabled:       true,
		Detection: entity.DetectionRules{
			Keywords:      []string{"ordem de compra"},
			CustomerCNPJs: []string{"12.345.678/0001-90"},
		},
	}
}

type memLogs struct {
	mu      sync.Mutex
	created []*entity.ProcessingLog
	updates map[string][]entity.ProcessingLogUpdate
}

func (m *memLogs) Create(_ context.Context, l *entity.ProcessingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, l)
	return nil
}

func (m *memLogs) Update(_ context.Context, id string, upd entity.ProcessingLogUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = map[string][]entity.ProcessingLogUpdate{}
	}
	m.updates[id] = append(m.updates[id], upd)
	return nil
}

func (m *memLogs) lastUpdate(id string) entity.ProcessingLogUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	ups := m.updates[id]
	if len(ups) == 0 {
		return entity.ProcessingLogUpdate{}
	}
	return ups[len(ups)-1]
}

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*entity.ParsedDocument
}

func (m *memDocs) Upsert(_ context.Context, d *entity.ParsedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string]*entity.ParsedDocument{}
	}
	m.docs[d.DocumentID] = d
	return nil
}

type runnerFixture struct {
	runner *Runner
	wf     *fakeWorkflow
	logs   *memLogs
	docs   *memDocs
	audit  *MemoryAuditLogger
}

func newRunnerFixture(models ...ModelDefinition) *runnerFixture {
	f := &runnerFixture{
		wf:    &fakeWorkflow{out: sampleOutput()},
		logs:  &memLogs{},
		docs:  &memDocs{},
		audit: &MemoryAuditLogger{},
	}
	m := testMappings()
	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	f.runner = NewRunner(
		NewRuleBasedDetector(nil),
		NewMemoryRegistry(models...),
		DefaultParserRegistry(f.wf, "test"),
		DefaultNormalizerRegistry(m, nil),
		nil,
		WithMappings(m),
		WithStores(f.logs, f.docs),
		WithAuditLogger(f.audit),
		WithParserVersion("test"),
		WithClock(func() time.Time { return clock }),
	)
	return f
}
