package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "parse.jsonl")
	l, err := NewJSONLAuditLogger(path)
	require.NoError(t, err)

	require.NoError(t, l.Log(context.Background(), AuditRecord{ModelID: "acme", DocumentType: "purchase_order"}))
	require.NoError(t, l.Log(context.Background(), AuditRecord{ModelID: "generic", Warnings: []string{"w"}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []AuditRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec AuditRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		recs = append(recs, rec)
	}
	require.Len(t, recs, 2)
	assert.Equal(t, "acme", recs[0].ModelID)
	assert.NotEmpty(t, recs[0].Timestamp)
	assert.Equal(t, []string{}, recs[0].Warnings)
	assert.Equal(t, []string{"w"}, recs[1].Warnings)
}

func TestNewAuditLogger_EmptyPathIsNoop(t *testing.T) {
	l, err := NewAuditLogger("")
	require.NoError(t, err)
	assert.IsType(t, NoopAuditLogger{}, l)
	assert.NoError(t, l.Log(context.Background(), AuditRecord{}))
}
