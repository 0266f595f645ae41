package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/order-parser/internal/entity"
)

func nullable(t string) map[string]any {
	return map[string]any{"type": []any{t, "null"}}
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{"type": "object", "required": required, "properties": props}
}

func addressSchema() map[string]any {
	props := map[string]any{}
	for _, k := range []string{"line1", "number", "complement", "district", "city", "state", "zip", "country"} {
		props[k] = nullable("string")
	}
	return object([]string{}, props)
}

// DocumentSchema describes a canonical document as JSON Schema.
func DocumentSchema() map[string]any {
	item := object([]string{"line_number"}, map[string]any{
		"line_number":   map[string]any{"type": "integer"},
		"sku":           nullable("string"),
		"description":   nullable("string"),
		"quantity":      nullable("number"),
		"unit":          nullable("string"),
		"unit_price":    nullable("number"),
		"discount":      nullable("number"),
		"tax":           nullable("number"),
		"total":         nullable("number"),
		"delivery_date": nullable("string"),
		"raw":           map[string]any{"type": "object"},
	})

	return object(
		[]string{"schema_version", "document", "customer", "order", "addresses", "items", "totals", "parsing"},
		map[string]any{
			"schema_version": map[string]any{"const": entity.CanonicalSchemaVersion},
			"document": object([]string{"id", "type", "source", "model"}, map[string]any{
				"id":   map[string]any{"type": "string", "minLength": 1},
				"type": map[string]any{"enum": []any{"order", "budget", "unknown"}},
				"source": object([]string{"mime_type", "file_type", "ingested_at"}, map[string]any{
					"filename":    nullable("string"),
					"mime_type":   map[string]any{"type": "string"},
					"file_type":   map[string]any{"type": "string"},
					"hash_sha256": nullable("string"),
					"ingested_at": map[string]any{"type": "string"},
				}),
				"model": object([]string{"name", "detected_by", "confidence"}, map[string]any{
					"name":        map[string]any{"type": "string"},
					"detected_by": map[string]any{"enum": []any{"rule", "manual", "configurator", "unknown"}},
					"confidence":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				}),
			}),
			"customer": object([]string{"contacts"}, map[string]any{
				"name":   nullable("string"),
				"tax_id": nullable("string"),
				"code":   nullable("string"),
				"contacts": map[string]any{"type": "array", "items": object([]string{"type", "value"}, map[string]any{
					"type":  map[string]any{"enum": []any{"email", "phone", "person"}},
					"value": map[string]any{"type": "string"},
				})},
			}),
			"order": object([]string{"currency"}, map[string]any{
				"order_number": nullable("string"),
				"issue_date":   nullable("string"),
				"currency":     map[string]any{"enum": []any{"BRL", "USD", "EUR", "UNKNOWN"}},
			}),
			"addresses": object([]string{"billing", "shipping"}, map[string]any{
				"billing":  addressSchema(),
				"shipping": addressSchema(),
			}),
			"items":  map[string]any{"type": "array", "items": item},
			"totals": map[string]any{"type": "object"},
			"parsing": object([]string{"status", "warnings", "missing_fields", "parsed_at"}, map[string]any{
				"status":         map[string]any{"enum": []any{"success", "partial", "failed"}},
				"warnings":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"missing_fields": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"parsed_at":      map[string]any{"type": "string"},
			}),
		},
	)
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(DocumentSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("canonical.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return c.Compile("canonical.json")
})

// Validate checks a document against DocumentSchema.
func Validate(doc *entity.CanonicalDocument) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("canonical document does not match schema: %w", err)
	}
	return nil
}
