package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

// SanitizeExtraction coerces a model reply toward the order schema:
//   - numbers in string fields become strings, blank strings become null
//   - "1.234,56" in numeric line fields becomes 1234.56
//   - payment_terms_days accepts "060" or 60.0
//   - unknown keys and non-object lines are dropped
//
// It returns the rewritten JSON and a list of the adjustments made.
func SanitizeExtraction(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	note := func(s string) { changed = append(changed, s) }

	order, ok := m["order"].(map[string]any)
	if !ok {
		order = map[string]any{}
		note("order(missing)")
	}
	order = sanitizeObject(order, fieldKinds{text: orderStringFields, ints: []string{"payment_terms_days"}}, "order.", note)
	out := map[string]any{"order": order}

	lines := []any{}
	rawLines, _ := m["lines"].([]any)
	if _, isList := m["lines"].([]any); !isList && m["lines"] != nil {
		note("lines(type)")
	}
	for i, l := range rawLines {
		obj, ok := l.(map[string]any)
		if !ok {
			note(fmt.Sprintf("lines[%d](type)", i))
			continue
		}
		lines = append(lines, sanitizeObject(obj, fieldKinds{text: lineStringFields, numbers: lineNumberFields}, fmt.Sprintf("lines[%d].", i), note))
	}
	out["lines"] = lines

	for k := range m {
		if k != "order" && k != "lines" {
			note(k + "(unknown)")
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.extract.sanitize", "changed", changed)
	}
	return b, changed, nil
}

type fieldKinds struct {
	text    []string
	numbers []string
	ints    []string
}

func sanitizeObject(in map[string]any, kinds fieldKinds, prefix string, note func(string)) map[string]any {
	coercers := map[string]func(any, string, func(string)) any{}
	for _, f := range kinds.text {
		coercers[f] = coerceString
	}
	for _, f := range kinds.numbers {
		coercers[f] = coerceNumber
	}
	for _, f := range kinds.ints {
		coercers[f] = coerceInt
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		coerce, ok := coercers[k]
		if !ok {
			note(prefix + k + "(unknown)")
			continue
		}
		out[k] = coerce(v, prefix+k, note)
	}
	return out
}

func coerceString(v any, key string, note func(string)) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			if t != "" {
				note(key + "(empty)")
			}
			return nil
		}
		return s
	case float64:
		note(key + "(number)")
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		note(key + "(bool)")
		return strconv.FormatBool(t)
	default:
		note(key + "(type)")
		return nil
	}
}

func coerceNumber(v any, key string, note func(string)) any {
	switch t := v.(type) {
	case nil, float64:
		return t
	case string:
		if f, ok := parsers.ParseDecimal(t); ok {
			note(key + "(string)")
			return f
		}
		note(key + "(unparseable)")
		return nil
	default:
		note(key + "(type)")
		return nil
	}
}

func coerceInt(v any, key string, note func(string)) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		if t != math.Trunc(t) || t < 0 {
			note(key + "(fraction)")
			return int(math.Round(math.Abs(t)))
		}
		return int(t)
	case string:
		d := parsers.DigitsOnly(t)
		if n, err := strconv.Atoi(d); err == nil {
			note(key + "(string)")
			return n
		}
		note(key + "(unparseable)")
		return nil
	default:
		note(key + "(type)")
		return nil
	}
}
