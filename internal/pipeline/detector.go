package pipeline

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

// Detection rule weights.
const (
	scoreKeyword       = 2
	scoreCustomerName  = 2
	scoreCustomerCNPJ  = 3
	scoreHeaderRegex   = 2
	scoreRequiredField = 1

	headerLines = 20
)

// Detector picks the model that best matches a document.
type Detector interface {
	Detect(pctx *Context, models []ModelDefinition) Detection
}

// RuleBasedDetector scores every active model against its detection rules.
// Each rule kind counts once however many of its entries match, except
// required fields which score one point each.
type RuleBasedDetector struct {
	logger *slog.Logger
}

func NewRuleBasedDetector(logger *slog.Logger) *RuleBasedDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleBasedDetector{logger: logger}
}

func (d *RuleBasedDetector) Detect(pctx *Context, models []ModelDefinition) Detection {
	text := strings.ToLower(pctx.RawText)
	header := headerOf(pctx.RawText)
	cnpjs := map[string]struct{}{}
	for _, c := range pctx.CustomerCNPJs {
		cnpjs[c] = struct{}{}
	}
	for _, c := range pctx.Deterministic.CNPJs {
		cnpjs[c] = struct{}{}
	}

	var best *Detection
	fallbackID := ""
	for _, m := range models {
		if !m.Active() {
			continue
		}
		if m.IsFallback() {
			fallbackID = m.ID
		}
		det, ok := d.score(m, text, header, cnpjs)
		if ok && (best == nil || det.Confidence > best.Confidence) {
			best = &det
		}
	}
	if best != nil {
		return *best
	}

	if fallbackID == "" {
		fallbackID = "unknown"
		if len(models) > 0 {
			fallbackID = models[0].ID
		}
	}
	return Detection{
		ModelID:    fallbackID,
		Confidence: 0,
		Reasons:    []string{ReasonNoMatch},
		Evidence:   []Evidence{{Type: "fallback", Value: fallbackID, Score: 0}},
	}
}

func (d *RuleBasedDetector) score(m ModelDefinition, text, header string, cnpjs map[string]struct{}) (Detection, bool) {
	rules := m.Detection
	keywords := lowerNonEmpty(rules.Keywords)
	names := lowerNonEmpty(rules.CustomerNames)
	required := lowerNonEmpty(rules.RequiredFields)
	var ruleCNPJs []string
	for _, c := range rules.CustomerCNPJs {
		if digits := parsers.DigitsOnly(c); digits != "" {
			ruleCNPJs = append(ruleCNPJs, digits)
		}
	}
	var headerRes []string
	for _, r := range rules.HeaderRegex {
		if strings.TrimSpace(r) != "" {
			headerRes = append(headerRes, r)
		}
	}

	maxScore := len(required) * scoreRequiredField
	if len(keywords) > 0 {
		maxScore += scoreKeyword
	}
	if len(names) > 0 {
		maxScore += scoreCustomerName
	}
	if len(ruleCNPJs) > 0 {
		maxScore += scoreCustomerCNPJ
	}
	if len(headerRes) > 0 {
		maxScore += scoreHeaderRegex
	}

	det := Detection{ModelID: m.ID, Reasons: []string{}, Evidence: []Evidence{}}
	score := 0
	add := func(kind, prefix string, weight int, matches []string) {
		if len(matches) == 0 {
			return
		}
		score += weight
		for _, v := range matches {
			det.Reasons = append(det.Reasons, prefix+":"+v)
			det.Evidence = append(det.Evidence, Evidence{Type: kind, Value: v, Score: float64(weight)})
		}
	}

	add("keyword", "keyword", scoreKeyword, containedIn(text, keywords))
	add("name", "name", scoreCustomerName, containedIn(text, names))

	var cnpjHits []string
	for _, c := range ruleCNPJs {
		if _, ok := cnpjs[c]; ok {
			cnpjHits = append(cnpjHits, c)
		}
	}
	add("cnpj", "cnpj", scoreCustomerCNPJ, cnpjHits)

	var headerHits []string
	for _, expr := range headerRes {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			d.logger.Warn("pipeline.detect.bad_header_regex", "model", m.ID, "regex", expr, "error", err)
			continue
		}
		if re.MatchString(header) {
			headerHits = append(headerHits, expr)
		}
	}
	add("header_regex", "header_regex", scoreHeaderRegex, headerHits)

	for _, f := range containedIn(text, required) {
		add("required_field", "required_field", scoreRequiredField, []string{f})
	}

	if score <= 0 {
		return Detection{}, false
	}
	det.Confidence = min(1.0, float64(score)/float64(max(maxScore, 1)))
	return det, true
}

func headerOf(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > headerLines {
		lines = lines[:headerLines]
	}
	return strings.ToLower(strings.Join(lines, "\n"))
}

func lowerNonEmpty(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.ToLower(strings.TrimSpace(x)); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func containedIn(text string, needles []string) []string {
	var hits []string
	for _, n := range needles {
		if strings.Contains(text, n) {
			hits = append(hits, n)
		}
	}
	return hits
}
