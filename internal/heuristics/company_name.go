// Package heuristics guesses who sent a document when no parser model
// recognises it, so the configurator can suggest a new model.
package heuristics

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// CompanyNameGuess is the best candidate for the issuing company.
type CompanyNameGuess struct {
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
}

var (
	labelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)raz[aã]o\s+social\s*[:\-]\s*(.+)`),
		regexp.MustCompile(`(?i)cliente\s*[:\-]\s*(.+)`),
		regexp.MustCompile(`(?i)comprador\s*[:\-]\s*(.+)`),
		regexp.MustCompile(`(?i)destinat[aá]rio\s*[:\-]\s*(.+)`),
		regexp.MustCompile(`(?i)nome\s+fantasia\s*[:\-]\s*(.+)`),
	}
	companySuffixRe = regexp.MustCompile(`\b(ltda|s\.a\.|sa|eireli|me)\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	taxPrefixRe     = regexp.MustCompile(`(?i)^(cnpj|cpf)\s*[:\-]?`)
	slugRe          = regexp.MustCompile(`[^a-z0-9]+`)
)

// Where a guess came from.
const (
	SourceLabel       = "label"
	SourceHeader      = "header"
	SourceCNPJContext = "cnpj_context"
)

const (
	labelConfidence  = 0.75
	headerConfidence = 0.5
	cnpjConfidence   = 0.4
	maxSnippet       = 120
	maxSlug          = 40
)

// GuessCompanyName tries labelled fields first ("Razão Social:", "Cliente:"),
// then upper-case header lines that look like a company, then the line above
// the first CNPJ.
func GuessCompanyName(text string) CompanyNameGuess {
	if text == "" {
		return CompanyNameGuess{}
	}
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	for _, re := range labelPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := cleanName(m[1]); name != "" {
			return CompanyNameGuess{Name: name, Confidence: labelConfidence, Source: SourceLabel, Snippet: utils.Truncate(m[0], maxSnippet)}
		}
	}

	for i, l := range lines {
		if i >= 10 {
			break
		}
		if len(l) > 5 && isUpper(l) && companySuffixRe.MatchString(strings.ToLower(l)) {
			return CompanyNameGuess{Name: cleanName(l), Confidence: headerConfidence, Source: SourceHeader, Snippet: l}
		}
	}

	for i, l := range lines {
		if i > 0 && strings.Contains(strings.ToLower(l), "cnpj") {
			if name := cleanName(lines[i-1]); name != "" {
				return CompanyNameGuess{Name: name, Confidence: cnpjConfidence, Source: SourceCNPJContext, Snippet: lines[i-1]}
			}
		}
	}
	return CompanyNameGuess{}
}

// SuggestModelName turns a company name into a model slug, or a timestamped
// placeholder when there is nothing to slug.
func SuggestModelName(name string, now time.Time) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(utils.FoldAccents(name)), "-"), "-")
	if slug != "" {
		if len(slug) > maxSlug {
			slug = slug[:maxSlug]
		}
		return slug
	}
	return "custom-" + now.UTC().Format("20060102150405")
}

func cleanName(v string) string {
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(v, " "))
	cleaned = strings.TrimSpace(taxPrefixRe.ReplaceAllString(cleaned, ""))
	if len([]rune(cleaned)) < 3 {
		return ""
	}
	return cleaned
}

func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
