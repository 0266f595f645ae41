package pipeline

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/heuristics"
)

// Preview is what the model configurator shows for an unknown document.
type Preview struct {
	Detection            Detection                   `json:"detected"`
	SuggestedModelName   string                      `json:"suggested_model_name"`
	SuggestedDisplayName *string                     `json:"suggested_display_name"`
	CompanyGuess         heuristics.CompanyNameGuess `json:"company_guess"`
	Document             *entity.CanonicalDocument   `json:"preview"`
	NeedsConfiguration   bool                        `json:"needs_configuration"`
}

// Preview parses in with the generic workflow and suggests a model for it.
// Nothing is persisted.
func (r *Runner) Preview(ctx context.Context, in Input) (Preview, error) {
	det, pctx, err := r.Detect(ctx, in)
	if err != nil {
		return Preview{}, err
	}

	parser, err := r.parsers.Create(constants.ParserLegacyWorkflow)
	if err != nil {
		return Preview{}, err
	}
	parsed, err := parser.Parse(ctx, pctx)
	if err != nil {
		return Preview{}, err
	}
	normalizer, err := r.normalizers.Create(constants.NormalizerCanonicalV1)
	if err != nil {
		return Preview{}, err
	}
	if parsed.Metadata.ModelName == "" {
		parsed.Metadata.ModelName = det.ModelID
	}
	conf := det.Confidence
	parsed.Metadata.Confidence = &conf
	out, err := normalizer.Normalize(ctx, parsed)
	if err != nil {
		return Preview{}, fmt.Errorf("normalize: %w", err)
	}

	guess := heuristics.GuessCompanyName(pctx.RawText)
	p := Preview{
		Detection:          det,
		SuggestedModelName: heuristics.SuggestModelName(guess.Name, r.now()),
		CompanyGuess:       guess,
		Document:           out.Canonical,
		NeedsConfiguration: det.Confidence < r.threshold,
	}
	if guess.Name != "" {
		name := guess.Name
		p.SuggestedDisplayName = &name
	}
	return p, nil
}
