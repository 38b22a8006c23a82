package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// Provider drafts tolerance thresholds and controls with an LLM. Its output
// is validated by the caller before anyone sees it.
type Provider struct {
	llmClient gollem.LLMClient
}

// New creates a suggestion provider with the provided LLM client
func New(llmClient gollem.LLMClient) (*Provider, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Provider{llmClient: llmClient}, nil
}

// SuggestThresholds drafts tolerance configurations for an indicator from
// its recent measurements, newest first
func (p *Provider) SuggestThresholds(ctx context.Context, indicator *model.Indicator, history []*model.Measurement) ([]model.ThresholdSuggestion, error) {
	text, err := p.generate(ctx, thresholdSystemPrompt, buildThresholdPrompt(indicator, history), thresholdSchema())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to suggest thresholds", goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	return parseThresholds(text)
}

// SuggestControls drafts controls that would reduce a risk, given the
// controls already linked to it
func (p *Provider) SuggestControls(ctx context.Context, risk *model.Risk, existing []*model.Control) ([]model.ControlSuggestion, error) {
	text, err := p.generate(ctx, controlSystemPrompt, buildControlPrompt(risk, existing), controlSchema())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to suggest controls", goerr.V(model.RiskIDKey, risk.ID))
	}
	return parseControls(text)
}

// generate runs one JSON-typed session and returns the first text part
func (p *Provider) generate(ctx context.Context, systemPrompt, userPrompt string, schema *gollem.Parameter) (string, error) {
	session, err := p.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("LLM returned no content")
	}
	return resp.Texts[0], nil
}

func parseThresholds(text string) ([]model.ThresholdSuggestion, error) {
	var resp thresholdResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", text))
	}
	results := make([]model.ThresholdSuggestion, 0, len(resp.Suggestions))
	for _, d := range resp.Suggestions {
		results = append(results, d.suggestion())
	}
	return results, nil
}

func parseControls(text string) ([]model.ControlSuggestion, error) {
	var resp controlResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", text))
	}
	results := make([]model.ControlSuggestion, 0, len(resp.Suggestions))
	for _, d := range resp.Suggestions {
		results = append(results, d.suggestion())
	}
	return results, nil
}

const thresholdSystemPrompt = `You are a risk analyst calibrating key risk indicator tolerances.
Propose up to three tolerance configurations for the indicator.

Threshold values by metric type:
- MAXIMUM: [green_bound, red_bound] ascending; above red is bad.
- MINIMUM: [red_bound, green_bound] ascending; below red is bad.
- RANGE: [lower, upper] or [outer_lower, inner_lower, inner_upper, outer_upper] strictly ascending.
- DIRECTIONAL: [allowed_change_pct, warning_fraction] with allowed_change_pct > 0 and 0 < warning_fraction < 1; set bad_direction to INCREASE, DECREASE or EITHER.

Base the bounds on the measurement history and explain each choice in the rationale.`

const controlSystemPrompt = `You are a risk analyst designing internal controls.
Propose up to three controls that would reduce the risk and do not duplicate the existing controls.

For each control give a type (PREVENTIVE, DETECTIVE or CORRECTIVE), the dimension it reduces
(LIKELIHOOD, IMPACT or BOTH) and a DIME score: design, implementation, monitoring and
evaluation each from 0 to 3. Score conservatively for a control that does not exist yet.`

func buildThresholdPrompt(indicator *model.Indicator, history []*model.Measurement) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Indicator %s\n\n", indicator.ID)
	fmt.Fprintf(&sb, "**Name:** %s\n", indicator.Name)
	if indicator.Description != "" {
		fmt.Fprintf(&sb, "**Description:** %s\n", indicator.Description)
	}
	fmt.Fprintf(&sb, "**Type:** %s\n", indicator.Type)
	fmt.Fprintf(&sb, "**Frequency:** %s\n", indicator.Frequency)
	if indicator.Unit != "" {
		fmt.Fprintf(&sb, "**Unit:** %s\n", indicator.Unit)
	}

	sb.WriteString("\n## Measurements (newest first)\n\n")
	if len(history) == 0 {
		sb.WriteString("No measurements recorded yet.\n")
	}
	for _, m := range history {
		fmt.Fprintf(&sb, "- %s %s: %g\n", m.RecordedAt.Format("2006-01-02"), m.PeriodLabel, m.Value)
	}

	return sb.String()
}

func buildControlPrompt(risk *model.Risk, existing []*model.Control) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Risk %s\n\n", risk.ID)
	fmt.Fprintf(&sb, "**Title:** %s\n", risk.Title)
	if risk.Description != "" {
		fmt.Fprintf(&sb, "**Description:** %s\n", risk.Description)
	}
	fmt.Fprintf(&sb, "**Category:** %s\n", risk.CategoryID)
	fmt.Fprintf(&sb, "**Inherent likelihood:** %d\n", risk.InherentLikelihood)
	fmt.Fprintf(&sb, "**Inherent impact:** %d\n", risk.InherentImpact)

	sb.WriteString("\n## Existing controls\n\n")
	if len(existing) == 0 {
		sb.WriteString("None.\n")
	}
	for _, c := range existing {
		fmt.Fprintf(&sb, "- %s (%s, %s): %s\n", c.Title, c.Type, c.Target, c.Description)
	}

	return sb.String()
}

func enumValues[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func thresholdSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "ThresholdSuggestionResponse",
		Description: "Tolerance configurations proposed for the indicator",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"suggestions": {
				Type:     gollem.TypeArray,
				Required: true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"name": {
							Type:        gollem.TypeString,
							Description: "Short name of the tolerance metric",
							Required:    true,
						},
						"metric_type": {
							Type:     gollem.TypeString,
							Enum:     enumValues(types.AllMetricTypes()),
							Required: true,
						},
						"values": {
							Type:        gollem.TypeArray,
							Description: "Ordered threshold values for the metric type",
							Items:       &gollem.Parameter{Type: gollem.TypeNumber},
							Required:    true,
						},
						"bad_direction": {
							Type:        gollem.TypeString,
							Description: "Only for DIRECTIONAL metrics",
							Enum:        enumValues(types.AllChangeDirections()),
						},
						"rationale": {
							Type:        gollem.TypeString,
							Description: "Why these bounds fit the history",
							Required:    true,
						},
					},
				},
			},
		},
	}
}

func controlSchema() *gollem.Parameter {
	score := func(desc string) *gollem.Parameter {
		return &gollem.Parameter{Type: gollem.TypeInteger, Description: desc, Required: true}
	}
	return &gollem.Parameter{
		Title:       "ControlSuggestionResponse",
		Description: "Controls proposed for the risk",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"suggestions": {
				Type:     gollem.TypeArray,
				Required: true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"title":       {Type: gollem.TypeString, Required: true},
						"description": {Type: gollem.TypeString},
						"type": {
							Type:     gollem.TypeString,
							Enum:     enumValues(types.AllControlTypes()),
							Required: true,
						},
						"target": {
							Type:     gollem.TypeString,
							Enum:     enumValues(types.AllTargetDimensions()),
							Required: true,
						},
						"design":         score("Design score, 0 to 3"),
						"implementation": score("Implementation score, 0 to 3"),
						"monitoring":     score("Monitoring score, 0 to 3"),
						"evaluation":     score("Evaluation score, 0 to 3"),
						"rationale":      {Type: gollem.TypeString, Required: true},
					},
				},
			},
		},
	}
}
