package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

// Recommender turns the task's "recommendations" option into suggestions.
// Each entry is a mapping with domain, category, content, technologies and
// rationale keys, as decoded from a plan file.
type Recommender struct{}

// Run implements agent.Agent.
func (Recommender) Run(ctx context.Context, task agent.Task, _ agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &agent.AgentOutput{Findings: make([]agent.Finding, 0)}
	raw, ok := task.Option("recommendations")
	if !ok {
		return out, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.NewValidationError("recommendations must be a list").
			WithField("options.recommendations").WithValue(raw)
	}

	for i, item := range items {
		rec, err := decodeRecommendation(item)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).
				WithField(fmt.Sprintf("options.recommendations[%d]", i))
		}
		rec.Source = task.ID
		out.Suggestions = append(out.Suggestions, agent.Suggestion{
			Title:          fmt.Sprintf("%s/%s", rec.Domain, rec.Category),
			Description:    rec.Content,
			Recommendation: &rec,
		})
	}
	return out, nil
}

func decodeRecommendation(item any) (agent.Recommendation, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return agent.Recommendation{}, fmt.Errorf("entry must be a mapping, got %T", item)
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return strings.TrimSpace(s)
	}

	rec := agent.Recommendation{
		Domain:    str("domain"),
		Category:  str("category"),
		Content:   str("content"),
		Rationale: str("rationale"),
	}
	if rec.Domain == "" || rec.Category == "" {
		return agent.Recommendation{}, fmt.Errorf("domain and category are required")
	}

	switch techs := m["technologies"].(type) {
	case nil:
	case []any:
		for _, t := range techs {
			s, ok := t.(string)
			if !ok {
				return agent.Recommendation{}, fmt.Errorf("technologies must be strings, got %T", t)
			}
			rec.Technologies = append(rec.Technologies, s)
		}
	case []string:
		rec.Technologies = append(rec.Technologies, techs...)
	default:
		return agent.Recommendation{}, fmt.Errorf("technologies must be a list, got %T", techs)
	}
	return rec, nil
}
