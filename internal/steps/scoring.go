package steps

import (
	"context"
	"fmt"

	"github.com/leofalp/graphyte/internal/fanout"
	"github.com/leofalp/graphyte/internal/schema"
)

// scoreAnswer decodes the answer of any scoring call.
type scoreAnswer struct {
	Confidence *float64 `json:"confidence_score,omitempty"`
	Relevance  *float64 `json:"relevance_score,omitempty"`
	Clarity    *float64 `json:"clarity_score,omitempty"`
}

func (a scoreAnswer) get(d schema.ScoreDimension) *float64 {
	switch d {
	case schema.Confidence:
		return a.Confidence
	case schema.Relevance:
		return a.Relevance
	default:
		return a.Clarity
	}
}

// scoreTarget is one item to score. Existing holds the scores the model
// already supplied; only the missing ones are requested.
type scoreTarget struct {
	label    string
	item     string
	dims     []schema.ScoreDimension
	existing schema.Scores
}

func (t scoreTarget) has(d schema.ScoreDimension) bool {
	return scorePtr(&t.existing, d) != nil
}

func scorePtr(s *schema.Scores, d schema.ScoreDimension) *float64 {
	switch d {
	case schema.Confidence:
		return s.Confidence
	case schema.Relevance:
		return s.Relevance
	default:
		return s.Clarity
	}
}

func setScore(s *schema.Scores, d schema.ScoreDimension, v *float64) {
	switch d {
	case schema.Confidence:
		s.Confidence = v
	case schema.Relevance:
		s.Relevance = v
	default:
		s.Clarity = v
	}
}

func scoringStage(parent string, d schema.ScoreDimension) stage {
	agents := map[schema.ScoreDimension]string{
		schema.Confidence: "ConfidenceScoreAgent",
		schema.Relevance:  "RelevanceScoreAgent",
		schema.Clarity:    "ClarityScoreAgent",
	}
	return stage{
		id:           parent,
		agent:        agents[d],
		schemaName:   d.SchemaName(),
		schema:       schema.ScoreSchema(d),
		instructions: scoringInstructions(d),
	}
}

// score fills the missing scores of every target with one independent model
// call per item and dimension, all running concurrently. A failed call
// leaves its score nil. The returned slice is parallel to targets.
func (r *Runner) score(ctx context.Context, stageID, doc string, targets []scoreTarget) []schema.Scores {
	out := make([]schema.Scores, len(targets))
	for i, t := range targets {
		out[i] = t.existing
	}
	if !r.scoring || len(targets) == 0 {
		return out
	}

	type slot struct {
		target int
		dim    schema.ScoreDimension
	}
	var (
		slots    []slot
		branches []fanout.Branch[*float64]
	)
	for i, t := range targets {
		for _, d := range t.dims {
			if t.has(d) {
				continue
			}
			st := scoringStage(stageID, d)
			prompt := fmt.Sprintf("%s: %s\n\n%s", t.label, t.item, doc)
			slots = append(slots, slot{target: i, dim: d})
			branches = append(branches, fanout.Branch[*float64]{
				Key: fmt.Sprintf("%s %s", d, t.item),
				Run: func(ctx context.Context) (*float64, error) {
					answer, _, err := ask[scoreAnswer](ctx, r, st, ScoringModelKey, prompt)
					if err != nil {
						return nil, err
					}
					return answer.get(d), nil
				},
			})
		}
	}

	results := fanout.Gather(ctx, r.fanout(stageID+".scoring"), branches)
	for i, res := range results {
		if res.OK() {
			setScore(&out[slots[i].target], slots[i].dim, res.Value)
		}
	}
	return out
}
