package scoring

import (
	"encoding/json"

	"judge-backend/pkg/api"
)

// NeutralScore is the fallback score assigned per criterion when the
// provider's answer cannot be parsed: the midpoint of the 1-5 range.
const NeutralScore = 3

// NormalizedScore is a well-formed scoring result, whether parsed from the
// provider's answer or reconstructed from the rubric.
type NormalizedScore struct {
	Scores             []api.ScoreEntry
	TotalWeightedScore float64
	Justification      string
}

// ParsedAnswer distinguishes absent fields from zero values so each field
// can be defaulted independently.
type ParsedAnswer struct {
	Scores             *[]api.ScoreEntry `json:"scores"`
	TotalWeightedScore *float64          `json:"totalWeightedScore"`
	Justification      *string           `json:"justification"`
}

// ParseAnswer attempts to read a provider answer as scorecard JSON. The
// second return reports whether the text parsed at all; callers must handle
// the unparseable branch explicitly.
func ParseAnswer(raw string) (ParsedAnswer, bool) {
	var parsed ParsedAnswer
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ParsedAnswer{}, false
	}
	return parsed, true
}

// Normalize reconciles a possibly-malformed provider answer against the
// rubric. Fields default independently: a parseable answer missing one field
// keeps its other fields, an unparseable answer falls back entirely, with
// the raw text preserved as the justification.
func Normalize(raw string, rubric []api.RubricCriterion) NormalizedScore {
	parsed, ok := ParseAnswer(raw)
	if !ok {
		parsed = ParsedAnswer{}
	}

	result := NormalizedScore{}

	if parsed.Scores != nil {
		result.Scores = *parsed.Scores
	} else {
		result.Scores = make([]api.ScoreEntry, len(rubric))
		for i, criterion := range rubric {
			result.Scores[i] = api.ScoreEntry{
				Criterion: criterion.Criterion,
				Score:     NeutralScore,
				Weight:    criterion.Weight,
			}
		}
	}

	if parsed.TotalWeightedScore != nil {
		result.TotalWeightedScore = *parsed.TotalWeightedScore
	} else {
		for _, criterion := range rubric {
			result.TotalWeightedScore += NeutralScore * criterion.Weight
		}
	}

	if parsed.Justification != nil {
		result.Justification = *parsed.Justification
	} else {
		result.Justification = raw
	}

	return result
}
