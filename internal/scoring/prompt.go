// Package scoring implements the judge-scoring pipeline: load and decrypt a
// judge profile, render the grading prompt, invoke a marketplace provider,
// normalize the answer into a scorecard, and persist it on request.
package scoring

import (
	"fmt"
	"strings"

	"judge-backend/pkg/api"
)

// BuildPrompt renders a judge profile and submission text into the grading
// prompt. It is a pure function; its exact output is pinned by a golden test
// since the response-shape instruction is part of the provider contract.
// Submission text is passed through verbatim: prompt-injection hardening is
// the provider's responsibility, not this layer's.
func BuildPrompt(profile api.JudgeProfile, submissionText string) string {
	rubricLines := make([]string, len(profile.Rubric))
	for i, criterion := range profile.Rubric {
		rubricLines[i] = fmt.Sprintf("-%s(weight %g)", criterion.Criterion, criterion.Weight)
	}

	sections := []string{
		profile.Prompts.System,
		"",
		"Submissions:",
		submissionText,
		"",
		"Rubric:",
		strings.Join(rubricLines, "\n"),
		"",
		"Return JSON with fields: scores[{criterion, score, weight}], totalWeightedScore, justification",
	}

	return strings.Join(sections, "\n")
}
