// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

// scoringPrompt asks for a single JSON object so the response parses
// without provider-specific structured-output plumbing.
var scoringPrompt = template.Must(template.New("scoring").Parse(`You are judging whether a research paper is relevant to a specific research question.

Research question:
{{.Question}}

Paper:
Title: {{.Title}}
Authors: {{.Authors}}
{{- if .Venue}}
Venue: {{.Venue}}
{{- end}}
{{- if .Abstract}}
Abstract: {{.Abstract}}
{{- else}}
Abstract: (not available)
{{- end}}

Score the paper's relevance to the question on a scale of 0 to 10, where 0 means entirely unrelated and 10 means the paper directly addresses the question. Judge only from the material above; do not guess at content the abstract does not support.

Respond with a single JSON object and nothing else:
{"score": <number 0-10>, "reason": "<one sentence>"}`))

// promptData feeds the scoring template.
type promptData struct {
	Question string
	Title    string
	Authors  string
	Venue    string
	Abstract string
}

// renderPrompt builds the scoring prompt for one (paper, question) pair.
func renderPrompt(paper types.ResolvedPaper, question string) (string, error) {
	data := promptData{
		Question: question,
		Title:    paper.Title,
		Authors:  strings.Join(paper.Authors, ", "),
		Venue:    paper.Stub.Venue,
		Abstract: paper.Summary,
	}
	var b strings.Builder
	if err := scoringPrompt.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering scoring prompt: %w", err)
	}
	return b.String(), nil
}

// parseScore extracts the judge's verdict from raw model output.
// Scores outside [0, 10] are clamped rather than rejected.
func parseScore(raw string) (types.JudgeScore, error) {
	cleaned := cleanJSONResponse(raw)

	var js types.JudgeScore
	if err := json.Unmarshal([]byte(cleaned), &js); err != nil {
		return types.JudgeScore{}, fmt.Errorf("parsing judge response: %w", err)
	}

	if js.Score < 0 {
		js.Score = 0
	}
	if js.Score > 10 {
		js.Score = 10
	}
	js.Reason = strings.TrimSpace(js.Reason)
	return js, nil
}

// cleanJSONResponse strips markdown code fences and any prose around
// the JSON object. Models wrap JSON in ```json fences often enough
// that parsing the raw text directly is not reliable.
func cleanJSONResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}
