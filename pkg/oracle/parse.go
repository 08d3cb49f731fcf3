package oracle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/trial-match-server/internal/domain"
)

const evaluationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["match_score"],
  "properties": {
    "match_score": {"type": "number", "minimum": 0, "maximum": 100},
    "explanation": {"type": "string"},
    "matching_criteria": {"type": "array", "items": {"type": "string"}},
    "conflicting_criteria": {"type": "array", "items": {"type": "string"}}
  }
}`

var evaluationSchemaLoader = gojsonschema.NewStringLoader(evaluationSchema)

// ParseEvaluation turns a raw oracle completion into a SemanticEvaluation.
// The JSON payload is extracted from markdown fences if present and
// validated against the evaluation schema before acceptance.
func ParseEvaluation(raw string) (*domain.SemanticEvaluation, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	result, err := gojsonschema.Validate(evaluationSchemaLoader, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("%w: response is not JSON: %v", ErrUnavailable, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("%w: response violates schema: %s", ErrUnavailable, strings.Join(details, "; "))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}

	return &domain.SemanticEvaluation{
		Score:               coerceFloat(data["match_score"]),
		Explanation:         coerceString(data["explanation"]),
		MatchingCriteria:    coerceStringList(data["matching_criteria"]),
		ConflictingCriteria: coerceStringList(data["conflicting_criteria"]),
	}, nil
}

// parseSummary decodes a patient-facing summary response.
func parseSummary(raw string) (*MatchSummary, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty summary response", ErrUnavailable)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse summary: %v", ErrUnavailable, err)
	}

	summary := &MatchSummary{
		Summary:         coerceString(data["summary"]),
		KeyPoints:       coerceStringList(data["key_points"]),
		PatientGuidance: coerceString(data["patient_guidance"]),
	}
	if summary.Summary == "" {
		return nil, fmt.Errorf("%w: summary response missing summary text", ErrUnavailable)
	}
	return summary, nil
}

// extractJSON strips markdown code fences and surrounding prose from a
// model response, returning the JSON object text.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}
	// Models sometimes lead with prose before the object.
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end == -1 || end < start {
			return ""
		}
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func coerceStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, isString := item.(string); isString && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
