package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

// Feature extractors upstream produce loosely-typed maps: values may be
// scalars, numeric strings, or wrapped as {"value": ..., "source": ...}.
// NormalizeFeatures turns that into a typed PatientProfile.

// absentMarkers are extractor outputs that mean "not found in the document".
var absentMarkers = map[string]struct{}{
	"not mentioned": {}, "not specified": {}, "not available": {},
	"unknown": {}, "n/a": {}, "na": {}, "none": {}, "null": {},
}

// NormalizeFeatures builds a PatientProfile from a raw feature map. Absent,
// null, or "not mentioned" values leave the corresponding field unset.
func NormalizeFeatures(features map[string]any) *domain.PatientProfile {
	profile := &domain.PatientProfile{}

	if v, ok := featureInt(features, "age"); ok {
		profile.Age = &v
	}
	if s, ok := featureString(features, "gender", "sex"); ok {
		profile.Gender = domain.NormalizeGender(s)
	}
	if s, ok := featureString(features, "diagnosis", "primary_diagnosis"); ok {
		profile.Diagnosis = s
	}
	if s, ok := featureString(features, "stage", "tumor_stage"); ok {
		profile.Stage = s
	}
	if v, ok := featureInt(features, "ecog", "performance_status", "ecog_performance_status"); ok {
		profile.PerformanceStatus = &v
	}
	profile.Mutations = featureList(features, "mutations", "genetic_mutations", "biomarkers")
	profile.Metastases = featureList(features, "metastases", "metastasis_sites")
	profile.PreviousTreatments = featureList(features, "previous_treatments", "prior_treatments", "treatments")

	if raw, ok := lookupFeature(features, "lab_values", "labs"); ok {
		if m, isMap := raw.(map[string]any); isMap {
			profile.LabValues = make(map[string]string, len(m))
			for name, value := range m {
				if s, present := scalarString(value); present {
					profile.LabValues[strings.ToLower(name)] = s
				}
			}
		}
	}

	return profile
}

// lookupFeature finds the first present key and unwraps a {"value": ...}
// envelope when the extractor used one.
func lookupFeature(features map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		raw, ok := features[key]
		if !ok || raw == nil {
			continue
		}
		if envelope, isMap := raw.(map[string]any); isMap {
			if inner, hasValue := envelope["value"]; hasValue {
				raw = inner
			}
		}
		if raw == nil {
			continue
		}
		return raw, true
	}
	return nil, false
}

func featureString(features map[string]any, keys ...string) (string, bool) {
	raw, ok := lookupFeature(features, keys...)
	if !ok {
		return "", false
	}
	return scalarString(raw)
}

func scalarString(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	if s == "" {
		return "", false
	}
	if _, absent := absentMarkers[strings.ToLower(s)]; absent {
		return "", false
	}
	return s, true
}

func featureInt(features map[string]any, keys ...string) (int, bool) {
	raw, ok := lookupFeature(features, keys...)
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		return parseLeadingInt(v)
	}
	return 0, false
}

// parseLeadingInt handles values like "65", "65 years", or "ECOG 1".
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if _, absent := absentMarkers[strings.ToLower(s)]; absent {
		return 0, false
	}
	for _, field := range strings.Fields(s) {
		if n, err := strconv.Atoi(strings.Trim(field, ".,")); err == nil {
			return n, true
		}
	}
	return 0, false
}

func featureList(features map[string]any, keys ...string) []string {
	raw, ok := lookupFeature(features, keys...)
	if !ok {
		return nil
	}

	var out []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, present := scalarString(item); present {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s, present := scalarString(item); present {
				out = append(out, s)
			}
		}
	case string:
		// Comma-separated fallback for extractors that flatten lists.
		for _, part := range strings.Split(v, ",") {
			if s, present := scalarString(part); present {
				out = append(out, s)
			}
		}
	default:
		if s, present := scalarString(raw); present {
			out = append(out, s)
		}
	}
	return out
}

// ProfileSummary renders a compact single-line description of a profile for
// logging and oracle prompts.
func ProfileSummary(p *domain.PatientProfile) string {
	var parts []string
	if p.HasAge() {
		parts = append(parts, fmt.Sprintf("age %d", *p.Age))
	}
	if p.HasGender() {
		parts = append(parts, string(p.Gender))
	}
	if p.Diagnosis != "" {
		parts = append(parts, p.Diagnosis)
	}
	if p.Stage != "" {
		parts = append(parts, "stage "+p.Stage)
	}
	if p.HasPerformanceStatus() {
		parts = append(parts, fmt.Sprintf("ECOG %d", *p.PerformanceStatus))
	}
	if len(p.Mutations) > 0 {
		parts = append(parts, "mutations: "+strings.Join(p.Mutations, ", "))
	}
	if len(parts) == 0 {
		return "no recorded features"
	}
	return strings.Join(parts, "; ")
}
