package domain

import (
	"sort"
	"strings"
)

// SourceSpan records where in the source clinical text a profile field
// was extracted from. Provenance is carried for display and audit only;
// it never influences evaluation.
type SourceSpan struct {
	Text  string `json:"text"`
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
}

// PatientProfile is the canonical, normalized view of a patient's
// extracted clinical features. Pointer and empty-string fields encode
// "not mentioned": an absent field always evaluates to an Undetermined
// outcome, never to a match or a definite mismatch.
//
// Set-valued fields (mutations, metastases, previous treatments) are
// always known: an empty set means "none recorded", which is a concrete
// negative, not an unknown.
type PatientProfile struct {
	Age                *int              `json:"age,omitempty"`
	Gender             Gender            `json:"gender,omitempty"`
	Diagnosis          string            `json:"diagnosis,omitempty"`
	Stage              string            `json:"stage,omitempty"`
	PerformanceStatus  *int              `json:"performance_status,omitempty" validate:"omitempty,min=0,max=5"`
	Mutations          []string          `json:"mutations"`
	Metastases         []string          `json:"metastases"`
	PreviousTreatments []string          `json:"previous_treatments"`
	LabValues          map[string]string `json:"lab_values"`

	// Provenance maps a field name to the source text span it came from.
	Provenance map[string]SourceSpan `json:"provenance,omitempty"`
}

// HasAge reports whether the patient's age is known.
func (p *PatientProfile) HasAge() bool {
	return p.Age != nil
}

// HasGender reports whether the patient's gender is known.
func (p *PatientProfile) HasGender() bool {
	return p.Gender.IsValid()
}

// HasPerformanceStatus reports whether an ECOG value is known.
func (p *PatientProfile) HasPerformanceStatus() bool {
	return p.PerformanceStatus != nil
}

// HasMutation reports whether any recorded mutation mentions the given
// term, compared case-insensitively as a substring. "EGFR" matches the
// recorded mutation "EGFR T790M".
func (p *PatientProfile) HasMutation(term string) bool {
	return containsTerm(p.Mutations, term)
}

// HasMetastasis reports whether any recorded metastasis site mentions
// the given term.
func (p *PatientProfile) HasMetastasis(term string) bool {
	return containsTerm(p.Metastases, term)
}

// HadTreatment reports whether any recorded prior treatment mentions
// the given term.
func (p *PatientProfile) HadTreatment(term string) bool {
	return containsTerm(p.PreviousTreatments, term)
}

// HasLabValue reports whether the named lab is recorded, matching the
// key case-insensitively and by substring in either direction so that
// "hemoglobin" finds the recorded key "Hemoglobin (g/dL)".
func (p *PatientProfile) HasLabValue(name string) (string, bool) {
	want := normalizeToken(name)
	if want == "" {
		return "", false
	}
	keys := make([]string, 0, len(p.LabValues))
	for k := range p.LabValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		have := normalizeToken(k)
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return p.LabValues[k], true
		}
	}
	return "", false
}

func containsTerm(values []string, term string) bool {
	t := normalizeToken(term)
	if t == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(normalizeToken(v), t) {
			return true
		}
	}
	return false
}

// normalizeToken lowercases and trims a vocabulary token for
// case-insensitive comparison.
func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
