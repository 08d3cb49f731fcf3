package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

// DefaultECOGAssumedMax is the assumed acceptable ECOG ceiling applied when
// a performance criterion carries no parseable numeric constraint. This is a
// clinical judgment, not a parsing rule; set ECOGAssumedMax negative to
// disable it and report such criteria as undetermined instead.
const DefaultECOGAssumedMax = 2

// EvaluatorOptions tune evaluation behavior.
type EvaluatorOptions struct {
	ECOGAssumedMax int
}

// DefaultEvaluatorOptions returns the standard evaluation policy.
func DefaultEvaluatorOptions() EvaluatorOptions {
	return EvaluatorOptions{ECOGAssumedMax: DefaultECOGAssumedMax}
}

// Evaluator applies one deterministic evaluation strategy per criterion
// type. Evaluation is pure: the same criterion and profile always produce
// the same result, and missing profile data yields an undetermined outcome
// rather than an error.
type Evaluator struct {
	opts EvaluatorOptions
}

// NewEvaluator creates an evaluator with the given options.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	return &Evaluator{opts: opts}
}

// Evaluate returns the raw outcome of a single criterion against a patient
// profile. The outcome is polarity-naive: for exclusion criteria, Satisfied
// means "the patient meets the exclusionary text"; the aggregator inverts it.
func (e *Evaluator) Evaluate(criterion domain.Criterion, profile *domain.PatientProfile) domain.MatchResult {
	result := domain.MatchResult{Criterion: criterion}

	switch criterion.Type {
	case domain.CriterionAge:
		result.Outcome, result.Explanation = e.evaluateAge(criterion.Text, profile)
	case domain.CriterionGender:
		result.Outcome, result.Explanation = e.evaluateGender(criterion.Text, profile)
	case domain.CriterionDiagnosis:
		result.Outcome, result.Explanation = e.evaluateDiagnosis(criterion.Text, profile)
	case domain.CriterionStage:
		result.Outcome, result.Explanation = e.evaluateStage(criterion.Text, profile)
	case domain.CriterionPerformance:
		result.Outcome, result.Explanation = e.evaluatePerformance(criterion.Text, profile)
	case domain.CriterionMutation:
		result.Outcome, result.Explanation = e.evaluateMutation(criterion.Text, profile)
	case domain.CriterionMetastasis:
		result.Outcome, result.Explanation = e.evaluateMetastasis(criterion.Text, profile)
	case domain.CriterionTreatment:
		result.Outcome, result.Explanation = e.evaluateTreatment(criterion.Text, profile)
	case domain.CriterionLabValue:
		result.Outcome, result.Explanation = e.evaluateLabValue(criterion.Text, profile)
	case domain.CriterionGeneric:
		result.Outcome = domain.Undetermined
		result.Explanation = "criterion could not be evaluated deterministically"
	default:
		result.Outcome = domain.Undetermined
		result.Explanation = "criterion could not be evaluated deterministically"
	}

	return result
}

// ageBounds is an inclusive [min, max] interval; nil means unbounded.
type ageBounds struct {
	min *int
	max *int
}

func (b ageBounds) contains(v int) bool {
	if b.min != nil && v < *b.min {
		return false
	}
	if b.max != nil && v > *b.max {
		return false
	}
	return true
}

func (b ageBounds) String() string {
	switch {
	case b.min != nil && b.max != nil:
		if *b.min == *b.max {
			return fmt.Sprintf("exactly %d", *b.min)
		}
		return fmt.Sprintf("%d to %d", *b.min, *b.max)
	case b.min != nil:
		return fmt.Sprintf("minimum %d", *b.min)
	case b.max != nil:
		return fmt.Sprintf("maximum %d", *b.max)
	}
	return "unbounded"
}

var (
	ageRangePattern = regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)(?:\s*years?)?`)
	ageGeqPattern   = regexp.MustCompile(`(?:>=|≥)\s*(\d+)|at least (\d+)|(\d+)\s*years?(?: of age)? (?:or older|and older|or above)|aged (\d+) (?:years )?or older`)
	ageLeqPattern   = regexp.MustCompile(`(?:<=|≤)\s*(\d+)|(\d+)\s*years?(?: of age)? (?:or younger|and younger|or below)|no older than (\d+)|up to (\d+)\s*years?`)
	ageGtPattern    = regexp.MustCompile(`>\s*(\d+)|older than (\d+)|over (\d+)\s*years?`)
	ageLtPattern    = regexp.MustCompile(`<\s*(\d+)|younger than (\d+)|under (\d+)\s*years?`)
	ageExactPattern = regexp.MustCompile(`\bage[ds]?\D{0,10}?(\d+)`)
)

// firstGroup returns the first non-empty capture group as an int.
func firstGroup(groups []string) (int, bool) {
	for _, g := range groups[1:] {
		if g != "" {
			n, err := strconv.Atoi(g)
			return n, err == nil
		}
	}
	return 0, false
}

func intPtr(v int) *int { return &v }

// parseAgeBounds extracts an age interval from criterion text. Patterns are
// tried in a fixed order so ambiguous text always parses the same way.
func parseAgeBounds(text string) (ageBounds, bool) {
	lower := strings.ToLower(text)

	if m := ageRangePattern.FindStringSubmatch(lower); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo <= hi {
			return ageBounds{min: intPtr(lo), max: intPtr(hi)}, true
		}
	}
	if m := ageGeqPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{min: intPtr(v)}, true
		}
	}
	if m := ageLeqPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{max: intPtr(v)}, true
		}
	}
	if m := ageGtPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{min: intPtr(v + 1)}, true
		}
	}
	if m := ageLtPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{max: intPtr(v - 1)}, true
		}
	}
	if m := ageExactPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{min: intPtr(v), max: intPtr(v)}, true
		}
	}
	return ageBounds{}, false
}

func (e *Evaluator) evaluateAge(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	bounds, ok := parseAgeBounds(text)
	if !ok {
		return domain.Undetermined, "no age constraint recognized in criterion"
	}
	if !profile.HasAge() {
		return domain.Undetermined, "unknown"
	}
	age := *profile.Age
	if bounds.contains(age) {
		return domain.Satisfied, fmt.Sprintf("patient age %d meets %s", age, bounds)
	}
	return domain.Unsatisfied, fmt.Sprintf("patient age %d outside %s", age, bounds)
}

var (
	malePattern   = regexp.MustCompile(`\b(?:male|man|men)\b`)
	femalePattern = regexp.MustCompile(`\b(?:female|woman|women)\b`)
)

func (e *Evaluator) evaluateGender(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	lower := strings.ToLower(text)
	wantsFemale := femalePattern.MatchString(lower)
	// "female" contains "male", so the male pattern is checked against text
	// with female mentions removed.
	wantsMale := malePattern.MatchString(femalePattern.ReplaceAllString(lower, ""))

	if !wantsMale && !wantsFemale {
		return domain.Undetermined, "no gender requirement recognized in criterion"
	}
	if wantsMale && wantsFemale {
		// Both genders named means the criterion admits either.
		if profile.HasGender() {
			return domain.Satisfied, fmt.Sprintf("criterion admits any gender; patient is %s", profile.Gender)
		}
		return domain.Satisfied, "criterion admits any gender"
	}
	if !profile.HasGender() {
		return domain.Undetermined, "unknown"
	}

	required := domain.Female
	if wantsMale {
		required = domain.Male
	}
	if profile.Gender == required {
		return domain.Satisfied, fmt.Sprintf("patient gender %s matches required %s", profile.Gender, required)
	}
	return domain.Unsatisfied, fmt.Sprintf("patient gender %s does not match required %s", profile.Gender, required)
}

func (e *Evaluator) evaluateDiagnosis(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	if profile.Diagnosis == "" {
		return domain.Undetermined, "unknown"
	}

	criterionTerms := ExtractDiagnosisKeywords(text)
	patientTerms := ExtractDiagnosisKeywords(profile.Diagnosis)

	var shared []string
	seen := map[string]struct{}{}
	for _, ct := range criterionTerms {
		for _, pt := range patientTerms {
			if ct == pt {
				if _, dup := seen[ct]; !dup {
					seen[ct] = struct{}{}
					shared = append(shared, ct)
				}
			}
		}
	}

	if len(shared) > 0 {
		return domain.Satisfied, fmt.Sprintf("diagnosis %q shares terms %s with criterion", profile.Diagnosis, strings.Join(shared, ", "))
	}
	if len(criterionTerms) == 0 {
		return domain.Undetermined, "no diagnosis terms recognized in criterion"
	}
	return domain.Unsatisfied, fmt.Sprintf("diagnosis %q shares no terms with criterion (%s)", profile.Diagnosis, strings.Join(criterionTerms, ", "))
}

var (
	stageTokenPattern = regexp.MustCompile(`stage\s+([ivx]+|[0-4])([abc])?`)
	stageRangePattern = regexp.MustCompile(`stage\s+([ivx]+|[0-4])[abc]?\s*(?:-|–|to|through)\s*(?:stage\s+)?([ivx]+|[0-4])[abc]?`)
	stageOrPattern    = regexp.MustCompile(`stage\s+([ivx]+|[0-4])[abc]?\s+or\s+(?:stage\s+)?([ivx]+|[0-4])[abc]?`)
)

var romanValues = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4,
	"0": 0, "1": 1, "2": 2, "3": 3, "4": 4,
}

// parseStageNumber converts a stage token ("III", "IIIA", "4") to its
// numeric value, ignoring any A/B/C suffix.
func parseStageNumber(token string) (int, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.TrimPrefix(token, "stage")
	token = strings.TrimSpace(token)
	token = strings.TrimRight(token, "abc")
	v, ok := romanValues[token]
	return v, ok
}

func (e *Evaluator) evaluateStage(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	if profile.Stage == "" {
		return domain.Undetermined, "unknown"
	}
	patientStage, ok := parseStageNumber(profile.Stage)
	if !ok {
		return domain.Undetermined, fmt.Sprintf("patient stage %q not recognized", profile.Stage)
	}

	lower := strings.ToLower(text)

	var lo, hi int
	switch {
	case stageRangePattern.MatchString(lower):
		m := stageRangePattern.FindStringSubmatch(lower)
		a, okA := parseStageNumber(m[1])
		b, okB := parseStageNumber(m[2])
		if !okA || !okB {
			return domain.Undetermined, "stage range in criterion not recognized"
		}
		lo, hi = a, b
	case stageOrPattern.MatchString(lower):
		m := stageOrPattern.FindStringSubmatch(lower)
		a, okA := parseStageNumber(m[1])
		b, okB := parseStageNumber(m[2])
		if !okA || !okB {
			return domain.Undetermined, "stage list in criterion not recognized"
		}
		lo, hi = a, b
		if lo > hi {
			lo, hi = hi, lo
		}
	case stageTokenPattern.MatchString(lower):
		m := stageTokenPattern.FindStringSubmatch(lower)
		v, okV := parseStageNumber(m[1])
		if !okV {
			return domain.Undetermined, "stage in criterion not recognized"
		}
		lo, hi = v, v
	case strings.Contains(lower, "early stage"):
		lo, hi = 1, 2
	case strings.Contains(lower, "advanced stage") || strings.Contains(lower, "advanced disease"):
		lo, hi = 3, 4
	default:
		return domain.Undetermined, "no stage constraint recognized in criterion"
	}

	if patientStage >= lo && patientStage <= hi {
		return domain.Satisfied, fmt.Sprintf("patient stage %s within criterion stages %d-%d", profile.Stage, lo, hi)
	}
	return domain.Unsatisfied, fmt.Sprintf("patient stage %s outside criterion stages %d-%d", profile.Stage, lo, hi)
}

var (
	ecogLeqPattern   = regexp.MustCompile(`(?:ecog|performance status)[^0-9]{0,20}(?:<=|≤)\s*([0-4])|(?:ecog|performance status)[^0-9]{0,20}([0-4])\s+or\s+(?:less|better|lower)`)
	ecogRangePattern = regexp.MustCompile(`(?:ecog|performance status)[^0-9]{0,20}([0-4])\s*(?:-|–|to)\s*([0-4])`)
	ecogExactPattern = regexp.MustCompile(`(?:ecog|performance status)[^0-9]{0,20}(?:of\s+)?([0-4])\b`)
)

// parseECOGBounds extracts an ECOG interval. Inequality is tried first,
// then range, then a bare value; RE2 has no lookahead, so exact-first
// matching cannot be expressed and the ordering here is the fixed policy.
func parseECOGBounds(text string) (ageBounds, bool) {
	lower := strings.ToLower(text)

	if m := ecogLeqPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{max: intPtr(v)}, true
		}
	}
	if m := ecogRangePattern.FindStringSubmatch(lower); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo <= hi {
			return ageBounds{min: intPtr(lo), max: intPtr(hi)}, true
		}
	}
	if m := ecogExactPattern.FindStringSubmatch(lower); m != nil {
		if v, ok := firstGroup(m); ok {
			return ageBounds{min: intPtr(v), max: intPtr(v)}, true
		}
	}
	return ageBounds{}, false
}

func (e *Evaluator) evaluatePerformance(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	bounds, parsed := parseECOGBounds(text)

	if !profile.HasPerformanceStatus() {
		return domain.Undetermined, "unknown"
	}
	ecog := *profile.PerformanceStatus

	if parsed {
		if bounds.contains(ecog) {
			return domain.Satisfied, fmt.Sprintf("patient ECOG %d within %s", ecog, bounds)
		}
		return domain.Unsatisfied, fmt.Sprintf("patient ECOG %d outside %s", ecog, bounds)
	}

	if e.opts.ECOGAssumedMax < 0 {
		return domain.Undetermined, "no ECOG constraint recognized in criterion"
	}
	if ecog <= e.opts.ECOGAssumedMax {
		return domain.Satisfied, fmt.Sprintf("patient ECOG %d within assumed acceptable maximum %d", ecog, e.opts.ECOGAssumedMax)
	}
	return domain.Unsatisfied, fmt.Sprintf("patient ECOG %d exceeds assumed acceptable maximum %d", ecog, e.opts.ECOGAssumedMax)
}

var (
	negativePolarityPattern = regexp.MustCompile(`\bnegative\b|\bwild.?type\b|\bwithout\b|\babsence\b|\bno\s+(?:known\s+)?(?:\w+\s+)?mutation`)
	positivePolarityPattern = regexp.MustCompile(`\bpositive\b|\bmutation\b|\balteration\b|\brearrangement\b|\bfusion\b|\bamplification\b|\bpresence\b`)
)

func (e *Evaluator) evaluateMutation(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	lower := strings.ToLower(text)
	biomarker := DetectBiomarker(text)

	// Negation is checked first: "EGFR negative" contains both signals.
	wantsAbsent := negativePolarityPattern.MatchString(lower)

	if biomarker == "" {
		// Generic any/none mutation check. An empty mutation set is a known
		// negative, not missing data.
		hasAny := len(profile.Mutations) > 0
		if wantsAbsent {
			if hasAny {
				return domain.Unsatisfied, fmt.Sprintf("criterion requires no mutations; patient has %s", strings.Join(profile.Mutations, ", "))
			}
			return domain.Satisfied, "criterion requires no mutations; patient has none recorded"
		}
		if hasAny {
			return domain.Satisfied, fmt.Sprintf("criterion requires a mutation; patient has %s", strings.Join(profile.Mutations, ", "))
		}
		return domain.Unsatisfied, "criterion requires a mutation; patient has none recorded"
	}

	has := profile.HasMutation(biomarker)
	if wantsAbsent {
		if has {
			return domain.Unsatisfied, fmt.Sprintf("criterion requires %s negative; patient is %s positive", biomarker, biomarker)
		}
		return domain.Satisfied, fmt.Sprintf("criterion requires %s negative; patient has no %s alteration recorded", biomarker, biomarker)
	}
	if has {
		return domain.Satisfied, fmt.Sprintf("patient carries a %s alteration required by criterion", biomarker)
	}
	return domain.Unsatisfied, fmt.Sprintf("criterion requires a %s alteration; patient has none recorded", biomarker)
}

func (e *Evaluator) evaluateMetastasis(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	lower := strings.ToLower(text)

	// Brain metastases are the common hard exclusion and get their own check.
	if strings.Contains(lower, "brain") || strings.Contains(lower, "cns") {
		if profile.HasMetastasis("brain") || profile.HasMetastasis("cns") {
			return domain.Satisfied, "patient has recorded brain/CNS metastases"
		}
		return domain.Unsatisfied, "patient has no recorded brain/CNS metastases"
	}

	wantsAbsent := strings.Contains(lower, "no ") || strings.Contains(lower, "without") ||
		strings.Contains(lower, "non-metastatic") || strings.Contains(lower, "absence")

	hasAny := len(profile.Metastases) > 0
	if wantsAbsent {
		if hasAny {
			return domain.Unsatisfied, fmt.Sprintf("criterion requires non-metastatic disease; patient has metastases: %s", strings.Join(profile.Metastases, ", "))
		}
		return domain.Satisfied, "criterion requires non-metastatic disease; patient has no metastases recorded"
	}
	if hasAny {
		return domain.Satisfied, fmt.Sprintf("patient has recorded metastases: %s", strings.Join(profile.Metastases, ", "))
	}
	return domain.Unsatisfied, "patient has no metastases recorded"
}

var treatmentNaivePattern = regexp.MustCompile(`treatment.?na[iï]ve|therapy.?na[iï]ve|previously untreated|no prior (?:systemic )?(?:therapy|treatment)`)

func (e *Evaluator) evaluateTreatment(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	lower := strings.ToLower(text)

	if treatmentNaivePattern.MatchString(lower) {
		if len(profile.PreviousTreatments) == 0 {
			return domain.Satisfied, "criterion requires treatment-naive; patient has no treatments recorded"
		}
		return domain.Unsatisfied, fmt.Sprintf("criterion requires treatment-naive; patient received %s", strings.Join(profile.PreviousTreatments, ", "))
	}

	wantsAbsent := strings.Contains(lower, "no prior") || strings.Contains(lower, "no previous") ||
		strings.Contains(lower, "without prior") || strings.Contains(lower, "must not have received")

	class := DetectTreatmentClass(text)
	if class == "" {
		// No class named: fall back to any-prior-treatment polarity.
		hadAny := len(profile.PreviousTreatments) > 0
		if wantsAbsent {
			if hadAny {
				return domain.Unsatisfied, fmt.Sprintf("criterion requires no prior treatment; patient received %s", strings.Join(profile.PreviousTreatments, ", "))
			}
			return domain.Satisfied, "criterion requires no prior treatment; patient has none recorded"
		}
		if hadAny {
			return domain.Satisfied, fmt.Sprintf("patient received prior treatment: %s", strings.Join(profile.PreviousTreatments, ", "))
		}
		return domain.Unsatisfied, "criterion requires prior treatment; patient has none recorded"
	}

	had := false
	for _, entry := range profile.PreviousTreatments {
		if TreatmentClassMatches(class, entry) {
			had = true
			break
		}
	}

	if wantsAbsent {
		if had {
			return domain.Unsatisfied, fmt.Sprintf("criterion requires no prior %s; patient received it", class)
		}
		return domain.Satisfied, fmt.Sprintf("criterion requires no prior %s; patient has none recorded", class)
	}
	if had {
		return domain.Satisfied, fmt.Sprintf("patient received prior %s required by criterion", class)
	}
	return domain.Unsatisfied, fmt.Sprintf("criterion requires prior %s; patient has none recorded", class)
}

var labNamePattern = regexp.MustCompile(`(?i)\b(hemoglobin|haemoglobin|platelets?|neutrophils?|anc|creatinine|bilirubin|ast|alt|alkaline phosphatase|albumin|wbc)\b`)

// evaluateLabValue compares presence only. Range comparison against the
// recorded value is a known gap: criterion thresholds use heterogeneous
// units and the profile stores lab values as free text.
func (e *Evaluator) evaluateLabValue(text string, profile *domain.PatientProfile) (domain.Outcome, string) {
	m := labNamePattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Undetermined, "no lab measurement recognized in criterion"
	}
	name := strings.ToLower(m[1])

	if value, ok := profile.HasLabValue(name); ok {
		return domain.Satisfied, fmt.Sprintf("patient has recorded %s (%s); threshold not compared", name, value)
	}
	return domain.Undetermined, "unknown"
}
