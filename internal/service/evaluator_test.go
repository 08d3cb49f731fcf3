package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/domain"
)

func intp(v int) *int { return &v }

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultEvaluatorOptions())
}

func TestEvaluator_Age(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		text     string
		age      *int
		expected domain.Outcome
	}{
		{"at boundary satisfied", "Age >= 18", intp(18), domain.Satisfied},
		{"below boundary unsatisfied", "Age >= 18", intp(17), domain.Unsatisfied},
		{"spelled out minimum", "Patients must be at least 18 years of age", intp(20), domain.Satisfied},
		{"or older phrasing", "18 years of age or older", intp(18), domain.Satisfied},
		{"range inside", "Aged 18-75 years", intp(40), domain.Satisfied},
		{"range upper bound", "Aged 18-75 years", intp(75), domain.Satisfied},
		{"range outside", "Aged 18-75 years", intp(76), domain.Unsatisfied},
		{"range without unit inside", "Patients aged 18 to 75", intp(65), domain.Satisfied},
		{"range without unit outside", "Patients aged 18 to 75", intp(80), domain.Unsatisfied},
		{"strict greater", "older than 18", intp(18), domain.Unsatisfied},
		{"strict greater passes", "older than 18", intp(19), domain.Satisfied},
		{"upper bound", "no older than 70", intp(71), domain.Unsatisfied},
		{"unknown age", "Age >= 18", nil, domain.Undetermined},
		{"no constraint", "of appropriate age for the study", intp(50), domain.Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{Age: tt.age}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionAge, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_AgeUnknownExplanation(t *testing.T) {
	e := newTestEvaluator()
	c := domain.Criterion{Text: "Age >= 18", Type: domain.CriterionAge, Polarity: domain.Inclusion}
	result := e.Evaluate(c, &domain.PatientProfile{})
	assert.Equal(t, domain.Undetermined, result.Outcome)
	assert.Equal(t, "unknown", result.Explanation)
}

func TestEvaluator_Gender(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		text     string
		gender   domain.Gender
		expected domain.Outcome
	}{
		{"female matches", "Female patients only", domain.Female, domain.Satisfied},
		{"female mismatch", "Female patients only", domain.Male, domain.Unsatisfied},
		{"male matches", "Male subjects", domain.Male, domain.Satisfied},
		{"women phrasing", "Postmenopausal women", domain.Female, domain.Satisfied},
		{"both genders", "Male or female patients", domain.Male, domain.Satisfied},
		{"unknown gender", "Female patients only", domain.Gender(""), domain.Undetermined},
		{"no requirement", "willing to provide consent", domain.Female, domain.Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{Gender: tt.gender}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionGender, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_GenderUnknownDistinctFromMismatch(t *testing.T) {
	e := newTestEvaluator()
	c := domain.Criterion{Text: "female patients only", Type: domain.CriterionGender, Polarity: domain.Inclusion}

	unknown := e.Evaluate(c, &domain.PatientProfile{})
	assert.Equal(t, domain.Undetermined, unknown.Outcome)
	assert.Equal(t, "unknown", unknown.Explanation)

	mismatch := e.Evaluate(c, &domain.PatientProfile{Gender: domain.Male})
	assert.Equal(t, domain.Unsatisfied, mismatch.Outcome)
	assert.NotEqual(t, "unknown", mismatch.Explanation)
}

func TestEvaluator_Diagnosis(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name      string
		text      string
		diagnosis string
		expected  domain.Outcome
	}{
		{"vocabulary overlap", "Histologically confirmed non-small cell lung cancer", "non-small cell lung cancer", domain.Satisfied},
		{"abbreviation matches expansion", "Histologically confirmed NSCLC", "non-small cell lung cancer", domain.Satisfied},
		{"expansion matches abbreviation", "Non-small cell lung cancer", "NSCLC", domain.Satisfied},
		{"type overlap", "Diagnosis of breast cancer", "metastatic breast cancer", domain.Satisfied},
		{"no overlap", "Diagnosis of pancreatic cancer", "melanoma", domain.Unsatisfied},
		{"modifier overlap", "Advanced solid malignancy", "advanced gastric cancer", domain.Satisfied},
		{"unknown diagnosis", "Diagnosis of breast cancer", "", domain.Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{Diagnosis: tt.diagnosis}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionDiagnosis, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_StageRange(t *testing.T) {
	e := newTestEvaluator()
	c := domain.Criterion{Text: "Stage II-IV disease", Type: domain.CriterionStage, Polarity: domain.Inclusion}

	inside := e.Evaluate(c, &domain.PatientProfile{Stage: "III"})
	assert.Equal(t, domain.Satisfied, inside.Outcome)

	outside := e.Evaluate(c, &domain.PatientProfile{Stage: "I"})
	assert.Equal(t, domain.Unsatisfied, outside.Outcome)
}

func TestEvaluator_Stage(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		text     string
		stage    string
		expected domain.Outcome
	}{
		{"single stage match", "Stage IV disease", "IV", domain.Satisfied},
		{"single stage with suffix", "Stage IIIB or IV", "IIIB", domain.Satisfied},
		{"or list outside", "Stage III or IV", "II", domain.Unsatisfied},
		{"early bucket", "early stage disease", "II", domain.Satisfied},
		{"early bucket mismatch", "early stage disease", "IV", domain.Unsatisfied},
		{"advanced bucket", "advanced stage disease", "IV", domain.Satisfied},
		{"unknown stage", "Stage IV disease", "", domain.Undetermined},
		{"unparseable patient stage", "Stage IV disease", "extensive", domain.Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{Stage: tt.stage}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionStage, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_PerformanceThreshold(t *testing.T) {
	e := newTestEvaluator()
	c := domain.Criterion{Text: "ECOG performance status <= 2", Type: domain.CriterionPerformance, Polarity: domain.Inclusion}

	atBoundary := e.Evaluate(c, &domain.PatientProfile{PerformanceStatus: intp(2)})
	assert.Equal(t, domain.Satisfied, atBoundary.Outcome)

	above := e.Evaluate(c, &domain.PatientProfile{PerformanceStatus: intp(3)})
	assert.Equal(t, domain.Unsatisfied, above.Outcome)
}

func TestEvaluator_Performance(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		text     string
		ecog     *int
		expected domain.Outcome
	}{
		{"range inside", "ECOG performance status 0-2", intp(1), domain.Satisfied},
		{"range outside", "ECOG performance status 0-1", intp(2), domain.Unsatisfied},
		{"or less phrasing", "ECOG 1 or less", intp(1), domain.Satisfied},
		{"exact value", "ECOG of 1", intp(1), domain.Satisfied},
		{"exact value mismatch", "ECOG of 1", intp(2), domain.Unsatisfied},
		{"heuristic within", "adequate performance status required", intp(2), domain.Satisfied},
		{"heuristic exceeded", "adequate performance status required", intp(3), domain.Unsatisfied},
		{"unknown ecog", "ECOG 0-2", nil, domain.Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{PerformanceStatus: tt.ecog}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionPerformance, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_PerformanceHeuristicDisabled(t *testing.T) {
	e := NewEvaluator(EvaluatorOptions{ECOGAssumedMax: -1})
	c := domain.Criterion{Text: "adequate performance status required", Type: domain.CriterionPerformance, Polarity: domain.Inclusion}
	result := e.Evaluate(c, &domain.PatientProfile{PerformanceStatus: intp(1)})
	assert.Equal(t, domain.Undetermined, result.Outcome)
}

func TestEvaluator_Mutation(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name      string
		text      string
		mutations []string
		expected  domain.Outcome
	}{
		{"biomarker present", "EGFR mutation required", []string{"EGFR T790M"}, domain.Satisfied},
		{"biomarker absent", "ALK rearrangement", []string{"EGFR T790M"}, domain.Unsatisfied},
		{"negative required and absent", "EGFR wild-type", []string{"KRAS G12C"}, domain.Satisfied},
		{"negative required but present", "EGFR negative", []string{"EGFR exon 19 deletion"}, domain.Unsatisfied},
		{"generic any mutation", "documented driver mutation", []string{"BRAF V600E"}, domain.Satisfied},
		{"generic any mutation empty set", "documented driver mutation", nil, domain.Unsatisfied},
		{"generic no mutation empty set", "no known driver mutation", nil, domain.Satisfied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{Mutations: tt.mutations}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionMutation, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_Metastasis(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name       string
		text       string
		metastases []string
		expected   domain.Outcome
	}{
		{"brain exclusion text not met", "Untreated brain metastases", nil, domain.Unsatisfied},
		{"brain metastases present", "Untreated brain metastases", []string{"brain"}, domain.Satisfied},
		{"cns phrasing", "Known CNS metastases", []string{"cns"}, domain.Satisfied},
		{"non-metastatic required", "non-metastatic disease only", nil, domain.Satisfied},
		{"non-metastatic violated", "non-metastatic disease only", []string{"bone"}, domain.Unsatisfied},
		{"metastatic required", "metastatic disease", []string{"liver"}, domain.Satisfied},
		{"metastatic required none", "metastatic disease", nil, domain.Unsatisfied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{Metastases: tt.metastases}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionMetastasis, Polarity: domain.Exclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_Treatment(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name       string
		text       string
		treatments []string
		expected   domain.Outcome
	}{
		{"prior chemo present", "Prior chemotherapy for advanced disease", []string{"carboplatin chemo"}, domain.Satisfied},
		{"prior chemo absent", "Prior chemotherapy for advanced disease", []string{"surgery"}, domain.Unsatisfied},
		{"no prior immunotherapy clean", "No prior immunotherapy", []string{"carboplatin chemo"}, domain.Satisfied},
		{"no prior immunotherapy violated", "No prior immunotherapy", []string{"checkpoint inhibitor"}, domain.Unsatisfied},
		{"treatment naive clean", "Treatment-naive patients", nil, domain.Satisfied},
		{"treatment naive violated", "Treatment-naive patients", []string{"radiation"}, domain.Unsatisfied},
		{"generic prior treatment", "Must have received prior systemic treatment", []string{"osimertinib"}, domain.Satisfied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &domain.PatientProfile{PreviousTreatments: tt.treatments}
			c := domain.Criterion{Text: tt.text, Type: domain.CriterionTreatment, Polarity: domain.Inclusion}
			result := e.Evaluate(c, profile)
			assert.Equal(t, tt.expected, result.Outcome, "explanation: %s", result.Explanation)
		})
	}
}

func TestEvaluator_LabValue(t *testing.T) {
	e := newTestEvaluator()

	profile := &domain.PatientProfile{LabValues: map[string]string{"hemoglobin": "11.2 g/dL"}}

	present := e.Evaluate(domain.Criterion{Text: "Hemoglobin >= 9 g/dL", Type: domain.CriterionLabValue, Polarity: domain.Inclusion}, profile)
	assert.Equal(t, domain.Satisfied, present.Outcome)

	absent := e.Evaluate(domain.Criterion{Text: "Platelets >= 100,000/mm3", Type: domain.CriterionLabValue, Polarity: domain.Inclusion}, profile)
	assert.Equal(t, domain.Undetermined, absent.Outcome)
	assert.Equal(t, "unknown", absent.Explanation)
}

func TestEvaluator_Generic(t *testing.T) {
	e := newTestEvaluator()
	c := domain.Criterion{Text: "Able to comply with study procedures", Type: domain.CriterionGeneric, Polarity: domain.Inclusion}
	result := e.Evaluate(c, &domain.PatientProfile{})
	assert.Equal(t, domain.Undetermined, result.Outcome)
}

func TestEvaluator_Purity(t *testing.T) {
	e := newTestEvaluator()
	c := domain.Criterion{Text: "ECOG performance status 0-2", Type: domain.CriterionPerformance, Polarity: domain.Inclusion}
	profile := &domain.PatientProfile{PerformanceStatus: intp(1)}

	first := e.Evaluate(c, profile)
	second := e.Evaluate(c, profile)
	require.Equal(t, first, second)
}
