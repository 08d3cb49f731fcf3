// Package service implements the eligibility matching engine: criterion
// classification, deterministic per-type evaluation, candidate pre-filtering,
// score aggregation and ranking.
package service

import (
	"sort"
	"strings"
)

// Curated oncology vocabulary used by the pre-filter's diagnosis keyword
// extractor and by the mutation evaluator's biomarker alias table.

var cancerTypes = []string{
	"lung", "breast", "colorectal", "ovarian", "prostate", "pancreatic",
	"gastric", "liver", "hepatic", "renal", "bladder", "melanoma", "sarcoma",
	"lymphoma", "leukemia", "myeloma", "glioma",
	"nsclc", "sclc", "hcc", "rcc", "dlbcl", "aml", "cll", "cml",
}

var histologicSubtypes = []string{
	"adenocarcinoma", "squamous", "small cell", "non-small cell",
	"ductal", "lobular", "neuroendocrine", "transitional", "papillary",
	"follicular", "medullary", "anaplastic", "germ cell", "seminoma",
	"sarcomatoid", "diffuse", "hodgkin", "non-hodgkin",
}

var stageModifiers = []string{
	"metastatic", "advanced", "refractory", "recurrent", "relapsed",
	"stage iv", "stage iii", "stage ii", "stage i",
}

// diagnosisStopwords are dropped when falling back to whole-diagnosis
// tokenization. Generic oncology nouns are stopwords too: "cancer" alone
// matches nearly every trial and carries no filtering power.
var diagnosisStopwords = map[string]struct{}{
	"the": {}, "of": {}, "in": {}, "with": {}, "and": {}, "or": {},
	"at": {}, "from": {}, "to": {}, "a": {},
	"cancer": {}, "tumor": {}, "tumour": {}, "carcinoma": {},
}

// diagnosisAliases canonicalizes common oncology abbreviations onto the
// spelled-out terms, so "NSCLC" and "non-small cell lung cancer" extract
// the same keyword set.
var diagnosisAliases = map[string][]string{
	"nsclc":   {"non-small cell", "lung"},
	"sclc":    {"small cell", "lung"},
	"hcc":     {"liver"},
	"hepatic": {"liver"},
	"rcc":     {"renal"},
	"dlbcl":   {"diffuse", "lymphoma"},
	"aml":     {"leukemia"},
	"cll":     {"leukemia"},
	"cml":     {"leukemia"},
}

// vocabularyScanOrder lists every curated term longest first, so a term that
// contains another ("non-small cell" over "small cell", "nsclc" over "sclc",
// "stage iv" over "stage i") claims its text before the shorter one is tried.
var vocabularyScanOrder = func() []string {
	var terms []string
	for _, group := range [][]string{cancerTypes, histologicSubtypes, stageModifiers} {
		terms = append(terms, group...)
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return terms
}()

// ExtractDiagnosisKeywords pulls significant oncology terms out of a
// free-text diagnosis. It scans the curated vocabulary first (cancer type,
// histologic subtype, stage modifier), masking each match so shorter terms
// contained in it cannot fire again, and replaces abbreviations with their
// canonical expansions; if nothing matches it falls back to splitting the
// diagnosis into words and dropping stopwords and short tokens.
func ExtractDiagnosisKeywords(diagnosis string) []string {
	lower := strings.ToLower(diagnosis)

	scan := lower
	var keywords []string
	seen := map[string]struct{}{}
	add := func(term string) {
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		keywords = append(keywords, term)
	}
	for _, term := range vocabularyScanOrder {
		if !strings.Contains(scan, term) {
			continue
		}
		scan = strings.ReplaceAll(scan, term, " ")
		if canonical, aliased := diagnosisAliases[term]; aliased {
			for _, c := range canonical {
				add(c)
			}
			continue
		}
		add(term)
	}
	if len(keywords) > 0 {
		return keywords
	}

	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,;:()")
		if len(word) <= 3 {
			continue
		}
		if _, stop := diagnosisStopwords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// biomarkerAliases maps each known biomarker to the spellings that appear in
// criterion text. The canonical name is the map key; every alias list starts
// with the canonical spelling so the evaluator can report it.
var biomarkerAliases = map[string][]string{
	"EGFR":  {"egfr", "epidermal growth factor receptor"},
	"ALK":   {"alk", "anaplastic lymphoma kinase"},
	"ROS1":  {"ros1", "ros-1"},
	"BRAF":  {"braf", "b-raf"},
	"KRAS":  {"kras", "k-ras"},
	"HER2":  {"her2", "her-2", "erbb2", "erbb-2"},
	"BRCA1": {"brca1", "brca-1"},
	"BRCA2": {"brca2", "brca-2"},
	"PD-L1": {"pd-l1", "pdl1", "pd l1"},
	"MSI":   {"msi", "microsatellite instability", "msi-h", "msi-high"},
	"TMB":   {"tmb", "tumor mutational burden", "tumour mutational burden"},
	"MET":   {"met exon", "c-met", "met amplification"},
	"RET":   {"ret fusion", "ret rearrangement"},
	"NTRK":  {"ntrk", "trk fusion"},
}

// DetectBiomarker returns the canonical biomarker named in criterion text,
// or "" when no known biomarker appears.
func DetectBiomarker(text string) string {
	lower := strings.ToLower(text)
	// Fixed scan order keeps detection deterministic across runs.
	for _, canonical := range biomarkerOrder {
		for _, alias := range biomarkerAliases[canonical] {
			if strings.Contains(lower, alias) {
				return canonical
			}
		}
	}
	return ""
}

// biomarkerOrder fixes the iteration order over biomarkerAliases. MET and
// RET aliases are phrase-level so short gene names inside unrelated words
// don't trip them.
var biomarkerOrder = []string{
	"EGFR", "ALK", "ROS1", "BRAF", "KRAS", "HER2",
	"BRCA1", "BRCA2", "PD-L1", "MSI", "TMB", "MET", "RET", "NTRK",
}

// treatmentAliases groups treatment-class words so "prior chemotherapy"
// matches a history entry of "carboplatin + pemetrexed chemo".
var treatmentAliases = map[string][]string{
	"chemotherapy":  {"chemotherapy", "chemo", "cytotoxic"},
	"radiation":     {"radiation", "radiotherapy", "irradiation"},
	"immunotherapy": {"immunotherapy", "checkpoint inhibitor", "pd-1 inhibitor", "pd-l1 inhibitor"},
	"targeted":      {"targeted therapy", "tyrosine kinase inhibitor", "tki"},
	"surgery":       {"surgery", "surgical resection", "resection"},
	"hormone":       {"hormone therapy", "hormonal therapy", "endocrine therapy"},
}

// DetectTreatmentClass returns the treatment class named in criterion text,
// or "" when none of the known classes appears.
func DetectTreatmentClass(text string) string {
	lower := strings.ToLower(text)
	for _, class := range treatmentClassOrder {
		for _, alias := range treatmentAliases[class] {
			if strings.Contains(lower, alias) {
				return class
			}
		}
	}
	return ""
}

var treatmentClassOrder = []string{
	"chemotherapy", "radiation", "immunotherapy", "targeted", "surgery", "hormone",
}

// TreatmentClassMatches reports whether a patient history entry belongs to
// the given treatment class.
func TreatmentClassMatches(class, historyEntry string) bool {
	lower := strings.ToLower(historyEntry)
	for _, alias := range treatmentAliases[class] {
		if strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}
