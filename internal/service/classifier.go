package service

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// typeDetector pairs a compiled pattern with the criterion type it signals.
type typeDetector struct {
	criterionType domain.CriterionType
	pattern       *regexp.Regexp
}

// Detector order is the classification priority: the first match wins, so
// "Age >= 18 with ECOG 0-1" classifies as age, not performance.
var typeDetectors = []typeDetector{
	{domain.CriterionAge, regexp.MustCompile(`(?i)\bage\b|\byears? old\b|\byears of age\b`)},
	{domain.CriterionPerformance, regexp.MustCompile(`(?i)\becog\b|\bperformance status\b|\bkarnofsky\b|\bps\s*[0-4]\b`)},
	{domain.CriterionGender, regexp.MustCompile(`(?i)\b(?:male|female|gender|sex|men|women)\b`)},
	{domain.CriterionDiagnosis, regexp.MustCompile(`(?i)\b(?:diagnos\w+|histolog\w+|confirmed)\b.*\b(?:cancer|tumor|tumour|carcinoma|sarcoma|leukemia|lymphoma|melanoma|glioma|blastoma|malignan\w+)\b|\b(?:cancer|carcinoma|nsclc|sclc)\b`)},
	{domain.CriterionStage, regexp.MustCompile(`(?i)\bstage\s+(?:[ivx]+|[0-4])\b|\blocally advanced\b`)},
	{domain.CriterionTreatment, regexp.MustCompile(`(?i)\bprior\b|\bprevious(?:ly)?\b|\btreatment\b|\btherap\w+\b|\bsurgery\b|\bradiation\b|\bchemotherap\w+\b|\bimmunotherap\w+\b`)},
	{domain.CriterionMutation, regexp.MustCompile(`(?i)\bmutation\b|\bwild.?type\b|\balteration\b|\brearrangement\b|\bfusion\b|\bamplification\b|\bexpression\b|\b(?:egfr|alk|ros1|braf|kras|her2|brca[12]?|pd.?l1|msi|tmb|ntrk)\b`)},
	{domain.CriterionMetastasis, regexp.MustCompile(`(?i)\bmetasta\w+\b|\bcns involvement\b|\bbrain lesion`)},
	{domain.CriterionLabValue, regexp.MustCompile(`(?i)\b(?:hemoglobin|haemoglobin|platelets?|neutrophil|anc|creatinine|bilirubin|ast|alt|alkaline phosphatase|albumin|wbc|egfr rate|clearance)\b|\b\d+(?:\.\d+)?\s*(?:g/dl|mg/dl|/mm3|x\s*10|ml/min|iu/l|u/l)\b`)},
}

// Classifier assigns a criterion type to free-text eligibility criteria. It
// is deterministic and total: text that matches no detector is generic.
type Classifier struct {
	cache  *lru.Cache
	logger *logrus.Logger
}

// NewClassifier creates a criterion classifier with an LRU memo of the given
// size. Size <= 0 disables memoization.
func NewClassifier(cacheSize int, logger *logrus.Logger) *Classifier {
	c := &Classifier{logger: logger}
	if cacheSize > 0 {
		// NewCache only errors on non-positive size, which is guarded above.
		c.cache, _ = lru.New(cacheSize)
	}
	return c
}

// Classify returns the criterion type for the given text. Repeated calls
// with the same text always return the same type.
func (c *Classifier) Classify(text string) domain.CriterionType {
	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return domain.CriterionGeneric
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached.(domain.CriterionType)
		}
	}

	result := domain.CriterionGeneric
	for _, d := range typeDetectors {
		if d.pattern.MatchString(key) {
			result = d.criterionType
			break
		}
	}

	if c.cache != nil {
		c.cache.Add(key, result)
	}

	c.logger.WithFields(logrus.Fields{
		"type":    result,
		"preview": preview(text, 60),
	}).Debug("Classified criterion")

	return result
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
