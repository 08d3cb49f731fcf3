// Package ingest parses raw trial registry records into TrialDefinitions:
// eligibility text is split into inclusion/exclusion sections, bulleted into
// individual criteria, and each criterion is classified at ingestion time.
package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

// Classifier assigns criterion types at ingestion. Satisfied by
// service.Classifier.
type Classifier interface {
	Classify(text string) domain.CriterionType
}

var (
	inclusionSectionPattern = regexp.MustCompile(`(?is)inclusion criteria:?[\s\n]*(.+?)(?:exclusion criteria:|$)`)
	exclusionSectionPattern = regexp.MustCompile(`(?is)exclusion criteria:?[\s\n]*(.+)$`)
	bulletPrefixPattern     = regexp.MustCompile(`^\s*(\d+[.)]\s*|-\s*|•\s*|\*\s*)`)
)

// CriteriaParser turns free-text eligibility blocks into classified
// criteria.
type CriteriaParser struct {
	classifier Classifier
}

// NewCriteriaParser creates a parser using the given classifier.
func NewCriteriaParser(classifier Classifier) *CriteriaParser {
	return &CriteriaParser{classifier: classifier}
}

// Parse splits an eligibility text block into inclusion and exclusion
// criteria. Text with no recognizable section headers is treated as one
// inclusion block.
func (p *CriteriaParser) Parse(eligibilityText string) (inclusion, exclusion []domain.Criterion) {
	text := strings.ReplaceAll(eligibilityText, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var inclusionText, exclusionText string
	if m := inclusionSectionPattern.FindStringSubmatch(text); m != nil {
		inclusionText = strings.TrimSpace(m[1])
	}
	if m := exclusionSectionPattern.FindStringSubmatch(text); m != nil {
		exclusionText = strings.TrimSpace(m[1])
	}
	if inclusionText == "" && exclusionText == "" {
		inclusionText = strings.TrimSpace(text)
	}

	inclusion = p.parseSection(inclusionText, domain.Inclusion)
	exclusion = p.parseSection(exclusionText, domain.Exclusion)
	return inclusion, exclusion
}

// parseSection splits a section into bullet lines. A section that yields a
// single line is kept as one criterion.
func (p *CriteriaParser) parseSection(text string, polarity domain.Polarity) []domain.Criterion {
	if text == "" {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefixPattern.ReplaceAllString(line, ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	if len(lines) == 1 {
		lines = []string{strings.TrimSpace(text)}
	}

	criteria := make([]domain.Criterion, 0, len(lines))
	for _, line := range lines {
		criteria = append(criteria, domain.Criterion{
			Text:     line,
			Type:     p.classifier.Classify(line),
			Polarity: polarity,
		})
	}
	return criteria
}

var ageYearsPattern = regexp.MustCompile(`(\d+)\s*(?:years?|yrs?)?`)

// ParseAgeYears parses registry age strings like "18 Years" or "75". Month
// granularity rounds down to 0 years. Returns nil when no number is found,
// e.g. "N/A".
func ParseAgeYears(raw string) *int {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "n/a" || raw == "none" {
		return nil
	}

	m := ageYearsPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	if strings.Contains(raw, "month") || strings.Contains(raw, "week") || strings.Contains(raw, "day") {
		n = 0
	}
	return &n
}
