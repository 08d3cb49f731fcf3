package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/feedback"
	"github.com/trial-match-server/internal/service"
)

// MatchTrialsParams defines parameters for the match_trials tool.
type MatchTrialsParams struct {
	Profile  *domain.PatientProfile `json:"profile,omitempty"`
	Features map[string]any         `json:"features,omitempty"`
}

// ClassifyCriterionParams defines parameters for the classify_criterion tool.
type ClassifyCriterionParams struct {
	Text string `json:"text"`
}

// EvaluateCriterionParams defines parameters for the evaluate_criterion tool.
type EvaluateCriterionParams struct {
	Text     string                 `json:"text"`
	Polarity string                 `json:"polarity,omitempty"` // inclusion (default) or exclusion
	Profile  *domain.PatientProfile `json:"profile,omitempty"`
	Features map[string]any         `json:"features,omitempty"`
}

// SummarizeMatchParams defines parameters for the summarize_match tool.
type SummarizeMatchParams struct {
	Match *domain.TrialMatch `json:"match"`
}

// RecordFeedbackParams defines parameters for the record_feedback tool.
type RecordFeedbackParams struct {
	PatientRef       string  `json:"patient_ref"`
	TrialID          string  `json:"trial_id"`
	ScorePercent     float64 `json:"score_percent,omitempty"`
	SystemVerdict    string  `json:"system_verdict,omitempty"`
	ClinicianVerdict string  `json:"clinician_verdict"`
	Notes            string  `json:"notes,omitempty"`
}

// ListFeedbackParams defines parameters for the list_feedback tool.
type ListFeedbackParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// handleMatchTrials runs a full matching run against the catalog snapshot.
func (s *Server) handleMatchTrials(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "match_trials").Info("Tool invoked")

	var params MatchTrialsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return s.errorResult("Invalid parameters", err), nil
	}

	profile := params.Profile
	if profile == nil && len(params.Features) > 0 {
		profile = service.NormalizeFeatures(params.Features)
	}
	if profile == nil {
		return s.errorResult("Missing required parameter", fmt.Errorf("profile or features is required")), nil
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return s.errorResult("Trial catalog unavailable", err), nil
	}

	report, err := s.matcher.Match(ctx, profile, catalog)
	if err != nil {
		return s.errorResult("Matching run failed", err), nil
	}

	text := fmt.Sprintf("Evaluated %d of %d candidate trials, %d matches above threshold",
		report.Evaluated, report.Candidates, len(report.Matches))
	if report.Partial {
		text += " (partial: run deadline exceeded)"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		Meta: map[string]interface{}{
			"report": report,
		},
	}, nil
}

// handleClassifyCriterion classifies one criterion text.
func (s *Server) handleClassifyCriterion(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "classify_criterion").Info("Tool invoked")

	var params ClassifyCriterionParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return s.errorResult("Invalid parameters", err), nil
	}
	if params.Text == "" {
		return s.errorResult("Missing required parameter", fmt.Errorf("text is required")), nil
	}

	criterionType := s.classifier.Classify(params.Text)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Criterion type: %s", criterionType)},
		},
		Meta: map[string]interface{}{
			"type": criterionType.String(),
		},
	}, nil
}

// handleEvaluateCriterion classifies and evaluates one criterion against a
// patient profile.
func (s *Server) handleEvaluateCriterion(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "evaluate_criterion").Info("Tool invoked")

	var params EvaluateCriterionParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return s.errorResult("Invalid parameters", err), nil
	}
	if params.Text == "" {
		return s.errorResult("Missing required parameter", fmt.Errorf("text is required")), nil
	}

	profile := params.Profile
	if profile == nil && len(params.Features) > 0 {
		profile = service.NormalizeFeatures(params.Features)
	}
	if profile == nil {
		return s.errorResult("Missing required parameter", fmt.Errorf("profile or features is required")), nil
	}

	polarity := domain.Inclusion
	if params.Polarity != "" {
		polarity = domain.Polarity(params.Polarity)
		if !polarity.IsValid() {
			return s.errorResult("Invalid parameter", fmt.Errorf("polarity must be inclusion or exclusion")), nil
		}
	}

	criterion := domain.Criterion{
		Text:     params.Text,
		Type:     s.classifier.Classify(params.Text),
		Polarity: polarity,
	}
	result := s.evaluator.Evaluate(criterion, profile)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("%s (%s): %s", result.Outcome, criterion.Type, result.Explanation),
			},
		},
		Meta: map[string]interface{}{
			"result": result,
		},
	}, nil
}

// handleSummarizeMatch turns a surfaced match into a patient-facing summary
// through the semantic oracle.
func (s *Server) handleSummarizeMatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "summarize_match").Info("Tool invoked")

	if s.summarizer == nil {
		return s.errorResult("Summaries unavailable", fmt.Errorf("semantic oracle is not configured")), nil
	}

	var params SummarizeMatchParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return s.errorResult("Invalid parameters", err), nil
	}
	if params.Match == nil || params.Match.TrialID == "" {
		return s.errorResult("Missing required parameter", fmt.Errorf("match with trial_id is required")), nil
	}

	summary, err := s.summarizer.SummarizeMatch(ctx, params.Match)
	if err != nil {
		return s.errorResult("Summary generation failed", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary.Summary},
		},
		Meta: map[string]interface{}{
			"summary": summary,
		},
	}, nil
}

// handleRecordFeedback stores a clinician verdict.
func (s *Server) handleRecordFeedback(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "record_feedback").Info("Tool invoked")

	if s.feedback == nil {
		return s.errorResult("Feedback store not configured", nil), nil
	}

	var params RecordFeedbackParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return s.errorResult("Invalid parameters", err), nil
	}
	if params.PatientRef == "" || params.TrialID == "" {
		return s.errorResult("Missing required parameter", fmt.Errorf("patient_ref and trial_id are required")), nil
	}

	fb := &feedback.Feedback{
		PatientRef:       params.PatientRef,
		TrialID:          params.TrialID,
		ScorePercent:     params.ScorePercent,
		SystemVerdict:    feedback.Verdict(params.SystemVerdict),
		ClinicianVerdict: feedback.Verdict(params.ClinicianVerdict),
		Notes:            params.Notes,
	}
	fb.Agreed = fb.SystemVerdict == fb.ClinicianVerdict

	if err := s.feedback.Save(ctx, fb); err != nil {
		return s.errorResult("Failed to save feedback", err), nil
	}

	s.logger.WithFields(logrus.Fields{
		"trial_id": fb.TrialID,
		"agreed":   fb.Agreed,
	}).Info("Feedback recorded")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Feedback recorded for trial %s (id %d)", fb.TrialID, fb.ID),
			},
		},
		Meta: map[string]interface{}{
			"id":     fb.ID,
			"agreed": fb.Agreed,
		},
	}, nil
}

// handleListFeedback lists recorded feedback, newest first.
func (s *Server) handleListFeedback(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "list_feedback").Info("Tool invoked")

	if s.feedback == nil {
		return s.errorResult("Feedback store not configured", nil), nil
	}

	var params ListFeedbackParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return s.errorResult("Invalid parameters", err), nil
		}
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}

	entries, err := s.feedback.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return s.errorResult("Failed to list feedback", err), nil
	}
	count, err := s.feedback.Count(ctx)
	if err != nil {
		return s.errorResult("Failed to count feedback", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("%d feedback entries (%d total)", len(entries), count),
			},
		},
		Meta: map[string]interface{}{
			"total":    count,
			"feedback": entries,
		},
	}, nil
}

// handleExportFeedback writes all feedback to a timestamped JSON file in
// the export directory.
func (s *Server) handleExportFeedback(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "export_feedback").Info("Tool invoked")

	if s.feedback == nil {
		return s.errorResult("Feedback store not configured", nil), nil
	}
	if s.exportDir == "" {
		return s.errorResult("Export directory not configured", nil), nil
	}

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return s.errorResult("Failed to create export directory", err), nil
	}

	path := filepath.Join(s.exportDir, fmt.Sprintf("feedback-%s.json", time.Now().UTC().Format("20060102-150405")))
	file, err := os.Create(path)
	if err != nil {
		return s.errorResult("Failed to create export file", err), nil
	}
	defer file.Close()

	if err := s.feedback.ExportJSON(ctx, file); err != nil {
		return s.errorResult("Failed to export feedback", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Feedback exported to %s", path)},
		},
		Meta: map[string]interface{}{
			"path": path,
		},
	}, nil
}

// errorResult creates a standardized error result for tool calls.
func (s *Server) errorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
