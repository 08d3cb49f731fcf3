// Package mcp exposes the matching engine over the Model Context
// Protocol so LLM clients can run matches, classify criteria and record
// clinician feedback through stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/feedback"
	"github.com/trial-match-server/internal/service"
	"github.com/trial-match-server/pkg/oracle"
)

const (
	serverName    = "trial-match-server"
	serverVersion = "v0.1.0"
)

// Catalog supplies the trial set for matching runs.
type Catalog interface {
	Snapshot(ctx context.Context) ([]domain.TrialDefinition, error)
}

// Summarizer turns a surfaced match into a patient-facing explanation.
type Summarizer interface {
	SummarizeMatch(ctx context.Context, match *domain.TrialMatch) (*oracle.MatchSummary, error)
}

// Server is the MCP-facing surface of the matching engine.
type Server struct {
	mcpServer  *mcp.Server
	matcher    *service.Matcher
	classifier *service.Classifier
	evaluator  *service.Evaluator
	catalog    Catalog
	feedback   feedback.Store
	summarizer Summarizer
	exportDir  string
	logger     *logrus.Logger
}

// Deps carries the server's collaborators. Feedback and Summarizer may be
// nil, the corresponding tools then report unavailability.
type Deps struct {
	Matcher    *service.Matcher
	Classifier *service.Classifier
	Evaluator  *service.Evaluator
	Catalog    Catalog
	Feedback   feedback.Store
	Summarizer Summarizer
	ExportDir  string
	Logger     *logrus.Logger
}

// NewServer creates an MCP server instance and registers all tools.
func NewServer(deps Deps) (*Server, error) {
	if deps.Matcher == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("matcher and catalog are required")
	}

	s := &Server{
		matcher:    deps.Matcher,
		classifier: deps.Classifier,
		evaluator:  deps.Evaluator,
		catalog:    deps.Catalog,
		feedback:   deps.Feedback,
		summarizer: deps.Summarizer,
		exportDir:  deps.ExportDir,
		logger:     deps.Logger,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()
	return s, nil
}

// registerTools registers all tools with the MCP SDK.
func (s *Server) registerTools() {
	tools := []struct {
		tool    *mcp.Tool
		handler mcp.ToolHandler
	}{
		{
			tool: &mcp.Tool{
				Name:        "match_trials",
				Description: "Match a patient profile against the clinical trial catalog and return ranked eligibility matches. Accepts either a normalized profile or a raw feature map.",
			},
			handler: s.handleMatchTrials,
		},
		{
			tool: &mcp.Tool{
				Name:        "classify_criterion",
				Description: "Classify one eligibility criterion text into its criterion type (age, gender, diagnosis, stage, performance, mutation, metastasis, treatment, lab_value or generic).",
			},
			handler: s.handleClassifyCriterion,
		},
		{
			tool: &mcp.Tool{
				Name:        "evaluate_criterion",
				Description: "Evaluate one eligibility criterion against a patient profile and return the satisfied/unsatisfied/undetermined outcome with an explanation.",
			},
			handler: s.handleEvaluateCriterion,
		},
		{
			tool: &mcp.Tool{
				Name:        "summarize_match",
				Description: "Generate a patient-friendly summary of a surfaced trial match, explaining in plain language why the trial does or does not fit.",
			},
			handler: s.handleSummarizeMatch,
		},
		{
			tool: &mcp.Tool{
				Name:        "record_feedback",
				Description: "Record a clinician's eligibility verdict for a reported patient/trial match.",
			},
			handler: s.handleRecordFeedback,
		},
		{
			tool: &mcp.Tool{
				Name:        "list_feedback",
				Description: "List recorded clinician feedback, newest first.",
			},
			handler: s.handleListFeedback,
		},
		{
			tool: &mcp.Tool{
				Name:        "export_feedback",
				Description: "Export all recorded feedback to a JSON file in the export directory.",
			},
			handler: s.handleExportFeedback,
		},
	}

	for _, reg := range tools {
		s.mcpServer.AddTool(reg.tool, reg.handler)
		s.logger.WithField("tool_name", reg.tool.Name).Debug("Registered MCP tool")
	}

	s.logger.WithField("tool_count", len(tools)).Info("Registered all MCP tools")
}

// Start runs the MCP server over stdio until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting trial matching MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.feedback != nil {
		if err := s.feedback.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
		}
	}
	return nil
}
